package toolregistry

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentplatform/core/apitypes"
)

// jsonTypeOf maps a declared ParamType onto the JSON Schema type keyword(s)
// that accept it. ParamNumber accepts both integral and fractional values.
func jsonTypeOf(t apitypes.ParamType) any {
	switch t {
	case apitypes.ParamString:
		return "string"
	case apitypes.ParamInteger:
		return "integer"
	case apitypes.ParamNumber:
		return []any{"integer", "number"}
	case apitypes.ParamBoolean:
		return "boolean"
	case apitypes.ParamArray:
		return "array"
	case apitypes.ParamObject:
		return "object"
	default:
		return "string"
	}
}

// buildSchemaDoc translates a tool's ordered parameter list into a JSON
// Schema object document, the shape the registry compiles and validates
// params against before a tool is ever invoked.
func buildSchemaDoc(s apitypes.Schema) map[string]any {
	properties := make(map[string]any, len(s.Params))
	required := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		prop := map[string]any{"type": jsonTypeOf(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// compileSchema compiles a tool's input schema into a validator, resourced
// under a name unique to the tool slug so the compiler's internal cache
// never confuses two tools' schemas.
func compileSchema(slug string, s apitypes.Schema) (*jsonschema.Schema, error) {
	doc := buildSchemaDoc(s)
	resourceName := "tool://" + slug + "/input.schema.json"

	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", slug, err)
	}
	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", slug, err)
	}
	return compiled, nil
}
