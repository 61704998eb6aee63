package toolregistry_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentplatform/core/apitypes"
	"github.com/agentplatform/core/toolregistry"
)

// genParamType picks one of the scalar ParamTypes (string, integer,
// boolean), the kinds sampleValue below generates values for.
func genParamType() gopter.Gen {
	return gen.OneConstOf(apitypes.ParamString, apitypes.ParamInteger, apitypes.ParamBoolean)
}

// fieldPlan describes how one generated param will appear in a trial: the
// spec it is declared with, and whether the generated params map omits it,
// supplies a correctly-typed value, or supplies a mismatched one.
type fieldPlan struct {
	spec      apitypes.ParamSpec
	present   bool
	wellTyped bool
}

// genField builds one fieldPlan: a required-or-not param of a random
// scalar type, randomly present/absent and well/mis-typed when present.
func genField(i int) gopter.Gen {
	return gopter.CombineGens(
		genParamType(),
		gen.Bool(), // required
		gen.Bool(), // present
		gen.Bool(), // well-typed (only consulted when present)
	).Map(func(vals []any) fieldPlan {
		return fieldPlan{
			spec: apitypes.ParamSpec{
				Name:     fmt.Sprintf("field_%d", i),
				Type:     vals[0].(apitypes.ParamType),
				Required: vals[1].(bool),
			},
			present:   vals[2].(bool),
			wellTyped: vals[3].(bool),
		}
	})
}

func genFieldPlans() gopter.Gen {
	return gopter.CombineGens(genField(0), genField(1), genField(2)).
		Map(func(vals []any) []fieldPlan {
			return []fieldPlan{vals[0].(fieldPlan), vals[1].(fieldPlan), vals[2].(fieldPlan)}
		})
}

// alwaysOKTool is a schema-only stub: its Execute never runs for an
// invalid-params trial, and trivially succeeds when it does.
type alwaysOKTool struct {
	meta apitypes.ToolMetadata
}

func (t alwaysOKTool) Metadata() apitypes.ToolMetadata { return t.meta }

func (alwaysOKTool) Execute(context.Context, map[string]any, toolregistry.ToolContext) (apitypes.ToolResult, error) {
	return apitypes.ToolResult{Success: true}, nil
}

func (alwaysOKTool) Health(context.Context) toolregistry.HealthCheckResult {
	return toolregistry.HealthCheckResult{Healthy: true}
}

// TestExecuteSchemaGateMatchesDeclaredParams checks, for randomly generated
// tool schemas and randomly generated params maps built to either satisfy
// or violate them, that Execute's accept/reject decision always agrees
// with whether every required field is present and every present field
// carries its declared type — the registry never invokes a tool on params
// that don't conform, and never rejects params that do.
func TestExecuteSchemaGateMatchesDeclaredParams(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("schema acceptance matches field conformance", prop.ForAll(
		func(plans []fieldPlan) bool {
			specs := make([]apitypes.ParamSpec, len(plans))
			for i, p := range plans {
				specs[i] = p.spec
			}

			reg := toolregistry.New()
			slug := "property-tool"
			if err := reg.Register(alwaysOKTool{meta: apitypes.ToolMetadata{
				Slug:        slug,
				Category:    "test",
				InputSchema: apitypes.Schema{Params: specs},
			}}); err != nil {
				return false
			}

			params := make(map[string]any)
			expectValid := true
			for _, p := range plans {
				if !p.present {
					if p.spec.Required {
						expectValid = false
					}
					continue
				}
				if p.wellTyped {
					params[p.spec.Name] = sampleValue(p.spec.Type, true)
				} else {
					params[p.spec.Name] = sampleValue(p.spec.Type, false)
					expectValid = false
				}
			}

			result, err := reg.Execute(context.Background(), slug, params, newTestContext())
			if err != nil {
				return false
			}
			if expectValid {
				return result.Success && result.ErrorCode == ""
			}
			return !result.Success && result.ErrorCode == apitypes.ErrInvalidParams
		},
		genFieldPlans(),
	))

	properties.TestingRun(t)
}

// sampleValue returns a fixed, deterministic stand-in value for t — wellTyped
// picks a value of t's own JSON type, !wellTyped picks one that never is.
// Values use the same Go types encoding/json produces when decoding a
// request body into map[string]any (float64 for numbers), since that is
// how params actually arrive at Execute in production.
func sampleValue(t apitypes.ParamType, wellTyped bool) any {
	if wellTyped {
		switch t {
		case apitypes.ParamInteger:
			return float64(7)
		case apitypes.ParamBoolean:
			return true
		default:
			return "a-value"
		}
	}
	if t == apitypes.ParamString {
		return float64(7)
	}
	return "not-" + string(t)
}
