// Package packageio implements agent package export/import (spec C12): a
// zip archive format carrying an agent's manifest, backend entry point,
// prompt assets and frontend assets, and the static validator that gates
// both directions.
package packageio

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"

	"github.com/agentplatform/core/apitypes"
)

// denied import paths, matched exactly (a sub-package of a listed path is
// not denied unless listed itself): process control, network, file system,
// and database driver concerns an agent must reach only through ctx.
var deniedImports = map[string]bool{
	"os":            true,
	"os/exec":       true,
	"os/user":       true,
	"syscall":       true,
	"plugin":        true,
	"net":           true,
	"net/http":      true,
	"net/rpc":       true,
	"net/smtp":      true,
	"database/sql":  true,
	"io/ioutil":     true,
	"path/filepath": true,
	"unsafe":        true,
}

// denied selector calls (pkg.Func) regardless of how the package was
// imported or aliased.
var deniedSelectors = map[string]bool{
	"exec.Command":    true,
	"os.Open":         true,
	"os.Create":       true,
	"os.OpenFile":     true,
	"os.Remove":       true,
	"os.RemoveAll":    true,
	"http.Get":        true,
	"http.Post":       true,
	"http.NewRequest": true,
}

var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api_key|apikey|secret|password|token)\s*[:=]\s*"[^"]{8,}"`),
	regexp.MustCompile(`(?i)(sk-|pk-|xox[bp]-|Bearer\s+)[A-Za-z0-9_-]{20,}`),
}

// ValidationError is a single finding; Severity says whether it is an error
// or a warning.
type ValidationError struct {
	Code     string
	Message  string
	File     string
	Line     int
	Severity string // "error" or "warning"
}

// ValidationResult is the outcome of validating one agent package. Valid is
// false as soon as any error-severity finding is appended.
type ValidationResult struct {
	AgentSlug string
	Valid     bool
	Errors    []ValidationError
	Warnings  []ValidationError
}

func newResult(slug string) *ValidationResult {
	return &ValidationResult{AgentSlug: slug, Valid: true}
}

func (r *ValidationResult) addError(code, message, file string, line int) {
	r.Errors = append(r.Errors, ValidationError{Code: code, Message: message, File: file, Line: line, Severity: "error"})
	r.Valid = false
}

func (r *ValidationResult) addWarning(code, message, file string, line int) {
	r.Warnings = append(r.Warnings, ValidationError{Code: code, Message: message, File: file, Line: line, Severity: "warning"})
}

// Files is the in-memory content of an agent package, keyed by path relative
// to the package root ("backend/agent.go", "backend/prompts/system.md",
// "frontend/index.tsx", ...).
type Files map[string][]byte

// Validator statically checks an agent package against the framework
// conventions. It never executes agent code.
type Validator struct {
	toolSlugs      map[string]struct{}
	connectorSlugs map[string]struct{}
}

// NewValidator builds a Validator that cross-checks a manifest's declared
// tool/connector dependencies against the given slug sets. Either set may be
// nil, in which case the corresponding dependency check is skipped (mirrors
// the behavior of running the validator before any registry is populated).
func NewValidator(toolSlugs, connectorSlugs map[string]struct{}) *Validator {
	return &Validator{toolSlugs: toolSlugs, connectorSlugs: connectorSlugs}
}

// Validate checks a manifest plus its package files. manifest may be the
// zero value if manifest.json itself failed to parse; manifestErr then
// carries that failure, which is reported as INVALID_MANIFEST, the
// dependency check is skipped, and the remaining file checks still run so
// the report is complete.
func (v *Validator) Validate(manifest apitypes.AgentManifest, manifestErr error, files Files) *ValidationResult {
	result := newResult(manifest.Slug)

	if manifestErr != nil {
		result.addError("INVALID_MANIFEST", manifestErr.Error(), "manifest.json", 0)
	} else if manifest.Slug == "" {
		result.addError("INVALID_MANIFEST", "manifest is missing a slug", "manifest.json", 0)
	}

	v.validateBackend(files, result)
	v.validatePrompt(files, result)
	v.validateFrontend(files, result)
	if manifestErr == nil {
		v.validateDependencies(manifest, result)
	}

	return result
}

const backendEntryPoint = "backend/agent.go"

func (v *Validator) validateBackend(files Files, result *ValidationResult) {
	src, ok := files[backendEntryPoint]
	if !ok {
		result.addError("NO_AGENT_SOURCE", backendEntryPoint+" missing", backendEntryPoint, 0)
		return
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, backendEntryPoint, src, parser.ParseComments)
	if err != nil {
		result.addError("SYNTAX_ERROR", err.Error(), backendEntryPoint, 0)
		return
	}

	v.checkForbiddenImports(file, fset, result)
	v.checkForbiddenCalls(file, fset, result)
	v.checkAgentContract(file, fset, result)
	v.checkCredentials(string(src), result)

	for path, content := range files {
		if path == backendEntryPoint || !strings.HasPrefix(path, "backend/") || !strings.HasSuffix(path, ".go") {
			continue
		}
		v.checkCredentials(string(content), result)
	}
}

func (v *Validator) checkForbiddenImports(file *ast.File, fset *token.FileSet, result *ValidationResult) {
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if deniedImports[path] {
			result.addError("FORBIDDEN_IMPORT", "forbidden import: \""+path+"\" — use the turn context instead",
				backendEntryPoint, fset.Position(imp.Pos()).Line)
		}
	}
}

func (v *Validator) checkForbiddenCalls(file *ast.File, fset *token.FileSet, result *ValidationResult) {
	aliases := make(map[string]string)
	for _, imp := range file.Imports {
		if imp.Name != nil {
			path := strings.Trim(imp.Path.Value, `"`)
			aliases[imp.Name.Name] = path[strings.LastIndex(path, "/")+1:]
		}
	}
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		ident, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		pkg := ident.Name
		if real, ok := aliases[pkg]; ok {
			pkg = real
		}
		name := pkg + "." + sel.Sel.Name
		if deniedSelectors[name] {
			result.addError("FORBIDDEN_CALL", "forbidden call: "+name+"()", backendEntryPoint, fset.Position(call.Pos()).Line)
		}
		return true
	})
}

func (v *Validator) checkAgentContract(file *ast.File, fset *token.FileSet, result *ValidationResult) {
	receivers := make(map[string]struct{ manifest, handleTurn bool })
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
			continue
		}
		recvName := receiverTypeName(fn.Recv.List[0].Type)
		entry := receivers[recvName]
		switch fn.Name.Name {
		case "Manifest":
			entry.manifest = true
			if fn.Doc == nil {
				result.addWarning("NO_DOCSTRING", "Manifest() has no doc comment", backendEntryPoint, fset.Position(fn.Pos()).Line)
			}
		case "HandleTurn":
			entry.handleTurn = true
			if fn.Doc == nil {
				result.addWarning("NO_DOCSTRING", "HandleTurn() has no doc comment", backendEntryPoint, fset.Position(fn.Pos()).Line)
			}
		}
		receivers[recvName] = entry
	}

	hasContract := false
	for _, entry := range receivers {
		if entry.manifest && entry.handleTurn {
			hasContract = true
			break
		}
	}

	if !hasContract {
		result.addError("NO_AGENT_CONTRACT", "no type implements both Manifest() and HandleTurn()", backendEntryPoint, 0)
	}
}

func receiverTypeName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

func (v *Validator) checkCredentials(source string, result *ValidationResult) {
	for _, pattern := range credentialPatterns {
		for _, loc := range pattern.FindAllStringIndex(source, -1) {
			line := strings.Count(source[:loc[0]], "\n") + 1
			result.addError("HARDCODED_CREDENTIALS", "potential hardcoded credential", backendEntryPoint, line)
		}
	}
}

func (v *Validator) validatePrompt(files Files, result *ValidationResult) {
	const path = "backend/prompts/system.md"
	content, ok := files[path]
	if !ok {
		result.addError("NO_SYSTEM_PROMPT", path+" missing", path, 0)
		return
	}
	if strings.TrimSpace(string(content)) == "" {
		result.addError("EMPTY_SYSTEM_PROMPT", path+" is empty", path, 0)
	}
}

func (v *Validator) validateFrontend(files Files, result *ValidationResult) {
	hasFrontendDir := false
	hasIndex := false
	for path := range files {
		if !strings.HasPrefix(path, "frontend/") {
			continue
		}
		hasFrontendDir = true
		if path == "frontend/index.tsx" {
			hasIndex = true
		}
	}
	if !hasFrontendDir {
		result.addWarning("NO_FRONTEND_DIR", "no frontend/ assets (check the shared frontend source tree)", "", 0)
		return
	}
	if !hasIndex {
		result.addError("NO_INDEX_TSX", "frontend/index.tsx missing", "frontend/index.tsx", 0)
	}
}

func (v *Validator) validateDependencies(manifest apitypes.AgentManifest, result *ValidationResult) {
	if v.toolSlugs != nil {
		for _, slug := range manifest.Tools {
			if _, ok := v.toolSlugs[slug]; !ok {
				result.addWarning("UNKNOWN_TOOL", "tool '"+slug+"' not found in the registry", "manifest.json", 0)
			}
		}
	}
	if v.connectorSlugs != nil {
		for _, slug := range manifest.Connectors {
			if _, ok := v.connectorSlugs[slug]; !ok {
				result.addWarning("UNKNOWN_CONNECTOR", "connector '"+slug+"' not found in the registry", "manifest.json", 0)
			}
		}
	}
}
