// Package sandbox implements the two-stage analysis sandbox. The
// static stage walks a tree-sitter CST of submitted Python looking for
// deny-listed imports, calls, attribute accesses, and dunder names; the
// dynamic stage hands code that passes into an isolated child process
// with wall-clock/CPU/RSS limits.
package sandbox

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const (
	// MaxASTNodes caps the number of CST nodes a submission may parse into.
	MaxASTNodes = 10000
	// MaxCodeLength caps the raw source length in bytes.
	MaxCodeLength = 500000
	// MaxStringLiteral caps any single string literal's length.
	MaxStringLiteral = 100000
)

// allowedModules is the closed import allow-list; only these top-level
// module names may appear in an import or import-from statement.
var allowedModules = map[string]bool{
	"numpy": true, "pandas": true, "statistics": true, "math": true,
	"decimal": true, "fractions": true, "collections": true,
	"itertools": true, "functools": true, "datetime": true,
	"re": true, "string": true, "json": true, "typing": true,
}

// AllowedModules returns the import allow-list, sorted, for the
// /api/scripts/allowed-modules endpoint.
func AllowedModules() []string {
	out := make([]string, 0, len(allowedModules))
	for name := range allowedModules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// forbiddenNames is the closed deny-list of bare identifiers/calls.
var forbiddenNames = map[string]bool{
	"eval": true, "exec": true, "compile": true, "execfile": true,
	"open": true, "file": true, "input": true, "raw_input": true,
	"reload": true, "__import__": true,
	"globals": true, "locals": true, "vars": true, "dir": true,
	"getattr": true, "setattr": true, "delattr": true,
	"memoryview": true, "bytearray": true,
	"breakpoint": true, "credits": true, "license": true, "copyright": true,
	"exit": true, "quit": true, "help": true,
}

// forbiddenAttrs blocks introspection surface regardless of dunder shape.
var forbiddenAttrs = map[string]bool{
	"__import__": true, "__loader__": true, "__spec__": true,
	"__builtins__": true, "__globals__": true, "__locals__": true,
	"__code__": true, "__closure__": true, "__func__": true,
	"__self__": true, "__dict__": true, "__class__": true, "__bases__": true,
	"__mro__": true, "__subclasses__": true, "__init_subclass__": true,
	"__reduce__": true, "__reduce_ex__": true,
	"_getframe": true, "_current_frames": true,
	"gi_frame": true, "gi_code": true, "f_globals": true, "f_locals": true,
	"f_code": true, "f_back": true, "co_code": true, "func_globals": true,
	"func_code": true, "tb_frame": true, "tb_next": true,
}

// allowedDunders is the narrow set of dunder attributes/names a script may
// reference directly (arithmetic, comparison, iteration protocol).
var allowedDunders = map[string]bool{
	"__name__": true, "__doc__": true, "__str__": true, "__repr__": true,
	"__len__": true, "__iter__": true, "__next__": true,
	"__add__": true, "__sub__": true, "__mul__": true, "__truediv__": true,
	"__floordiv__": true, "__mod__": true,
	"__eq__": true, "__ne__": true, "__lt__": true, "__le__": true,
	"__gt__": true, "__ge__": true,
	"__bool__": true, "__int__": true, "__float__": true, "__abs__": true,
	"__neg__": true, "__pos__": true,
}

// dangerousMethods names attribute-call targets that are refused unless
// the receiver is the bare `json` module calling loads/dumps/load/dump.
var dangerousMethods = map[string]bool{
	"system": true, "popen": true, "spawn": true, "call": true, "run": true,
	"Popen": true, "listdir": true, "remove": true, "rmdir": true,
	"unlink": true, "makedirs": true, "mkdir": true, "environ": true,
	"getenv": true, "putenv": true,
	"load": true, "loads": true, "dump": true, "dumps": true,
	"read": true, "write": true, "readline": true, "readlines": true,
}

// ValidationResult is the outcome of the static stage.
type ValidationResult struct {
	Safe    bool     `json:"safe"`
	Errors  []string `json:"errors"`
	Imports []string `json:"imports,omitempty"`
}

var pythonLang = python.GetLanguage()

// Validate parses code as Python and walks its CST, collecting every
// violation across the whole tree rather than stopping at the first one.
func Validate(code string) (*ValidationResult, error) {
	if len(code) == 0 {
		return &ValidationResult{Safe: false, Errors: []string{"code must not be empty"}}, nil
	}
	if len(code) > MaxCodeLength {
		return &ValidationResult{Safe: false, Errors: []string{fmt.Sprintf("code too long (>%d chars)", MaxCodeLength)}}, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(pythonLang)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil {
		return nil, fmt.Errorf("parse code: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return &ValidationResult{Safe: false, Errors: []string{"syntax error in submitted code"}}, nil
	}

	v := &validatorState{src: []byte(code), imports: map[string]bool{}}
	v.walk(root)

	imports := make([]string, 0, len(v.imports))
	for m := range v.imports {
		imports = append(imports, m)
	}
	sort.Strings(imports)

	return &ValidationResult{
		Safe:    len(v.errors) == 0,
		Errors:  v.errors,
		Imports: imports,
	}, nil
}

type validatorState struct {
	src       []byte
	errors    []string
	imports   map[string]bool
	nodeCount int
}

func (v *validatorState) text(n *sitter.Node) string {
	return string(v.src[n.StartByte():n.EndByte()])
}

func (v *validatorState) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	v.nodeCount++
	if v.nodeCount > MaxASTNodes {
		v.addOnce(fmt.Sprintf("code too complex (>%d AST nodes)", MaxASTNodes))
		return
	}

	switch n.Type() {
	case "import_statement":
		v.visitImport(n)
	case "import_from_statement":
		v.visitImportFrom(n)
	case "call":
		v.visitCall(n)
	case "attribute":
		v.visitAttribute(n)
	case "identifier":
		v.visitIdentifier(n)
	case "string":
		v.visitString(n)
	case "with_statement":
		v.visitWith(n)
	case "global_statement":
		v.errors = append(v.errors, "'global' is not allowed")
	case "nonlocal_statement":
		v.errors = append(v.errors, "'nonlocal' is not allowed")
	case "await":
		v.errors = append(v.errors, "'await' is not allowed")
	}
	if n.Type() == "function_definition" && isAsyncDef(n, v.src) {
		v.errors = append(v.errors, "async functions are not allowed")
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		v.walk(n.Child(i))
	}
}

// addOnce appends a message only if it isn't already the last one queued,
// so a single oversized node doesn't spam the same complaint per level.
func (v *validatorState) addOnce(msg string) {
	if len(v.errors) > 0 && v.errors[len(v.errors)-1] == msg {
		return
	}
	v.errors = append(v.errors, msg)
}

func isAsyncDef(n *sitter.Node, src []byte) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "async" || string(src[c.StartByte():c.EndByte()]) == "async" {
			return true
		}
		if c.Type() == "def" {
			break
		}
	}
	return false
}

func (v *validatorState) visitImport(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() != "dotted_name" && c.Type() != "aliased_import" {
			continue
		}
		name := c
		if c.Type() == "aliased_import" {
			if dn := c.ChildByFieldName("name"); dn != nil {
				name = dn
			}
		}
		top := firstDotSegment(v.text(name))
		if !allowedModules[top] {
			v.errors = append(v.errors, fmt.Sprintf("import not allowed: %q", v.text(name)))
		} else {
			v.imports[top] = true
		}
	}
}

func (v *validatorState) visitImportFrom(n *sitter.Node) {
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return
	}
	top := firstDotSegment(v.text(mod))
	if !allowedModules[top] {
		v.errors = append(v.errors, fmt.Sprintf("import not allowed: from %q", v.text(mod)))
	} else {
		v.imports[top] = true
	}
}

func firstDotSegment(s string) string {
	for i, r := range s {
		if r == '.' {
			return s[:i]
		}
	}
	return s
}

func (v *validatorState) visitCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	switch fn.Type() {
	case "identifier":
		if forbiddenNames[v.text(fn)] {
			v.errors = append(v.errors, fmt.Sprintf("forbidden function: %q", v.text(fn)))
		}
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		obj := fn.ChildByFieldName("object")
		if attr == nil {
			return
		}
		name := v.text(attr)
		if !dangerousMethods[name] {
			return
		}
		if obj != nil && obj.Type() == "identifier" && v.text(obj) == "json" &&
			(name == "loads" || name == "dumps" || name == "load" || name == "dump") {
			return
		}
		v.errors = append(v.errors, fmt.Sprintf("potentially dangerous method: '.%s()'", name))
	}
}

func (v *validatorState) visitAttribute(n *sitter.Node) {
	attr := n.ChildByFieldName("attribute")
	if attr == nil {
		return
	}
	name := v.text(attr)
	if forbiddenAttrs[name] {
		v.errors = append(v.errors, fmt.Sprintf("forbidden attribute: '.%s'", name))
		return
	}
	if isDunder(name) && !allowedDunders[name] {
		v.errors = append(v.errors, fmt.Sprintf("forbidden dunder attribute: '.%s'", name))
	}
}

func (v *validatorState) visitIdentifier(n *sitter.Node) {
	name := v.text(n)
	if forbiddenNames[name] {
		v.errors = append(v.errors, fmt.Sprintf("forbidden name: %q", name))
	}
	// __result__ is the variable the driver reads the script's result from.
	if isDunder(name) && !allowedDunders[name] && name != "__result__" {
		v.errors = append(v.errors, fmt.Sprintf("forbidden dunder name: %q", name))
	}
}

func (v *validatorState) visitString(n *sitter.Node) {
	if len(v.text(n)) > MaxStringLiteral {
		v.errors = append(v.errors, fmt.Sprintf("string literal too long (>%d chars)", MaxStringLiteral))
	}
}

func (v *validatorState) visitWith(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() != "with_clause" && c.Type() != "with_item" {
			continue
		}
		v.rejectOpenCall(c)
	}
}

func (v *validatorState) rejectOpenCall(n *sitter.Node) {
	if n.Type() == "call" {
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" && v.text(fn) == "open" {
			v.errors = append(v.errors, "'open()' is not allowed")
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		v.rejectOpenCall(n.Child(i))
	}
}

func isDunder(name string) bool {
	return len(name) > 4 && name[:2] == "__" && name[len(name)-2:] == "__"
}
