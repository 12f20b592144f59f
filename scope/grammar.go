package scope

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/arc-language/rewriteir/ir"
)

// expr is the grammar for the small textual scope language a patch
// plan's config file uses to name a scope without embedding Go (spec.md
// §6 note: patch plans are data, not code). Forms:
//
//	all-functions
//	all-blocks
//	function-entry:<name>
//	at:<function-name>:<block-index>:<offset>:<length>
//
// block-index is the function's block position in GetAllBlocks order
// (stable by address), the only addressing scheme that makes sense for
// a config file authored against source, not a specific build.
type expr struct {
	Kind string   `parser:"@Ident"`
	Args []string `parser:"( \":\" @(Ident|Int) )*"`
}

var exprParser = participle.MustBuild[expr](
	participle.Lexer(lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_\-]*`},
		{Name: "Int", Pattern: `[0-9]+`},
		{Name: "Colon", Pattern: `:`},
		{Name: "Whitespace", Pattern: `\s+`},
	})),
	participle.Elide("Whitespace"),
)

// Parse compiles a textual scope expression into a Scope. module, when
// non-nil, resolves "at" expressions into a concrete *ir.Function /
// *ir.CodeBlock pair; it may be nil for the other forms, which name no
// particular build's functions or blocks.
func Parse(module *ir.Module, text string) (Scope, error) {
	e, err := exprParser.ParseString("", text)
	if err != nil {
		return nil, fmt.Errorf("scope: %w", err)
	}
	switch e.Kind {
	case "all-functions":
		if len(e.Args) != 0 {
			return nil, fmt.Errorf("scope: all-functions takes no arguments")
		}
		return AllFunctions(), nil
	case "all-blocks":
		if len(e.Args) != 0 {
			return nil, fmt.Errorf("scope: all-blocks takes no arguments")
		}
		return AllBlocks(), nil
	case "function-entry":
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("scope: function-entry:<name> takes exactly one argument")
		}
		return FunctionEntry(e.Args[0]), nil
	case "at":
		return parseAt(module, e.Args)
	default:
		return nil, fmt.Errorf("scope: unrecognized scope kind %q", e.Kind)
	}
}

func parseAt(module *ir.Module, args []string) (Scope, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("scope: at:<function>:<block-index>:<offset>:<length> takes exactly four arguments")
	}
	if module == nil {
		return nil, fmt.Errorf("scope: at:... requires a module to resolve against")
	}
	funcName := args[0]
	blockIndex, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("scope: invalid block index %q: %w", args[1], err)
	}
	offset, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("scope: invalid offset %q: %w", args[2], err)
	}
	length, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("scope: invalid length %q: %w", args[3], err)
	}

	var target *ir.Function
	for _, f := range ir.Functions(module) {
		if symbolNamed(f.Names, funcName) {
			target = f
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("scope: no function named %q", funcName)
	}
	blocks := target.GetAllBlocks()
	if blockIndex < 0 || blockIndex >= len(blocks) {
		return nil, fmt.Errorf("scope: block index %d out of range for function %q (%d blocks)",
			blockIndex, funcName, len(blocks))
	}
	return SpecificLocation(target, blocks[blockIndex], offset, length), nil
}
