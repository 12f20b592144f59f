// Package patch is the rewriting driver: it resolves registered
// (scope, patch) pairs to concrete locations, invokes each patch's
// assembly through an asmexec.Assembler, and applies the resulting
// fragment via mutate.Splice (spec.md §4.D, §4.E).
package patch

import (
	"github.com/arc-language/rewriteir/abi"
	"github.com/arc-language/rewriteir/ir"
)

// InsertionContext is what a Patch's GetAsm is handed: enough to write
// position- and function-aware assembly (e.g. referencing the
// enclosing function's own symbol, or branching around the rest of the
// block) without the patch author needing driver internals (spec.md
// §3, "InsertionContext").
type InsertionContext struct {
	Module   *ir.Module
	Function *ir.Function
	Block    *ir.CodeBlock

	// Offset is the block-relative offset the insertion lands at.
	Offset int64

	// StackAdjustment is the net stack-pointer displacement the ABI's
	// prologue has already put in effect by the time the patch body
	// runs, so the patch can reference stack slots relative to it.
	StackAdjustment int64
}

// WithStackAdjustment returns a copy of ctx with StackAdjustment set,
// the one field the driver fills in only after the ABI synthesizer has
// run (mirroring dataclasses.replace(context, stack_adjustment=...) in
// original_source/gtirb_rewriting/rewriting.py).
func (ctx InsertionContext) WithStackAdjustment(adjustment int64) InsertionContext {
	ctx.StackAdjustment = adjustment
	return ctx
}

// Patch is a unit of assembly to insert, plus the register/flag/stack
// constraints its body needs the ABI synthesizer to arrange around it
// (spec.md §3, "Patch").
type Patch interface {
	// Constraints describes what the patch body clobbers and needs
	// scratch-allocated.
	Constraints() abi.Constraints

	// GetAsm renders the patch body's assembly text, given its
	// resolved insertion context and the scratch registers the ABI
	// synthesizer allocated for it (len(scratchRegisters) ==
	// Constraints().ScratchCount). An empty return means "nothing to
	// insert here" and the driver skips the edit entirely.
	GetAsm(ctx InsertionContext, scratchRegisters ...string) string
}
