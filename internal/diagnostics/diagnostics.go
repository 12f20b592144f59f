// Package diagnostics renders patch-application failures to an
// optional log writer, the same nilable-io.Writer-plus-spew.Fdump shape
// _examples/cilium-coverbee/instrumentation.go uses for its
// verifier-log reporting.
package diagnostics

import (
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// LogPatchSyntaxError writes a multi-line report of an assembly syntax
// error to w: the source text with the offending line singled out and
// a column caret under it, mirroring
// RewritingContext._log_patch_error in original_source. A nil w is a
// no-op, matching the "logging is entirely optional" shape the driver
// carries throughout.
func LogPatchSyntaxError(w io.Writer, patchLabel string, patchID int, line, column int, message, asm string) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "error in %s (#%d): %s\n", patchLabel, patchID, message)
	lines := strings.Split(asm, "\n")

	errLineIdx := line - 1
	for i, l := range lines {
		if i >= errLineIdx {
			break
		}
		fmt.Fprintln(w, l)
	}
	if errLineIdx >= 0 && errLineIdx < len(lines) {
		offending := lines[errLineIdx]
		fmt.Fprintln(w, offending)
		caretCol := column
		if caretCol < 0 {
			caretCol = 0
		}
		tail := len(offending) - caretCol - 1
		if tail < 0 {
			tail = 0
		}
		fmt.Fprintln(w, strings.Repeat(" ", caretCol)+"^"+strings.Repeat("~", tail))
	}
	for i := errLineIdx + 1; i < len(lines); i++ {
		fmt.Fprintln(w, lines[i])
	}
}

// DumpConstraints spew-dumps a patch's constraints to w when verbose is
// true, for post-mortem inspection of exactly what the ABI synthesizer
// was asked to arrange.
func DumpConstraints(w io.Writer, verbose bool, constraints any) {
	if w == nil || !verbose {
		return
	}
	spew.Fdump(w, constraints)
}
