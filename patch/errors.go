package patch

import "fmt"

// FunctionPatchConstraintError is returned when a patch registered via
// RegisterInsertFunction declares non-empty constraints: a function
// insertion runs standalone, with no enclosing function context to
// save/restore registers against, so constraints make no sense there
// (spec.md §4.D step 3).
type FunctionPatchConstraintError struct {
	Name string
}

func (e *FunctionPatchConstraintError) Error() string {
	return fmt.Sprintf("patch: function insertion %q must declare empty constraints", e.Name)
}

// OverlappingEditsError is returned when two insertions registered
// against the same block would overlap once resolved to offsets
// (spec.md §4.D, "insertions and replacements must not overlap").
type OverlappingEditsError struct {
	Reason string
}

func (e *OverlappingEditsError) Error() string {
	return "patch: overlapping edits: " + e.Reason
}
