package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arc-language/rewriteir/abi"
	"github.com/arc-language/rewriteir/patch"
)

// planEntry is one row of the JSON patch plan: a scope descriptor
// (parsed by scope.Parse, e.g. "all-functions" or
// "function-entry:main") paired with the raw assembly text to splice
// in. There is no patch-constraint support here: the plan format is a
// thin CLI surface, not the real patch language spec.md leaves
// out-of-scope (SPEC_FULL.md §6).
type planEntry struct {
	Scope string `json:"scope"`
	Asm   string `json:"asm"`
}

type plan struct {
	Insertions []planEntry `json:"insertions"`
}

func loadPlan(path string) (*plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

// rawPatch wraps a plan entry's literal assembly text as a patch.Patch
// with no constraints, the simplest possible implementation of the
// interface.
type rawPatch struct {
	asm string
}

func (p rawPatch) Constraints() abi.Constraints                    { return abi.Constraints{} }
func (p rawPatch) GetAsm(patch.InsertionContext, ...string) string { return p.asm }
