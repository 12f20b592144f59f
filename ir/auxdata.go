package ir

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// AuxTable is a named side-table attached to a module carrying metadata
// (spec.md GLOSSARY). Data is deliberately untyped at this layer; the
// named accessors below (FunctionEntries, Comments, …) are what give
// each table its concrete shape.
type AuxTable struct {
	Name string
	Data any
}

// Aux returns the named table and whether it exists.
func (m *Module) Aux(name string) (*AuxTable, bool) {
	t, ok := m.aux[name]
	return t, ok
}

// SetAux installs data under name, replacing any existing table.
func (m *Module) SetAux(name string, data any) *AuxTable {
	t := &AuxTable{Name: name, Data: data}
	m.aux[name] = t
	return t
}

// DeleteAux removes the named table wholesale. Used by the driver's
// finalization step to drop cfiDirectives after a rewrite pass
// (spec.md §4.D, "Finalization").
func (m *Module) DeleteAux(name string) {
	delete(m.aux, name)
}

// AuxNames lists every aux table currently attached to the module, in
// sorted order so callers (and test output) get a stable listing
// instead of Go's randomized map iteration order.
func (m *Module) AuxNames() []string {
	out := maps.Keys(m.aux)
	slices.Sort(out)
	return out
}

// GetOrInsertAux returns the named table's data, creating it with zero()
// if absent. T is typically a map or slice type so mutations made
// through the returned value are visible to later callers, mirroring
// gtirb's `_auxdata.<name>.get_or_insert(module)` accessors in
// original_source/gtirb_rewriting/rewriting.py.
func GetOrInsertAux[T any](m *Module, name string, zero func() T) T {
	t, ok := m.aux[name]
	if !ok {
		v := zero()
		m.aux[name] = &AuxTable{Name: name, Data: v}
		return v
	}
	v, ok := t.Data.(T)
	if !ok {
		panic("ir: aux table " + name + " has unexpected type")
	}
	return v
}

// GetOrInsertOffsetAux returns the named table as an *OffsetMap,
// creating it if absent, and upgrading it in place if it exists but
// isn't already offset-keyed (spec.md §4.B guarantee 6).
func GetOrInsertOffsetAux(m *Module, name string) *OffsetMap {
	t, ok := m.aux[name]
	if !ok {
		om := NewOffsetMap()
		m.aux[name] = &AuxTable{Name: name, Data: om}
		return om
	}
	if om, ok := t.Data.(*OffsetMap); ok {
		return om
	}

	om := NewOffsetMap()
	if raw, ok := t.Data.(map[Element]map[int64]any); ok {
		for elem, sub := range raw {
			om.ReplaceElement(elem, sub)
		}
	}
	t.Data = om
	return om
}
