package ir

import "fmt"

// ErrNotFound is returned by OffsetMap.Delete when the key is absent
// (spec.md §4.A: "delete((elem, disp)): fails with NotFound if absent").
var ErrNotFound = fmt.Errorf("ir: offset not found")

// OffsetMap is the dual-view offset-keyed auxiliary map (spec.md §4.A):
// a container holding an internal two-level map element -> displacement
// -> value. It backs every aux table the mutation engine rewrites in
// place (comments, padding, symbolicExpressionSizes) as well as
// anything else a caller wants to key by byte position.
type OffsetMap struct {
	data map[Element]map[int64]any
}

// NewOffsetMap returns an empty offset map.
func NewOffsetMap() *OffsetMap {
	return &OffsetMap{data: make(map[Element]map[int64]any)}
}

// Insert upserts a single (element, displacement) -> value entry.
func (m *OffsetMap) Insert(off Offset, v any) {
	sub, ok := m.data[off.Element]
	if !ok {
		sub = make(map[int64]any)
		m.data[off.Element] = sub
	}
	sub[off.Displacement] = v
}

// Lookup returns the value at off, if present.
func (m *OffsetMap) Lookup(off Offset) (any, bool) {
	sub, ok := m.data[off.Element]
	if !ok {
		return nil, false
	}
	v, ok := sub[off.Displacement]
	return v, ok
}

// ReplaceElement replaces the entire displacement submap for elem with
// dispMap in one shot. This is O(len(dispMap)), not O(total map size) —
// the property the splice path depends on when an element's layout has
// shifted (spec.md §9, "Dual-keyed offset map").
func (m *OffsetMap) ReplaceElement(elem Element, dispMap map[int64]any) {
	if len(dispMap) == 0 {
		delete(m.data, elem)
		return
	}
	cp := make(map[int64]any, len(dispMap))
	for k, v := range dispMap {
		cp[k] = v
	}
	m.data[elem] = cp
}

// Element returns a snapshot of the displacement submap for elem, or
// nil if elem has no entries.
func (m *OffsetMap) Element(elem Element) map[int64]any {
	sub, ok := m.data[elem]
	if !ok {
		return nil
	}
	cp := make(map[int64]any, len(sub))
	for k, v := range sub {
		cp[k] = v
	}
	return cp
}

// Delete removes the entry at off, returning ErrNotFound if it wasn't
// present.
func (m *OffsetMap) Delete(off Offset) error {
	sub, ok := m.data[off.Element]
	if !ok {
		return ErrNotFound
	}
	if _, ok := sub[off.Displacement]; !ok {
		return ErrNotFound
	}
	delete(sub, off.Displacement)
	if len(sub) == 0 {
		delete(m.data, off.Element)
	}
	return nil
}

// DeleteElement drops every entry for elem.
func (m *OffsetMap) DeleteElement(elem Element) {
	delete(m.data, elem)
}

// Triple is one (element, displacement, value) entry, returned by
// Iterate.
type Triple struct {
	Element      Element
	Displacement int64
	Value        any
}

// Iterate returns every entry in the map. Order is unspecified.
func (m *OffsetMap) Iterate() []Triple {
	out := make([]Triple, 0, m.Size())
	for elem, sub := range m.data {
		for disp, v := range sub {
			out = append(out, Triple{Element: elem, Displacement: disp, Value: v})
		}
	}
	return out
}

// Size returns the total number of entries across all elements.
func (m *OffsetMap) Size() int {
	n := 0
	for _, sub := range m.data {
		n += len(sub)
	}
	return n
}
