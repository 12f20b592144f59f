package ir

import "sort"

// ByteInterval owns a contiguous byte string plus the blocks and
// symbolic expressions laid on top of it. Invariant (spec.md §3): every
// block lies fully within [0, Size); block offsets are non-negative;
// len(Contents) == Size.
type ByteInterval struct {
	id       UUID
	Section  *Section
	Contents []byte
	Size     int64

	blocks   map[*CodeBlock]struct{}
	symExprs map[int64]SymbolicExpression
}

// NewByteInterval wraps contents in a fresh, block-less byte interval.
func NewByteInterval(contents []byte) *ByteInterval {
	buf := make([]byte, len(contents))
	copy(buf, contents)
	return &ByteInterval{
		id:       NewUUID(),
		Contents: buf,
		Size:     int64(len(buf)),
		blocks:   make(map[*CodeBlock]struct{}),
		symExprs: make(map[int64]SymbolicExpression),
	}
}

func (bi *ByteInterval) elementUUID() UUID { return bi.id }

// UUID returns the byte interval's stable identity.
func (bi *ByteInterval) UUID() UUID { return bi.id }

// AddBlock attaches block to bi. The block must already have its Offset
// and Size set relative to bi.
func (bi *ByteInterval) AddBlock(block *CodeBlock) {
	block.ByteInterval = bi
	bi.blocks[block] = struct{}{}
}

// RemoveBlock detaches block from bi. It is a bug to remove a block
// that is still referenced by a CFG edge or a symbol; callers must
// retarget those first (spec.md §3, Ownership).
func (bi *ByteInterval) RemoveBlock(block *CodeBlock) {
	delete(bi.blocks, block)
	block.ByteInterval = nil
}

// Blocks returns every block in bi, ordered by ascending offset. Ties
// (same offset, e.g. a zero-sized block that hasn't been repaired yet)
// preserve insertion order via a stable sort.
func (bi *ByteInterval) Blocks() []*CodeBlock {
	out := make([]*CodeBlock, 0, len(bi.blocks))
	for b := range bi.blocks {
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// HasBlock reports whether block is currently attached to bi.
func (bi *ByteInterval) HasBlock(block *CodeBlock) bool {
	_, ok := bi.blocks[block]
	return ok
}

// SymbolicExpressionAt returns the expression at displacement disp, if
// any.
func (bi *ByteInterval) SymbolicExpressionAt(disp int64) (SymbolicExpression, bool) {
	e, ok := bi.symExprs[disp]
	return e, ok
}

// SetSymbolicExpression installs (or overwrites) the expression at disp.
func (bi *ByteInterval) SetSymbolicExpression(disp int64, expr SymbolicExpression) {
	bi.symExprs[disp] = expr
}

// DeleteSymbolicExpression removes any expression at disp.
func (bi *ByteInterval) DeleteSymbolicExpression(disp int64) {
	delete(bi.symExprs, disp)
}

// SymbolicExpressions returns a snapshot of the displacement->expression
// map.
func (bi *ByteInterval) SymbolicExpressions() map[int64]SymbolicExpression {
	out := make(map[int64]SymbolicExpression, len(bi.symExprs))
	for k, v := range bi.symExprs {
		out[k] = v
	}
	return out
}

// ReplaceSymbolicExpressions discards the current displacement map and
// installs m in its place.
func (bi *ByteInterval) ReplaceSymbolicExpressions(m map[int64]SymbolicExpression) {
	bi.symExprs = m
}
