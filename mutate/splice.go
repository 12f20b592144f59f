package mutate

import "github.com/arc-language/rewriteir/ir"

// Splice replaces [offset, offset+replacementLength) of block's bytes
// with fragment, repairing the block's byte interval, its module's CFG
// and symbol table, and every offset-keyed aux table so the module is
// left in a consistent state (spec.md §4.B). It returns the block the
// edit ultimately lands in — block itself on the trivial path or when
// every fragment block has been folded into it, otherwise the last
// fragment block that survives zero-size repair — and the number of
// bytes inserted.
//
// All but one failure mode is a precondition violation and panics
// (see PreconditionViolation); the one recoverable failure is a
// trailing zero-size fragment block with neither a single fall-through
// successor nor an empty edge/symbol set to simply discard
// (UnresolvedZeroBlockError).
func Splice(m *ir.Module, block *ir.CodeBlock, offset, replacementLength int64, fragment *Fragment) (*ir.CodeBlock, int64, error) {
	checkPreconditions(block, offset, replacementLength, fragment)

	bi := block.ByteInterval
	sizeDelta := int64(len(fragment.Bytes)) - replacementLength
	insertsAtEnd := replacementLength == 0 && offset == block.Size
	replacesLastInsn := replacementLength > 0 && offset+replacementLength == block.Size

	trivial := fragment.CFG.Size() == 0 && len(fragment.Symbols) == 0 &&
		!insertsAtEnd && !replacesLastInsn

	if trivial {
		return spliceTrivial(m, bi, block, offset, replacementLength, fragment, sizeDelta)
	}
	return spliceGeneral(m, bi, block, offset, replacementLength, fragment, sizeDelta, insertsAtEnd, replacesLastInsn)
}

func checkPreconditions(block *ir.CodeBlock, offset, replacementLength int64, fragment *Fragment) {
	assertInvariant(block.ByteInterval != nil, "block is not attached to a byte interval")
	assertInvariant(offset >= 0 && offset <= block.Size, "offset %d out of [0, %d]", offset, block.Size)
	assertInvariant(replacementLength >= 0 && replacementLength <= block.Size-offset,
		"replacementLength %d exceeds remaining block bytes (%d)", replacementLength, block.Size-offset)
	assertInvariant(len(fragment.Bytes) > 0, "fragment has no bytes")
	assertInvariant(len(fragment.Blocks) > 0, "fragment has no blocks")
	assertInvariant(fragment.Blocks[0].Size > 0, "fragment's first block must have non-zero size")
	for i, b := range fragment.Blocks {
		if i < len(fragment.Blocks)-1 {
			assertInvariant(b.Size > 0, "only the fragment's last block may have size 0")
		}
		assertInvariant(b != block, "fragment block aliases the block being spliced into")
	}
	if fragment.CFG != nil {
		last := fragment.Blocks[len(fragment.Blocks)-1]
		assertInvariant(len(fragment.CFG.OutEdges(last)) == 0,
			"fragment's last block may not have outgoing edges in fragment.CFG")
	}
}

// spliceTrivial is the fast path (spec.md §4.B, "Trivial case"): no new
// control flow or symbols are introduced, and the edit doesn't touch
// the block's tail, so the fragment is absorbed wholesale into block
// and no new blocks appear in the byte interval.
func spliceTrivial(m *ir.Module, bi *ir.ByteInterval, block *ir.CodeBlock, offset, replacementLength int64, fragment *Fragment, sizeDelta int64) (*ir.CodeBlock, int64, error) {
	p := block.Offset + offset
	shiftOtherBlocks(bi, block, p, sizeDelta)
	rewriteBytesAndOffsetKeyedTables(m, bi, p, replacementLength, sizeDelta, fragment.Bytes, fragment.SymExprs)
	block.Size += sizeDelta
	return block, int64(len(fragment.Bytes)), nil
}

// spliceGeneral is the full algorithm (spec.md §4.B, steps 1-10): the
// edit carries new control flow, new symbols, or touches the block's
// tail, so block is split and the fragment's blocks are grafted on.
func spliceGeneral(
	m *ir.Module, bi *ir.ByteInterval, block *ir.CodeBlock, offset, replacementLength int64,
	fragment *Fragment, sizeDelta int64, insertsAtEnd, replacesLastInsn bool,
) (*ir.CodeBlock, int64, error) {
	p := block.Offset + offset
	originalSize := block.Size
	originalOutEdges := m.CFG.OutEdges(block)
	hasFallthroughOut := edgeWithLabelPresent(originalOutEdges, ir.Fallthrough)

	// Step 1: truncate block to its head.
	block.Size = offset

	// Step 2: the fragment's last block absorbs whatever of the
	// original block's bytes survive past the edit.
	lastFragBlock := fragment.Blocks[len(fragment.Blocks)-1]
	lastFragBlock.Size += originalSize - offset - replacementLength

	// Merge the fragment's own edges and symbols into the module now,
	// so every later step (redirection, zero-size repair) reasons about
	// a single unified graph instead of two.
	m.CFG.Merge(fragment.CFG)
	for _, s := range fragment.Symbols {
		m.AddSymbol(s)
	}

	// Step 3: connect block to the fragment's head.
	var headFallthrough ir.Edge
	addedHeadFallthrough := false
	if !insertsAtEnd || hasFallthroughOut {
		headFallthrough = ir.Edge{Source: block, Target: fragment.Blocks[0], Label: ir.Fallthrough}
		m.CFG.AddEdge(headFallthrough)
		addedHeadFallthrough = true
	}

	// Step 4: redirect block's original outgoing edges.
	for _, e := range originalOutEdges {
		switch {
		case insertsAtEnd:
			if e.Label == ir.Fallthrough {
				m.CFG.RemoveEdge(e)
				m.CFG.AddEdge(ir.Edge{Source: lastFragBlock, Target: e.Target, Label: e.Label})
			}
		case replacesLastInsn:
			m.CFG.RemoveEdge(e)
			if e.Label == ir.Fallthrough {
				m.CFG.AddEdge(ir.Edge{Source: lastFragBlock, Target: e.Target, Label: e.Label})
			}
		default: // interior edit
			m.CFG.RemoveEdge(e)
			m.CFG.AddEdge(ir.Edge{Source: lastFragBlock, Target: e.Target, Label: e.Label})
		}
	}

	fragBlocks := fragment.Blocks

	// Step 5: zero-size repair for the head.
	if block.Size == 0 {
		if addedHeadFallthrough {
			m.CFG.RemoveEdge(headFallthrough)
		}
		head := fragBlocks[0]
		block.Size = head.Size
		m.CFG.RetargetTarget(head, block)
		m.CFG.RetargetSource(head, block)
		migrateSymbolReferents(m, head, block)
		fragBlocks = fragBlocks[1:]
	}

	// Step 6: zero-size repair for the tail.
	var tail *ir.CodeBlock
	if len(fragBlocks) > 0 {
		tail = fragBlocks[len(fragBlocks)-1]
	} else {
		tail = block
	}
	if tail.Size == 0 {
		in := m.CFG.InEdges(tail)
		out := m.CFG.OutEdges(tail)
		hasReferent := symbolsReferencing(m, tail) != nil
		switch {
		case len(in) == 0 && !hasReferent:
			for _, e := range out {
				m.CFG.RemoveEdge(e)
			}
		case len(out) == 1 && out[0].Label == ir.Fallthrough:
			target := out[0].Target
			m.CFG.RemoveEdge(out[0])
			m.CFG.RetargetTarget(tail, target)
			migrateSymbolReferents(m, tail, target)
		default:
			return nil, 0, &UnresolvedZeroBlockError{Reason: "trailing zero-size block has ambiguous successors"}
		}
		if tail != block && len(fragBlocks) > 0 {
			fragBlocks = fragBlocks[:len(fragBlocks)-1]
		}
	}

	// Steps 7-8: existing blocks downstream of the edit shift by
	// sizeDelta before the fragment's surviving blocks are attached, so
	// the shift never touches blocks that aren't there yet.
	shiftOtherBlocks(bi, block, p, sizeDelta)

	for _, b := range fragBlocks {
		b.Offset = p + b.Offset
		bi.AddBlock(b)
	}

	// Steps 9-10: splice the physical bytes and rewrite offset-keyed
	// tables (symbolic expressions, comments, padding, …).
	rewriteBytesAndOffsetKeyedTables(m, bi, p, replacementLength, sizeDelta, fragment.Bytes, fragment.SymExprs)

	endBlock := block
	if len(fragBlocks) > 0 {
		endBlock = fragBlocks[len(fragBlocks)-1]
	}
	return endBlock, int64(len(fragment.Bytes)), nil
}

// shiftOtherBlocks moves every block in bi other than block whose
// offset is at or past p by sizeDelta (spec.md §4.B guarantee 3). It
// must run before any new fragment blocks are attached to bi, since
// those already carry their final offset and must not be shifted a
// second time.
func shiftOtherBlocks(bi *ir.ByteInterval, block *ir.CodeBlock, p, sizeDelta int64) {
	if sizeDelta == 0 {
		return
	}
	for _, b := range bi.Blocks() {
		if b == block {
			continue
		}
		if b.Offset >= p {
			b.Offset += sizeDelta
		}
	}
}

// rewriteBytesAndOffsetKeyedTables performs the physical layout edit
// shared by both splice paths: replace [p, p+replacementLength) of bi's
// contents with fragmentBytes, then carry every offset-keyed table
// (symbolic expressions and the platform aux tables) across the edit by
// the same policy — keep what's before p, drop what falls inside the
// replaced span, shift what's after by sizeDelta, and splice in
// whatever the fragment places at its own offsets (spec.md §4.B
// guarantees 5-6).
func rewriteBytesAndOffsetKeyedTables(
	m *ir.Module, bi *ir.ByteInterval, p, replacementLength, sizeDelta int64,
	fragmentBytes []byte, fragmentSymExprs map[int64]ir.SymbolicExpression,
) {
	old := bi.Contents
	next := make([]byte, 0, int64(len(old))+sizeDelta)
	next = append(next, old[:p]...)
	next = append(next, fragmentBytes...)
	next = append(next, old[p+replacementLength:]...)
	bi.Contents = next
	bi.Size += sizeDelta

	next2 := shiftOffsetValues(bi.SymbolicExpressions(), p, replacementLength, sizeDelta)
	for rel, expr := range fragmentSymExprs {
		next2[p+rel] = expr
	}
	bi.ReplaceSymbolicExpressions(next2)

	for _, name := range offsetKeyedAuxTableNames {
		om := ir.GetOrInsertOffsetAux(m, name)
		sub := om.Element(bi)
		if sub == nil {
			continue
		}
		om.ReplaceElement(bi, shiftOffsetValues(sub, p, replacementLength, sizeDelta))
	}
}

// shiftOffsetValues applies the keep/drop/shift policy generically over
// any displacement-keyed map.
func shiftOffsetValues[T any](m map[int64]T, p, replacementLength, sizeDelta int64) map[int64]T {
	out := make(map[int64]T, len(m))
	for k, v := range m {
		switch {
		case k < p:
			out[k] = v
		case k < p+replacementLength:
			// falls inside the replaced span; dropped.
		default:
			out[k+sizeDelta] = v
		}
	}
	return out
}

func edgeWithLabelPresent(edges []ir.Edge, label ir.EdgeLabel) bool {
	for _, e := range edges {
		if e.Label == label {
			return true
		}
	}
	return false
}

// migrateSymbolReferents repoints every symbol whose referent is from
// to to instead (spec.md §4.B, "migrate any symbol referents").
func migrateSymbolReferents(m *ir.Module, from, to ir.CfgNode) {
	for _, s := range m.Symbols {
		if s.Referent == from {
			s.Referent = to
		}
	}
}

func symbolsReferencing(m *ir.Module, node ir.CfgNode) []*ir.Symbol {
	var out []*ir.Symbol
	for _, s := range m.Symbols {
		if s.Referent == node {
			out = append(out, s)
		}
	}
	return out
}
