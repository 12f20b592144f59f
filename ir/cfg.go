package ir

// EdgeLabel carries the kind of control transfer an Edge represents.
type EdgeLabel int

const (
	Fallthrough EdgeLabel = iota
	Branch
	Call
	Return
	SyscallReturn
)

func (l EdgeLabel) String() string {
	switch l {
	case Fallthrough:
		return "fallthrough"
	case Branch:
		return "branch"
	case Call:
		return "call"
	case Return:
		return "return"
	case SyscallReturn:
		return "syscall-return"
	default:
		return "unknown"
	}
}

// CfgNode is anything that can be an Edge endpoint: a CodeBlock or a
// ProxyBlock.
type CfgNode interface {
	Element
	isCfgNode()
}

// Edge is a CFG tuple (source, target, label). Edges are value types;
// the CFG indexes them by source and target so lookups stay O(1)
// amortized instead of O(|E|) linear scans, mirroring how
// _examples/cilium-coverbee's ProgBlock keeps direct Branch/NoBranch
// pointers rather than re-deriving successors on each query.
type Edge struct {
	Source CfgNode
	Target CfgNode
	Label  EdgeLabel
}

// CFG is the module-wide control flow graph. It owns no nodes (those are
// owned by their byte intervals/module); it only records edges between
// them.
type CFG struct {
	edges map[Edge]struct{}
	bySrc map[CfgNode]map[Edge]struct{}
	byDst map[CfgNode]map[Edge]struct{}
}

// NewCFG returns an empty control flow graph.
func NewCFG() *CFG {
	return &CFG{
		edges: make(map[Edge]struct{}),
		bySrc: make(map[CfgNode]map[Edge]struct{}),
		byDst: make(map[CfgNode]map[Edge]struct{}),
	}
}

// AddEdge inserts e if it isn't already present.
func (g *CFG) AddEdge(e Edge) {
	if _, ok := g.edges[e]; ok {
		return
	}
	g.edges[e] = struct{}{}
	indexAdd(g.bySrc, e.Source, e)
	indexAdd(g.byDst, e.Target, e)
}

// RemoveEdge deletes e if present. Removing an absent edge is a no-op,
// matching Python set.discard semantics used throughout
// original_source/gtirb_rewriting/utils.py's _substitute_block.
func (g *CFG) RemoveEdge(e Edge) {
	if _, ok := g.edges[e]; !ok {
		return
	}
	delete(g.edges, e)
	indexRemove(g.bySrc, e.Source, e)
	indexRemove(g.byDst, e.Target, e)
}

func indexAdd(idx map[CfgNode]map[Edge]struct{}, node CfgNode, e Edge) {
	set, ok := idx[node]
	if !ok {
		set = make(map[Edge]struct{})
		idx[node] = set
	}
	set[e] = struct{}{}
}

func indexRemove(idx map[CfgNode]map[Edge]struct{}, node CfgNode, e Edge) {
	set, ok := idx[node]
	if !ok {
		return
	}
	delete(set, e)
	if len(set) == 0 {
		delete(idx, node)
	}
}

// OutEdges returns a snapshot slice of edges originating at node, in no
// particular order. Snapshotting (rather than returning the live map)
// lets callers mutate the CFG while iterating, which the mutation
// engine's edge-redirection steps rely on.
func (g *CFG) OutEdges(node CfgNode) []Edge {
	if g == nil {
		return nil
	}
	return snapshot(g.bySrc[node])
}

// InEdges returns a snapshot slice of edges terminating at node.
func (g *CFG) InEdges(node CfgNode) []Edge {
	if g == nil {
		return nil
	}
	return snapshot(g.byDst[node])
}

func snapshot(set map[Edge]struct{}) []Edge {
	out := make([]Edge, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}

// Merge adds every edge of other into g.
func (g *CFG) Merge(other *CFG) {
	if other == nil {
		return
	}
	for e := range other.edges {
		g.AddEdge(e)
	}
}

// Size returns the number of edges in the graph. A nil *CFG (a
// fragment that introduces no new control flow) behaves as empty.
func (g *CFG) Size() int {
	if g == nil {
		return 0
	}
	return len(g.edges)
}

// RetargetSource replaces every edge from 'from' with the same edge
// sourced at 'to' instead, preserving target and label. Used by the
// mutation engine's redirection steps (spec.md §4.B steps 4–6) and by
// block substitution (spec.md §8 testable property 3).
func (g *CFG) RetargetSource(from, to CfgNode) {
	for _, e := range g.OutEdges(from) {
		g.RemoveEdge(e)
		g.AddEdge(Edge{Source: to, Target: e.Target, Label: e.Label})
	}
}

// RetargetTarget replaces every edge into 'to' with the same edge
// targeting 'with' instead, preserving source and label.
func (g *CFG) RetargetTarget(to, with CfgNode) {
	for _, e := range g.InEdges(to) {
		g.RemoveEdge(e)
		g.AddEdge(Edge{Source: e.Source, Target: with, Label: e.Label})
	}
}
