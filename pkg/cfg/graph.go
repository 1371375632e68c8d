package cfg

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/traverse"
)

// kindLine is a gonum line carrying the CFG edge kind.
type kindLine struct {
	multi.Line
	Kind EdgeKind
}

// directed converts the CFG into a gonum multigraph. Line ids are the edge indexes,
// so iterating lines by id reproduces the original edge order.
func (f *FunctionCFG) directed() *multi.DirectedGraph {
	g := multi.NewDirectedGraph()
	for _, b := range f.Nodes {
		g.AddNode(multi.Node(b.ID))
	}
	for i, e := range f.Edges {
		g.SetLine(kindLine{
			Line: multi.Line{F: multi.Node(e.Source), T: multi.Node(e.Dest), UID: int64(i)},
			Kind: e.Kind,
		})
	}
	return g
}

// Unreachable returns the blocks that cannot be reached from any initial node, in id
// order. They come from code following a jump.
func (f *FunctionCFG) Unreachable() []int {
	g := f.directed()
	var df traverse.DepthFirst
	for _, id := range f.InitNodes {
		if g.Node(int64(id)) != nil {
			df.Walk(g, g.Node(int64(id)), nil)
		}
	}

	var out []int
	for _, b := range f.Nodes {
		if !df.Visited(multi.Node(b.ID)) {
			out = append(out, b.ID)
		}
	}
	return out
}

// Validate checks the structural invariants of a sealed CFG: dense increasing block ids,
// edges between existing blocks, and init/final nodes that are blocks.
func (f *FunctionCFG) Validate() error {
	for i, b := range f.Nodes {
		if b.ID != i+1 {
			return fmt.Errorf("function %q: block %d at position %d, ids must be dense from 1", f.Name, b.ID, i)
		}
		if b.EndLine < b.StartLine {
			return fmt.Errorf("function %q: block %d ends (%d) before it starts (%d)", f.Name, b.ID, b.EndLine, b.StartLine)
		}
	}

	exists := func(id int) bool { return id >= 1 && id <= len(f.Nodes) }
	for _, e := range f.Edges {
		if !exists(e.Source) || !exists(e.Dest) {
			return fmt.Errorf("function %q: edge %d->%d references a missing block", f.Name, e.Source, e.Dest)
		}
	}
	if len(f.InitNodes) == 0 {
		return fmt.Errorf("function %q: no initial node", f.Name)
	}
	for _, id := range f.InitNodes {
		if !exists(id) {
			return fmt.Errorf("function %q: initial node %d is not a block", f.Name, id)
		}
	}
	for _, id := range f.FinalNodes {
		if !exists(id) {
			return fmt.Errorf("function %q: final node %d is not a block", f.Name, id)
		}
	}
	return nil
}

// outDegree counts outgoing lines of id, parallel lines included.
func outDegree(g *multi.DirectedGraph, id int64) int {
	n := 0
	for to := g.From(id); to.Next(); {
		n += g.Lines(id, to.Node().ID()).Len()
	}
	return n
}

// inDegree counts incoming lines of id, parallel lines included.
func inDegree(g *multi.DirectedGraph, id int64) int {
	n := 0
	for from := g.To(id); from.Next(); {
		n += g.Lines(from.Node().ID(), id).Len()
	}
	return n
}

// linesFrom returns the outgoing lines of id.
func linesFrom(g *multi.DirectedGraph, id int64) []graph.Line {
	var out []graph.Line
	for to := g.From(id); to.Next(); {
		out = append(out, graph.LinesOf(g.Lines(id, to.Node().ID()))...)
	}
	return out
}

// linesTo returns the incoming lines of id.
func linesTo(g *multi.DirectedGraph, id int64) []graph.Line {
	var in []graph.Line
	for from := g.To(id); from.Next(); {
		in = append(in, graph.LinesOf(g.Lines(from.Node().ID(), id))...)
	}
	return in
}
