package cfg

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
)

// ContractedNode is a node of a contracted graph: one or more original blocks merged
// along a straight-line chain.
type ContractedNode struct {
	ID        int   `json:"id"`
	Members   []int `json:"members"` // original block ids, in merge order
	StartLine int   `json:"start_line"`
	EndLine   int   `json:"end_line"`
}

// ContractedGraph is a presentation-only view of a FunctionCFG with chain links merged.
// It is never used as input to path extraction.
type ContractedGraph struct {
	Name       string           `json:"name"`
	Nodes      []ContractedNode `json:"nodes"`
	Edges      []Edge           `json:"edges"`
	InitNodes  []int            `json:"init_nodes"`
	FinalNodes []int            `json:"final_nodes"`
}

// Contract merges pure chain links of fn: edges (u, v) where u has at most one outgoing
// edge and v at most one incoming edge. Candidates are collected in a single pass over
// the edges in block order; when more than one is found the first one is kept as is.
// Contracting v into u re-homes v's edges onto u and drops the self-loops this creates.
// A candidate whose endpoints were merged earlier is resolved to the nodes that absorbed
// them, so removed nodes are never recreated: a chain 1->2->3->4 contracts to [1] and
// [2 3 4]. The surviving nodes are renumbered from 1 in their original order.
func Contract(fn *FunctionCFG) *ContractedGraph {
	g := fn.directed()
	nextLine := int64(len(fn.Edges))

	members := make(map[int64][]int, len(fn.Nodes))
	for _, b := range fn.Nodes {
		members[int64(b.ID)] = []int{b.ID}
	}

	type link struct{ u, v int64 }
	var candidates []link
	for _, b := range fn.Nodes {
		u := int64(b.ID)
		for _, l := range sortedLines(linesFrom(g, u)) {
			v := l.To().ID()
			if u == v {
				continue
			}
			if outDegree(g, u) <= 1 && inDegree(g, v) <= 1 {
				candidates = append(candidates, link{u: u, v: v})
			}
		}
	}
	if len(candidates) > 1 {
		candidates = candidates[1:]
	}

	// merged maps a contracted node to the node that absorbed it
	merged := make(map[int64]int64)
	resolve := func(id int64) int64 {
		for {
			next, ok := merged[id]
			if !ok {
				return id
			}
			id = next
		}
	}

	for _, c := range candidates {
		u, v := resolve(c.u), resolve(c.v)
		if u == v {
			continue
		}
		for _, l := range sortedLines(linesFrom(g, v)) {
			to := l.To().ID()
			if to == v || to == u {
				continue
			}
			g.SetLine(kindLine{Line: multi.Line{F: multi.Node(u), T: multi.Node(to), UID: nextLine}, Kind: l.(kindLine).Kind})
			nextLine++
		}
		for _, l := range sortedLines(linesTo(g, v)) {
			from := l.From().ID()
			if from == v || from == u {
				continue
			}
			g.SetLine(kindLine{Line: multi.Line{F: multi.Node(from), T: multi.Node(u), UID: nextLine}, Kind: l.(kindLine).Kind})
			nextLine++
		}
		g.RemoveNode(v)
		merged[v] = u
		members[u] = append(members[u], members[v]...)
		delete(members, v)
	}

	return renumber(fn, g, members)
}

// renumber assigns dense ids to the nodes left in g, following the original block order.
func renumber(fn *FunctionCFG, g *multi.DirectedGraph, members map[int64][]int) *ContractedGraph {
	out := &ContractedGraph{Name: fn.Name}
	newID := make(map[int]int)

	for _, b := range fn.Nodes {
		if g.Node(int64(b.ID)) == nil {
			continue
		}
		node := ContractedNode{ID: len(out.Nodes) + 1, Members: members[int64(b.ID)]}
		for i, m := range node.Members {
			mb, _ := fn.Block(m)
			if i == 0 || mb.StartLine < node.StartLine {
				node.StartLine = mb.StartLine
			}
			if mb.EndLine > node.EndLine {
				node.EndLine = mb.EndLine
			}
			newID[m] = node.ID
		}
		out.Nodes = append(out.Nodes, node)
	}

	var lines []graph.Line
	for _, n := range out.Nodes {
		lines = append(lines, linesFrom(g, int64(n.Members[0]))...)
	}
	for _, l := range sortedLines(lines) {
		out.Edges = append(out.Edges, Edge{
			Source: newID[int(l.From().ID())],
			Dest:   newID[int(l.To().ID())],
			Kind:   l.(kindLine).Kind,
		})
	}

	out.InitNodes = mapIDs(fn.InitNodes, newID)
	out.FinalNodes = mapIDs(fn.FinalNodes, newID)
	return out
}

func sortedLines(lines []graph.Line) []graph.Line {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID() < lines[j].ID() })
	return lines
}

func mapIDs(ids []int, newID map[int]int) []int {
	seen := make(map[int]bool)
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		n, ok := newID[id]
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
