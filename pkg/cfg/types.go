// Package cfg defines data structures for representing per-function Control Flow Graphs (CFGs)
// and builds them incrementally from a stream of syntax events.
package cfg

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EdgeKind represents the type of a CFG edge.
type EdgeKind int

const (
	EdgeFlow        EdgeKind = iota // Sequential or junction flow
	EdgeBranchTrue                  // True branch of a condition
	EdgeBranchFalse                 // False branch of a condition
	EdgeSwitchCase                  // Switch dispatch into a case arm
	EdgeGoto                        // goto to a label
	EdgeException                   // Exceptional flow into a catch handler
)

var edgeKindNames = [...]string{
	EdgeFlow:        "flow",
	EdgeBranchTrue:  "True",
	EdgeBranchFalse: "False",
	EdgeSwitchCase:  "switch",
	EdgeGoto:        "goto",
	EdgeException:   "exception",
}

func (k EdgeKind) String() string {
	if k < 0 || int(k) >= len(edgeKindNames) {
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
	return edgeKindNames[k]
}

// ParseEdgeKind converts the textual form used in artifacts back into an EdgeKind.
func ParseEdgeKind(s string) (EdgeKind, error) {
	for k, name := range edgeKindNames {
		if name == s {
			return EdgeKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown edge kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EdgeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEdgeKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Block is a basic block: a maximal straight-line statement sequence.
type Block struct {
	ID        int `json:"id" msgpack:"id"`
	StartLine int `json:"start_line" msgpack:"start_line"`
	EndLine   int `json:"end_line" msgpack:"end_line"`
}

// Edge is a directed, typed edge between two blocks.
type Edge struct {
	Source int      `json:"source" msgpack:"source"`
	Dest   int      `json:"dest" msgpack:"dest"`
	Kind   EdgeKind `json:"kind" msgpack:"kind"`
}

// FunctionCFG is the sealed CFG of a single function. A FunctionCFG returned by the
// Builder is never modified again; consumers must treat it as read-only.
type FunctionCFG struct {
	Name       string  `json:"name" msgpack:"name"`
	Line       int     `json:"line" msgpack:"line"`
	Nodes      []Block `json:"nodes" msgpack:"nodes"`
	Edges      []Edge  `json:"edges" msgpack:"edges"`
	InitNodes  []int   `json:"init_nodes" msgpack:"init_nodes"`
	FinalNodes []int   `json:"final_nodes" msgpack:"final_nodes"`
}

// Block returns the block with the given id.
func (f *FunctionCFG) Block(id int) (Block, bool) {
	// ids are dense and start at 1
	if id >= 1 && id <= len(f.Nodes) && f.Nodes[id-1].ID == id {
		return f.Nodes[id-1], true
	}
	for _, b := range f.Nodes {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

// Successors returns the outgoing edges of a block in insertion order.
func (f *FunctionCFG) Successors(id int) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Predecessors returns the incoming edges of a block in insertion order.
func (f *FunctionCFG) Predecessors(id int) []Edge {
	var in []Edge
	for _, e := range f.Edges {
		if e.Dest == id {
			in = append(in, e)
		}
	}
	return in
}

// IsFinal reports whether id is one of the function's final nodes.
func (f *FunctionCFG) IsFinal(id int) bool {
	i := sort.SearchInts(f.FinalNodes, id)
	return i < len(f.FinalNodes) && f.FinalNodes[i] == id
}

// Unit holds every function CFG of one translation unit, numbered from 1 in
// source order.
type Unit struct {
	Path      string         `json:"path" msgpack:"path"`
	Functions []*FunctionCFG `json:"functions" msgpack:"functions"`
}

// FunctionIndex maps the 1-based function number of a unit to its name and declaration line.
type FunctionIndex map[int]FunctionRef

// FunctionRef identifies a function inside a unit.
type FunctionRef struct {
	Name string
	Line int
}

// MarshalJSON encodes the reference as a [name, line] pair.
func (r FunctionRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Name, r.Line})
}

// UnmarshalJSON decodes a [name, line] pair.
func (r *FunctionRef) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("function reference: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Name); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &r.Line)
}

// Index returns the function index of the unit.
func (u *Unit) Index() FunctionIndex {
	idx := make(FunctionIndex, len(u.Functions))
	for i, fn := range u.Functions {
		idx[i+1] = FunctionRef{Name: fn.Name, Line: fn.Line}
	}
	return idx
}

// Function returns the first function with the given name.
func (u *Unit) Function(name string) (*FunctionCFG, bool) {
	for _, fn := range u.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}
