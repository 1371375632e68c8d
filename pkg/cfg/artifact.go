package cfg

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// artifact is the tooling format of a function CFG: nodes as [id, start, end] triples and
// edges as [source, dest, kind] triples.
type artifact struct {
	Nodes [][3]int          `json:"Nodes"`
	Edges []json.RawMessage `json:"Edges"`
}

// EncodeArtifact writes the structured CFG artifact of fn as JSON.
func EncodeArtifact(w io.Writer, fn *FunctionCFG) error {
	a := artifact{
		Nodes: make([][3]int, 0, len(fn.Nodes)),
		Edges: make([]json.RawMessage, 0, len(fn.Edges)),
	}
	for _, b := range fn.Nodes {
		a.Nodes = append(a.Nodes, [3]int{b.ID, b.StartLine, b.EndLine})
	}
	for _, e := range fn.Edges {
		data, err := json.Marshal([]interface{}{e.Source, e.Dest, e.Kind.String()})
		if err != nil {
			return fmt.Errorf("marshaling edge %d->%d: %w", e.Source, e.Dest, err)
		}
		a.Edges = append(a.Edges, data)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(a)
}

// DecodeArtifact reads a structured CFG artifact. Name, line and init/final sets are
// not part of the artifact and are left empty.
func DecodeArtifact(r io.Reader) (*FunctionCFG, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding CFG artifact: %w", err)
	}

	fn := &FunctionCFG{
		Nodes: make([]Block, 0, len(a.Nodes)),
		Edges: make([]Edge, 0, len(a.Edges)),
	}
	for _, n := range a.Nodes {
		fn.Nodes = append(fn.Nodes, Block{ID: n[0], StartLine: n[1], EndLine: n[2]})
	}
	for i, raw := range a.Edges {
		var triple []json.RawMessage
		if err := json.Unmarshal(raw, &triple); err != nil || len(triple) != 3 {
			return nil, fmt.Errorf("decoding CFG artifact: edge %d is not a [source, dest, kind] triple", i)
		}
		var e Edge
		if err := json.Unmarshal(triple[0], &e.Source); err != nil {
			return nil, fmt.Errorf("decoding CFG artifact: edge %d source: %w", i, err)
		}
		if err := json.Unmarshal(triple[1], &e.Dest); err != nil {
			return nil, fmt.Errorf("decoding CFG artifact: edge %d dest: %w", i, err)
		}
		if err := json.Unmarshal(triple[2], &e.Kind); err != nil {
			return nil, fmt.Errorf("decoding CFG artifact: edge %d kind: %w", i, err)
		}
		fn.Edges = append(fn.Edges, e)
	}
	return fn, nil
}

// EncodeIndex writes the function index of a unit as a JSON object keyed by function number.
func EncodeIndex(w io.Writer, idx FunctionIndex) error {
	keyed := make(map[string]FunctionRef, len(idx))
	for n, ref := range idx {
		keyed[strconv.Itoa(n)] = ref
	}
	return json.NewEncoder(w).Encode(keyed)
}

// DecodeIndex reads a function index written by EncodeIndex.
func DecodeIndex(r io.Reader) (FunctionIndex, error) {
	var keyed map[string]FunctionRef
	if err := json.NewDecoder(r).Decode(&keyed); err != nil {
		return nil, fmt.Errorf("decoding function index: %w", err)
	}
	idx := make(FunctionIndex, len(keyed))
	for k, ref := range keyed {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decoding function index: bad function number %q", k)
		}
		idx[n] = ref
	}
	return idx, nil
}

// Numbers returns the function numbers of the index in ascending order.
func (idx FunctionIndex) Numbers() []int {
	out := make([]int, 0, len(idx))
	for n := range idx {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
