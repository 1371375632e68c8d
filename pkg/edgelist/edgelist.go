// Package edgelist reads and writes the line-oriented edge list a function CFG is handed
// to path extraction in:
//
//	1 2
//	2 3
//	init: 1
//	final: 3
//
// Edge kinds are not carried. Parallel edges collapse into one line.
package edgelist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/l3aro/go-prime-paths/pkg/cfg"
)

// ErrMalformed is returned when an edge list does not follow the format.
var ErrMalformed = errors.New("malformed edge list")

const (
	initPrefix  = "init:"
	finalPrefix = "final:"
)

// Pair is a directed edge between two node ids.
type Pair struct {
	Source int `json:"source"`
	Dest   int `json:"dest"`
}

// Graph is the content of an edge list: unique edges in file order plus the init and
// final node sets.
type Graph struct {
	Edges []Pair `json:"edges"`
	Init  []int  `json:"init"`
	Final []int  `json:"final"`
}

// FromCFG drops edge kinds and parallel edges from fn, keeping first-occurrence order.
func FromCFG(fn *cfg.FunctionCFG) *Graph {
	g := &Graph{
		Edges: make([]Pair, 0, len(fn.Edges)),
		Init:  append([]int(nil), fn.InitNodes...),
		Final: append([]int(nil), fn.FinalNodes...),
	}
	seen := make(map[Pair]bool, len(fn.Edges))
	for _, e := range fn.Edges {
		p := Pair{Source: e.Source, Dest: e.Dest}
		if seen[p] {
			continue
		}
		seen[p] = true
		g.Edges = append(g.Edges, p)
	}
	return g
}

// Nodes returns every node id mentioned by the graph in order of first appearance:
// edge endpoints first, then init and final nodes without edges.
func (g *Graph) Nodes() []int {
	seen := make(map[int]bool)
	var out []int
	add := func(id int) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, e := range g.Edges {
		add(e.Source)
		add(e.Dest)
	}
	for _, id := range g.Init {
		add(id)
	}
	for _, id := range g.Final {
		add(id)
	}
	return out
}

// Encode writes the edge list of fn.
func Encode(w io.Writer, fn *cfg.FunctionCFG) error {
	return Write(w, FromCFG(fn))
}

// Write writes g in edge list format.
func Write(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	for _, e := range g.Edges {
		fmt.Fprintf(bw, "%d %d\n", e.Source, e.Dest)
	}
	fmt.Fprintf(bw, "%s\n", joinIDs(initPrefix, g.Init))
	fmt.Fprintf(bw, "%s\n", joinIDs(finalPrefix, g.Final))
	return bw.Flush()
}

// Decode reads an edge list. Any deviation from the format, including blank lines and
// missing or reordered trailer lines, is reported as ErrMalformed. Repeated edges are
// kept once.
func Decode(r io.Reader) (*Graph, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading edge list: %w", err)
	}

	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: expected init and final trailer lines, got %d lines", ErrMalformed, len(lines))
	}

	n := len(lines)
	g := &Graph{Edges: make([]Pair, 0, n-2)}
	seen := make(map[Pair]bool, n-2)
	for i, line := range lines[:n-2] {
		p, err := parseEdge(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, i+1, err)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		g.Edges = append(g.Edges, p)
	}

	var err error
	if g.Init, err = parseTrailer(lines[n-2], initPrefix); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, n-1, err)
	}
	if g.Final, err = parseTrailer(lines[n-1], finalPrefix); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, n, err)
	}
	return g, nil
}

func parseEdge(line string) (Pair, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Pair{}, fmt.Errorf("expected \"SOURCE DEST\", got %q", line)
	}
	src, err := parseID(fields[0])
	if err != nil {
		return Pair{}, err
	}
	dst, err := parseID(fields[1])
	if err != nil {
		return Pair{}, err
	}
	return Pair{Source: src, Dest: dst}, nil
}

func parseTrailer(line, prefix string) ([]int, error) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return nil, fmt.Errorf("expected %q trailer, got %q", prefix, line)
	}
	fields := strings.Fields(rest)
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := parseID(f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid node id %q", s)
	}
	return id, nil
}

func joinIDs(prefix string, ids []int) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, id := range ids {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(id))
	}
	return sb.String()
}
