// Package primepath derives the prime path set of a control-flow graph for structural
// path-coverage test generation.
//
// A prime path here is a path obtained by seeding one two-node path per edge and extending
// it until no successor can be appended without a node occurring more than MaxVisits times.
// Paths that are sub-paths of other recorded paths are kept.
package primepath

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-prime-paths/pkg/edgelist"
)

// MaxVisits is the default number of times a node may occur in one path. Two allows a
// single traversal of each loop.
const MaxVisits = 2

// Path is an ordered node sequence.
type Path []int

// Graph is the successor view of a persisted CFG that paths are computed on. It is
// read-only after construction and safe for concurrent use.
type Graph struct {
	nodes  []int
	succ   map[int][]int
	inits  map[int]bool
	finals map[int]bool

	maxVisits int
	workers   int
}

// Option configures a Graph.
type Option func(*Graph)

// WithMaxVisits sets the per-node repeat bound. Values below 1 are ignored.
func WithMaxVisits(n int) Option {
	return func(g *Graph) {
		if n >= 1 {
			g.maxVisits = n
		}
	}
}

// WithWorkers bounds the number of seeds extended concurrently. Values below 1 select
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(g *Graph) {
		if n >= 1 {
			g.workers = n
		}
	}
}

// New builds a Graph from an edge list. Successor lists keep the edge order of el.
func New(el *edgelist.Graph, opts ...Option) *Graph {
	g := &Graph{
		nodes:     el.Nodes(),
		succ:      make(map[int][]int),
		inits:     make(map[int]bool, len(el.Init)),
		finals:    make(map[int]bool, len(el.Final)),
		maxVisits: MaxVisits,
		workers:   runtime.NumCPU(),
	}
	for _, e := range el.Edges {
		g.succ[e.Source] = append(g.succ[e.Source], e.Dest)
	}
	for _, id := range el.Init {
		g.inits[id] = true
	}
	for _, id := range el.Final {
		g.finals[id] = true
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Load decodes an edge list from r and builds its Graph.
func Load(r io.Reader, opts ...Option) (*Graph, error) {
	el, err := edgelist.Decode(r)
	if err != nil {
		return nil, err
	}
	return New(el, opts...), nil
}

// Nodes returns the node ids in order of first appearance.
func (g *Graph) Nodes() []int {
	return g.nodes
}

// Successors returns the successors of id in edge order.
func (g *Graph) Successors(id int) []int {
	return g.succ[id]
}

// ReachHead reports whether p starts at an initial node.
func (g *Graph) ReachHead(p Path) bool {
	return len(p) > 0 && g.inits[p[0]]
}

// ReachEnd reports whether p ends at a final node.
func (g *Graph) ReachEnd(p Path) bool {
	return len(p) > 0 && g.finals[p[len(p)-1]]
}

// Extend returns every path one node longer than p obtained by appending a successor of
// its last node, skipping successors that already occur MaxVisits times in p.
func (g *Graph) Extend(p Path) []Path {
	if len(p) == 0 {
		return nil
	}

	visits := make(map[int]int, len(p))
	for _, id := range p {
		visits[id]++
	}

	var out []Path
	for _, next := range g.succ[p[len(p)-1]] {
		if visits[next] >= g.maxVisits {
			continue
		}
		ext := make(Path, len(p)+1)
		copy(ext, p)
		ext[len(p)] = next
		out = append(out, ext)
	}
	return out
}

// Seeds returns one two-node path per edge, walking nodes in order of first appearance
// and each node's successors in edge order.
func (g *Graph) Seeds() []Path {
	var seeds []Path
	for _, id := range g.nodes {
		for _, next := range g.succ[id] {
			seeds = append(seeds, Path{id, next})
		}
	}
	return seeds
}

// ComputePrimePaths extends every seed until it cannot grow and returns the completed
// paths. Seeds are processed concurrently; the result is ordered by seed, then by the
// round in which each path completed, then by successor order. It only fails when ctx
// is done.
func (g *Graph) ComputePrimePaths(ctx context.Context) ([]Path, error) {
	seeds := g.Seeds()
	results := make([][]Path, len(seeds))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, seed := range seeds {
		i, seed := i, seed
		eg.Go(func() error {
			paths, err := g.complete(ctx, seed)
			if err != nil {
				return fmt.Errorf("extending seed %v: %w", seed, err)
			}
			results[i] = paths
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []Path
	for _, paths := range results {
		out = append(out, paths...)
	}
	return out, nil
}

// complete extends seed round by round until every path in the frontier is complete.
func (g *Graph) complete(ctx context.Context, seed Path) ([]Path, error) {
	var done []Path
	frontier := []Path{seed}
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []Path
		for _, p := range frontier {
			ext := g.Extend(p)
			if len(ext) == 0 {
				done = append(done, p)
				continue
			}
			next = append(next, ext...)
		}
		frontier = next
	}
	return done, nil
}

// Report is a prime path annotated for test-path selection.
type Report struct {
	Path      Path `json:"path"`
	ReachHead bool `json:"reach_head"`
	ReachEnd  bool `json:"reach_end"`
}

// Annotate pairs every path with its ReachHead and ReachEnd flags.
func (g *Graph) Annotate(paths []Path) []Report {
	out := make([]Report, 0, len(paths))
	for _, p := range paths {
		out = append(out, Report{Path: p, ReachHead: g.ReachHead(p), ReachEnd: g.ReachEnd(p)})
	}
	return out
}
