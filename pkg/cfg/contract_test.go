package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(n int) *FunctionCFG {
	fn := &FunctionCFG{Name: "chain", InitNodes: []int{1}, FinalNodes: []int{n}}
	for i := 1; i <= n; i++ {
		fn.Nodes = append(fn.Nodes, Block{ID: i, StartLine: i, EndLine: i})
		if i > 1 {
			fn.Edges = append(fn.Edges, Edge{i - 1, i, EdgeFlow})
		}
	}
	return fn
}

func TestContractChainKeepsFirstLink(t *testing.T) {
	got := Contract(chain(4))

	assert.Equal(t, []ContractedNode{
		{ID: 1, Members: []int{1}, StartLine: 1, EndLine: 1},
		{ID: 2, Members: []int{2, 3, 4}, StartLine: 2, EndLine: 4},
	}, got.Nodes)
	assert.Equal(t, []Edge{{1, 2, EdgeFlow}}, got.Edges)
	assert.Equal(t, []int{1}, got.InitNodes)
	assert.Equal(t, []int{2}, got.FinalNodes)
}

func TestContractSingleLink(t *testing.T) {
	got := Contract(chain(2))

	require.Len(t, got.Nodes, 1)
	assert.Equal(t, []int{1, 2}, got.Nodes[0].Members)
	assert.Empty(t, got.Edges)
	assert.Equal(t, []int{1}, got.InitNodes)
	assert.Equal(t, []int{1}, got.FinalNodes)
}

func TestContractDiamond(t *testing.T) {
	fn := build(t, Span{1, 10},
		enter(ConstructIfElse, 2, 6),
		enter(ConstructThen, 2, 3),
		exit(ConstructThen, 2, 3),
		enter(ConstructElse, 4, 6),
		exit(ConstructElse, 4, 6),
		exit(ConstructIfElse, 2, 6),
	)

	got := Contract(fn)

	// only the entry link qualifies; the condition keeps both branches
	require.Len(t, got.Nodes, 4)
	assert.Equal(t, []int{1, 2}, got.Nodes[0].Members)
	assert.ElementsMatch(t, []Edge{
		{1, 2, EdgeBranchTrue},
		{1, 3, EdgeBranchFalse},
		{2, 4, EdgeFlow},
		{3, 4, EdgeFlow},
	}, got.Edges)
	assert.Equal(t, []int{4}, got.FinalNodes)
}

func TestContractLoopIsUnchanged(t *testing.T) {
	fn := build(t, Span{1, 5},
		enter(ConstructWhile, 2, 4),
		enter(ConstructLoopBody, 2, 4),
		exit(ConstructLoopBody, 2, 4),
		exit(ConstructWhile, 2, 4),
	)

	got := Contract(fn)

	require.Len(t, got.Nodes, len(fn.Nodes))
	for i, n := range got.Nodes {
		assert.Equal(t, []int{fn.Nodes[i].ID}, n.Members)
	}
	assert.Equal(t, fn.Edges, got.Edges)
}

func TestContractDoesNotModifyInput(t *testing.T) {
	fn := chain(5)
	before := *fn
	before.Nodes = append([]Block(nil), fn.Nodes...)
	before.Edges = append([]Edge(nil), fn.Edges...)

	_ = Contract(fn)

	assert.Equal(t, before.Nodes, fn.Nodes)
	assert.Equal(t, before.Edges, fn.Edges)
}
