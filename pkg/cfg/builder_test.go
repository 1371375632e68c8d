package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// event is one recorded Listener call used to drive the builder in tests.
type event struct {
	call  string // "enter", "exit" or "leaf"
	kind  ConstructKind
	span  Span
	ident string
}

func enter(kind ConstructKind, start, end int) event {
	return event{call: "enter", kind: kind, span: Span{start, end}}
}

func exit(kind ConstructKind, start, end int) event {
	return event{call: "exit", kind: kind, span: Span{start, end}}
}

func leaf(kind ConstructKind, line int, ident string) event {
	return event{call: "leaf", kind: kind, span: Span{line, line}, ident: ident}
}

func build(t *testing.T, body Span, events ...event) *FunctionCFG {
	t.Helper()
	b := NewBuilder("test.cpp")
	require.NoError(t, b.BeginFunction("f", body.Start, body))
	for _, ev := range events {
		var err error
		switch ev.call {
		case "enter":
			err = b.Enter(ev.kind, ev.span)
		case "exit":
			err = b.Exit(ev.kind, ev.span)
		case "leaf":
			err = b.Leaf(ev.kind, ev.span, ev.ident)
		}
		require.NoError(t, err, "%s %s", ev.call, ev.kind)
	}
	fn, err := b.EndFunction(body)
	require.NoError(t, err)
	require.NoError(t, fn.Validate())
	return fn
}

func nodeIDs(fn *FunctionCFG) []int {
	ids := make([]int, 0, len(fn.Nodes))
	for _, n := range fn.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func assertFinalsHaveNoSuccessors(t *testing.T, fn *FunctionCFG) {
	t.Helper()
	for _, id := range fn.FinalNodes {
		for _, e := range fn.Successors(id) {
			assert.Equal(t, EdgeGoto, e.Kind, "final node %d has successor %d", id, e.Dest)
		}
	}
}

func TestBuilderStraightLine(t *testing.T) {
	fn := build(t, Span{1, 4})

	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, []Block{{ID: 1, StartLine: 1, EndLine: 4}}, fn.Nodes)
	assert.Empty(t, fn.Edges)
	assert.Equal(t, []int{1}, fn.InitNodes)
	assert.Equal(t, []int{1}, fn.FinalNodes)
}

func TestBuilderIfElse(t *testing.T) {
	fn := build(t, Span{1, 10},
		enter(ConstructIfElse, 2, 6),
		enter(ConstructThen, 2, 3),
		exit(ConstructThen, 2, 3),
		enter(ConstructElse, 4, 6),
		exit(ConstructElse, 4, 6),
		exit(ConstructIfElse, 2, 6),
	)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, nodeIDs(fn))
	assert.Equal(t, []Edge{
		{1, 2, EdgeFlow},
		{2, 3, EdgeBranchTrue},
		{2, 4, EdgeBranchFalse},
		{3, 5, EdgeFlow},
		{4, 5, EdgeFlow},
	}, fn.Edges)
	assert.Equal(t, []int{1}, fn.InitNodes)
	assert.Equal(t, []int{5}, fn.FinalNodes)

	decision := fn.Successors(2)
	require.Len(t, decision, 2)
	assert.NotEqual(t, decision[0].Dest, decision[1].Dest)
}

func TestBuilderIfWithoutElse(t *testing.T) {
	fn := build(t, Span{1, 5},
		enter(ConstructIf, 2, 3),
		enter(ConstructThen, 2, 3),
		exit(ConstructThen, 2, 3),
		exit(ConstructIf, 2, 3),
	)

	assert.Equal(t, []Edge{
		{1, 2, EdgeFlow},
		{2, 3, EdgeBranchTrue},
		{2, 4, EdgeBranchFalse},
		{3, 4, EdgeFlow},
	}, fn.Edges)
	assert.Equal(t, []int{4}, fn.FinalNodes)
}

func TestBuilderIfElseBothReturn(t *testing.T) {
	fn := build(t, Span{1, 8},
		enter(ConstructIfElse, 2, 6),
		enter(ConstructThen, 2, 3),
		leaf(ConstructReturn, 3, ""),
		exit(ConstructThen, 2, 3),
		enter(ConstructElse, 4, 6),
		leaf(ConstructReturn, 5, ""),
		exit(ConstructElse, 4, 6),
		exit(ConstructIfElse, 2, 6),
	)

	// no junction is reachable, so no merge block is opened
	assert.Equal(t, []int{1, 2, 3, 4}, nodeIDs(fn))
	assert.Equal(t, []int{3, 4}, fn.FinalNodes)
	assertFinalsHaveNoSuccessors(t, fn)
}

func TestBuilderWhileWithBreak(t *testing.T) {
	fn := build(t, Span{1, 10},
		enter(ConstructWhile, 2, 7),
		enter(ConstructLoopBody, 2, 7),
		enter(ConstructIf, 3, 4),
		enter(ConstructThen, 3, 4),
		leaf(ConstructBreak, 4, ""),
		exit(ConstructThen, 3, 4),
		exit(ConstructIf, 3, 4),
		exit(ConstructLoopBody, 2, 7),
		exit(ConstructWhile, 2, 7),
	)

	assert.Equal(t, []Edge{
		{1, 2, EdgeFlow},
		{2, 3, EdgeBranchTrue},
		{3, 4, EdgeFlow},
		{4, 5, EdgeBranchTrue},
		{4, 6, EdgeBranchFalse},
		{6, 2, EdgeFlow},
		{2, 7, EdgeBranchFalse},
		{5, 7, EdgeFlow},
	}, fn.Edges)
	assert.Equal(t, []int{7}, fn.FinalNodes)

	header := fn.Successors(2)
	assert.Contains(t, header, Edge{2, 3, EdgeBranchTrue})
	assert.Contains(t, header, Edge{2, 7, EdgeBranchFalse})
	// the break bypasses the back-edge
	assert.Equal(t, []Edge{{5, 7, EdgeFlow}}, fn.Successors(5))
}

func TestBuilderDoWhileWithContinue(t *testing.T) {
	fn := build(t, Span{1, 10},
		enter(ConstructDoWhile, 2, 6),
		enter(ConstructLoopBody, 2, 5),
		enter(ConstructIf, 3, 4),
		enter(ConstructThen, 3, 4),
		leaf(ConstructContinue, 4, ""),
		exit(ConstructThen, 3, 4),
		exit(ConstructIf, 3, 4),
		exit(ConstructLoopBody, 2, 5),
		exit(ConstructDoWhile, 2, 6),
	)

	test, ok := fn.Block(2)
	require.True(t, ok)
	assert.Equal(t, Block{ID: 2, StartLine: 6, EndLine: 6}, test)

	assert.Equal(t, []Edge{
		{1, 3, EdgeFlow},
		{2, 3, EdgeBranchTrue},
		{3, 4, EdgeFlow},
		{4, 5, EdgeBranchTrue},
		{5, 2, EdgeFlow},
		{4, 6, EdgeBranchFalse},
		{6, 2, EdgeFlow},
		{2, 7, EdgeBranchFalse},
	}, fn.Edges)
	assert.Equal(t, []int{7}, fn.FinalNodes)
}

func TestBuilderForAndRangeForShareShape(t *testing.T) {
	for _, kind := range []ConstructKind{ConstructWhile, ConstructFor, ConstructRangeFor} {
		t.Run(kind.String(), func(t *testing.T) {
			fn := build(t, Span{1, 5},
				enter(kind, 2, 4),
				enter(ConstructLoopBody, 2, 4),
				exit(ConstructLoopBody, 2, 4),
				exit(kind, 2, 4),
			)
			assert.Equal(t, []Edge{
				{1, 2, EdgeFlow},
				{2, 3, EdgeBranchTrue},
				{3, 2, EdgeFlow},
				{2, 4, EdgeBranchFalse},
			}, fn.Edges)
		})
	}
}

func TestBuilderSwitch(t *testing.T) {
	fn := build(t, Span{1, 20},
		enter(ConstructSwitch, 2, 10),
		leaf(ConstructCase, 3, ""),
		leaf(ConstructBreak, 4, ""),
		leaf(ConstructCase, 5, ""),
		leaf(ConstructDefault, 6, ""),
		leaf(ConstructReturn, 7, ""),
		exit(ConstructSwitch, 2, 10),
	)

	assert.Equal(t, []Edge{
		{1, 2, EdgeSwitchCase},
		{1, 3, EdgeSwitchCase},
		{3, 4, EdgeFlow},
		{1, 4, EdgeSwitchCase},
		{2, 5, EdgeFlow},
	}, fn.Edges)
	assert.Equal(t, []int{4, 5}, fn.FinalNodes)
	assertFinalsHaveNoSuccessors(t, fn)
}

func TestBuilderSwitchCaseAfterDefault(t *testing.T) {
	fn := build(t, Span{1, 10},
		enter(ConstructSwitch, 2, 8),
		leaf(ConstructDefault, 3, ""),
		leaf(ConstructBreak, 4, ""),
		leaf(ConstructCase, 5, ""),
		leaf(ConstructReturn, 6, ""),
		exit(ConstructSwitch, 2, 8),
	)

	// a case written after default is still dispatched from the decision block
	assert.Equal(t, []Edge{
		{1, 2, EdgeSwitchCase},
		{1, 3, EdgeSwitchCase},
		{2, 4, EdgeFlow},
	}, fn.Edges)
	assert.Equal(t, []int{3, 4}, fn.FinalNodes)
	assertFinalsHaveNoSuccessors(t, fn)
}

func TestBuilderSwitchWithoutDefault(t *testing.T) {
	fn := build(t, Span{1, 6},
		enter(ConstructSwitch, 2, 5),
		leaf(ConstructCase, 3, ""),
		exit(ConstructSwitch, 2, 5),
	)

	assert.Equal(t, []Edge{
		{1, 2, EdgeSwitchCase},
		{1, 3, EdgeFlow},
		{2, 3, EdgeFlow},
	}, fn.Edges)
	assert.Equal(t, []int{3}, fn.FinalNodes)
}

func TestBuilderContinueSkipsSwitch(t *testing.T) {
	fn := build(t, Span{1, 12},
		enter(ConstructWhile, 2, 10),
		enter(ConstructLoopBody, 2, 10),
		enter(ConstructSwitch, 3, 9),
		leaf(ConstructCase, 4, ""),
		leaf(ConstructContinue, 5, ""),
		exit(ConstructSwitch, 3, 9),
		exit(ConstructLoopBody, 2, 10),
		exit(ConstructWhile, 2, 10),
	)

	// header 2, body/decision 3, case arm 4
	assert.Contains(t, fn.Edges, Edge{4, 2, EdgeFlow})
	assert.NotContains(t, fn.Edges, Edge{4, 5, EdgeFlow})
}

func TestBuilderTryCatch(t *testing.T) {
	fn := build(t, Span{1, 20},
		enter(ConstructTry, 2, 10),
		enter(ConstructTryBody, 2, 5),
		enter(ConstructIf, 3, 4),
		enter(ConstructThen, 3, 4),
		leaf(ConstructThrow, 4, ""),
		exit(ConstructThen, 3, 4),
		exit(ConstructIf, 3, 4),
		exit(ConstructTryBody, 2, 5),
		enter(ConstructCatch, 6, 8),
		exit(ConstructCatch, 6, 8),
		enter(ConstructCatch, 8, 10),
		exit(ConstructCatch, 8, 10),
		exit(ConstructTry, 2, 10),
	)

	var exceptional []Edge
	for _, e := range fn.Edges {
		if e.Kind == EdgeException {
			exceptional = append(exceptional, e)
		}
	}
	assert.Equal(t, []Edge{
		{2, 6, EdgeException}, {3, 6, EdgeException}, {4, 6, EdgeException}, {5, 6, EdgeException},
		{2, 7, EdgeException}, {3, 7, EdgeException}, {4, 7, EdgeException}, {5, 7, EdgeException},
	}, exceptional)

	assert.Contains(t, fn.Edges, Edge{1, 2, EdgeFlow})
	assert.Contains(t, fn.Edges, Edge{5, 8, EdgeFlow})
	assert.Contains(t, fn.Edges, Edge{6, 8, EdgeFlow})
	assert.Contains(t, fn.Edges, Edge{7, 8, EdgeFlow})
	// a throw caught by a handler does not end the function
	assert.Equal(t, []int{8}, fn.FinalNodes)
}

func TestBuilderReturnInsideTryIsNotExceptionSource(t *testing.T) {
	fn := build(t, Span{1, 10},
		enter(ConstructTry, 2, 8),
		enter(ConstructTryBody, 2, 4),
		leaf(ConstructReturn, 3, ""),
		exit(ConstructTryBody, 2, 4),
		enter(ConstructCatch, 5, 8),
		exit(ConstructCatch, 5, 8),
		exit(ConstructTry, 2, 8),
	)

	assert.Empty(t, fn.Successors(2))
	assert.Equal(t, []int{2, 4}, fn.FinalNodes)
	assertFinalsHaveNoSuccessors(t, fn)
}

func TestBuilderThrowOutsideTryIsFinal(t *testing.T) {
	fn := build(t, Span{1, 3}, leaf(ConstructThrow, 2, ""))
	assert.Equal(t, []int{1}, fn.FinalNodes)
}

func TestBuilderGotoResolution(t *testing.T) {
	t.Run("forward", func(t *testing.T) {
		fn := build(t, Span{1, 6},
			leaf(ConstructGoto, 2, "out"),
			leaf(ConstructLabel, 4, "out"),
		)
		assert.Equal(t, []Edge{{1, 2, EdgeGoto}}, fn.Edges)
		assert.Equal(t, []int{2}, fn.FinalNodes)
	})

	t.Run("backward", func(t *testing.T) {
		fn := build(t, Span{1, 6},
			leaf(ConstructLabel, 2, "again"),
			enter(ConstructIf, 3, 4),
			enter(ConstructThen, 3, 4),
			leaf(ConstructGoto, 4, "again"),
			exit(ConstructThen, 3, 4),
			exit(ConstructIf, 3, 4),
		)
		assert.Contains(t, fn.Edges, Edge{1, 2, EdgeFlow})
		assert.Contains(t, fn.Edges, Edge{4, 2, EdgeGoto})
	})

	t.Run("forward inside branch", func(t *testing.T) {
		fn := build(t, Span{1, 8},
			enter(ConstructIf, 2, 3),
			enter(ConstructThen, 2, 3),
			leaf(ConstructGoto, 3, "done"),
			exit(ConstructThen, 2, 3),
			exit(ConstructIf, 2, 3),
			leaf(ConstructLabel, 6, "done"),
		)
		// then-arm 3 jumps straight to the label block, merge 4 falls into it
		assert.Contains(t, fn.Edges, Edge{3, 5, EdgeGoto})
		assert.Contains(t, fn.Edges, Edge{4, 5, EdgeFlow})
	})
}

func TestBuilderUndefinedLabelIsDropped(t *testing.T) {
	fn := build(t, Span{1, 4}, leaf(ConstructGoto, 2, "nowhere"))
	assert.Empty(t, fn.Edges)
	assert.Empty(t, fn.FinalNodes)
}

func TestBuilderDegenerateJumpsAreInert(t *testing.T) {
	fn := build(t, Span{1, 4},
		leaf(ConstructBreak, 2, ""),
		leaf(ConstructContinue, 3, ""),
	)
	assert.Equal(t, []Block{{ID: 1, StartLine: 1, EndLine: 4}}, fn.Nodes)
	assert.Empty(t, fn.Edges)
	assert.Equal(t, []int{1}, fn.FinalNodes)
}

func TestBuilderUnreachable(t *testing.T) {
	fn := build(t, Span{1, 8},
		leaf(ConstructReturn, 2, ""),
		enter(ConstructIf, 3, 4),
		enter(ConstructThen, 3, 4),
		exit(ConstructThen, 3, 4),
		exit(ConstructIf, 3, 4),
	)
	assert.Equal(t, []int{2, 3, 4}, fn.Unreachable())
	assert.Equal(t, []int{1, 4}, fn.FinalNodes)
}

func TestBuilderMalformedEvents(t *testing.T) {
	tests := []struct {
		name string
		run  func(b *Builder) error
	}{
		{
			name: "event outside function",
			run: func(b *Builder) error {
				return b.Enter(ConstructIf, Span{1, 1})
			},
		},
		{
			name: "exit without enter",
			run: func(b *Builder) error {
				_ = b.BeginFunction("f", 1, Span{1, 3})
				return b.Exit(ConstructWhile, Span{1, 3})
			},
		},
		{
			name: "mismatched exit",
			run: func(b *Builder) error {
				_ = b.BeginFunction("f", 1, Span{1, 3})
				_ = b.Enter(ConstructWhile, Span{2, 3})
				return b.Exit(ConstructFor, Span{2, 3})
			},
		},
		{
			name: "unterminated construct",
			run: func(b *Builder) error {
				_ = b.BeginFunction("f", 1, Span{1, 3})
				_ = b.Enter(ConstructSwitch, Span{2, 3})
				_, err := b.EndFunction(Span{1, 3})
				return err
			},
		},
		{
			name: "case outside switch",
			run: func(b *Builder) error {
				_ = b.BeginFunction("f", 1, Span{1, 3})
				return b.Leaf(ConstructCase, Span{2, 2}, "")
			},
		},
		{
			name: "nested function",
			run: func(b *Builder) error {
				_ = b.BeginFunction("f", 1, Span{1, 3})
				return b.BeginFunction("g", 2, Span{2, 3})
			},
		},
		{
			name: "leaf passed to enter",
			run: func(b *Builder) error {
				_ = b.BeginFunction("f", 1, Span{1, 3})
				return b.Enter(ConstructBreak, Span{2, 2})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(NewBuilder("bad.cpp"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEvents)
		})
	}
}

func TestBuilderUnitCollectsFunctions(t *testing.T) {
	b := NewBuilder("unit.cpp")
	for i, name := range []string{"first", "second"} {
		require.NoError(t, b.BeginFunction(name, i*10+1, Span{i*10 + 1, i*10 + 5}))
		require.NoError(t, b.Enter(ConstructIf, Span{i*10 + 2, i*10 + 3}))
		require.NoError(t, b.Enter(ConstructThen, Span{i*10 + 2, i*10 + 3}))
		require.NoError(t, b.Exit(ConstructThen, Span{i*10 + 2, i*10 + 3}))
		require.NoError(t, b.Exit(ConstructIf, Span{i*10 + 2, i*10 + 3}))
		_, err := b.EndFunction(Span{i*10 + 1, i*10 + 5})
		require.NoError(t, err)
	}

	unit := b.Unit()
	require.Len(t, unit.Functions, 2)
	// block numbering restarts for every function
	assert.Equal(t, []int{1, 2, 3, 4}, nodeIDs(unit.Functions[1]))
	assert.Equal(t, FunctionIndex{1: {Name: "first", Line: 1}, 2: {Name: "second", Line: 11}}, unit.Index())

	fn, ok := unit.Function("second")
	require.True(t, ok)
	assert.Equal(t, 11, fn.Line)
}
