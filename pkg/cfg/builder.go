package cfg

import (
	"errors"
	"fmt"
	"sort"

	"github.com/l3aro/go-prime-paths/internal/log"
)

// ErrMalformedEvents is returned when the event sequence does not mirror a well-formed
// syntax tree traversal (unbalanced Enter/Exit, events outside a function, ...).
var ErrMalformedEvents = errors.New("malformed event sequence")

// Builder constructs FunctionCFGs incrementally from Listener events. It never looks
// ahead: every block and edge is decided from the events seen so far and the nesting
// context stack. A Builder is not safe for concurrent use.
type Builder struct {
	logger log.Logger
	unit   *Unit

	fn      *FunctionCFG
	stack   contextStack
	counter int // last assigned block id
	current int // id of the open block
	start   int // start line of the open block
	open    bool
	finals  map[int]bool
	labels  map[string]int
	gotos   map[string][]int // forward gotos waiting for their label
}

var _ Listener = (*Builder)(nil)

// NewBuilder creates a builder collecting the functions of the translation unit at path.
func NewBuilder(path string) *Builder {
	return &Builder{
		logger: log.Default(),
		unit:   &Unit{Path: path, Functions: make([]*FunctionCFG, 0)},
	}
}

// SetLogger sets the logger used for diagnostics about degenerate input.
func (b *Builder) SetLogger(logger log.Logger) {
	b.logger = logger
}

// Unit returns the translation unit holding every function sealed so far.
func (b *Builder) Unit() *Unit {
	return b.unit
}

// BeginFunction starts a new function declared on line whose body spans the given lines.
// Block 1 opens at the start of the body and is the function's only initial node.
func (b *Builder) BeginFunction(name string, line int, body Span) error {
	if b.fn != nil {
		return fmt.Errorf("%w: function %q begins inside %q", ErrMalformedEvents, name, b.fn.Name)
	}

	b.fn = &FunctionCFG{
		Name:  name,
		Line:  line,
		Nodes: make([]Block, 0),
		Edges: make([]Edge, 0),
	}
	b.stack = contextStack{}
	b.counter = 0
	b.open = false
	b.finals = make(map[int]bool)
	b.labels = make(map[string]int)
	b.gotos = make(map[string][]int)

	b.openBlock(body.Start)
	return nil
}

// EndFunction closes the function, adds the block still open at the end of the body to
// the final nodes, and returns the sealed FunctionCFG.
func (b *Builder) EndFunction(span Span) (*FunctionCFG, error) {
	if b.fn == nil {
		return nil, fmt.Errorf("%w: end of function without a matching begin", ErrMalformedEvents)
	}
	if top := b.stack.top(); top != nil {
		return nil, fmt.Errorf("%w: function %q ends with unterminated %s", ErrMalformedEvents, b.fn.Name, top.construct())
	}

	if id := b.finalize(span.End); id != 0 {
		b.finals[id] = true
	}

	for label, sources := range b.gotos {
		b.logger.Debug("dropping goto to undefined label", "function", b.fn.Name, "label", label, "sources", len(sources))
	}

	fn := b.fn
	fn.InitNodes = []int{1}
	fn.FinalNodes = make([]int, 0, len(b.finals))
	for id := range b.finals {
		fn.FinalNodes = append(fn.FinalNodes, id)
	}
	sort.Ints(fn.FinalNodes)

	b.fn = nil
	b.unit.Functions = append(b.unit.Functions, fn)
	return fn, nil
}

// Enter handles the start of a compound construct or one of its parts.
func (b *Builder) Enter(kind ConstructKind, span Span) error {
	if err := b.checkActive(kind); err != nil {
		return err
	}

	switch kind {
	case ConstructIf, ConstructIfElse:
		pred := b.finalize(span.Start)
		cond := b.openBlock(span.Start)
		b.finalize(span.Start)
		b.flow(pred, cond)

		f := &selectionFrame{kind: kind, cond: cond}
		if kind == ConstructIf {
			f.decisions = []EdgeKind{EdgeBranchTrue}
			f.junctions = []pendingEdge{{source: cond, kind: EdgeBranchFalse}}
		} else {
			f.decisions = []EdgeKind{EdgeBranchTrue, EdgeBranchFalse}
		}
		b.stack.push(f)

	case ConstructThen, ConstructElse:
		f, ok := b.stack.top().(*selectionFrame)
		if !ok || len(f.decisions) == 0 {
			return b.unexpected(kind)
		}
		decision := f.decisions[0]
		f.decisions = f.decisions[1:]
		arm := b.openBlock(span.Start)
		b.addEdge(f.cond, arm, decision)

	case ConstructWhile, ConstructFor, ConstructRangeFor:
		pred := b.finalize(span.Start)
		header := b.openBlock(span.Start)
		b.finalize(span.Start)
		b.flow(pred, header)
		b.stack.push(&iterationFrame{
			kind:   kind,
			header: header,
			breaks: []pendingEdge{{source: header, kind: EdgeBranchFalse}},
		})

	case ConstructDoWhile:
		// The test follows the body in the source, so its block spans the last line.
		pred := b.finalize(span.Start)
		test := b.openBlock(span.End)
		b.finalize(span.End)
		b.stack.push(&iterationFrame{
			kind:   kind,
			header: test,
			entry:  pred,
			breaks: []pendingEdge{{source: test, kind: EdgeBranchFalse}},
		})

	case ConstructLoopBody:
		f, ok := b.stack.top().(*iterationFrame)
		if !ok {
			return b.unexpected(kind)
		}
		body := b.openBlock(span.Start)
		if f.kind == ConstructDoWhile {
			b.flow(f.entry, body)
		}
		b.addEdge(f.header, body, EdgeBranchTrue)

	case ConstructSwitch:
		decision := b.finalize(span.Start)
		if decision == 0 {
			decision = b.openBlock(span.Start)
			b.finalize(span.Start)
		}
		b.stack.push(&switchFrame{decision: decision})

	case ConstructTry:
		pred := b.finalize(span.Start)
		b.stack.push(&tryFrame{entry: pred})

	case ConstructTryBody:
		f, ok := b.stack.top().(*tryFrame)
		if !ok || f.inHandlers {
			return b.unexpected(kind)
		}
		body := b.openBlock(span.Start)
		b.flow(f.entry, body)

	case ConstructCatch:
		f, ok := b.stack.top().(*tryFrame)
		if !ok {
			return b.unexpected(kind)
		}
		f.inHandlers = true
		handler := b.openBlock(span.Start)
		for _, src := range f.candidates {
			b.addEdge(src, handler, EdgeException)
		}

	default:
		return fmt.Errorf("%w: %s is not a compound construct", ErrMalformedEvents, kind)
	}

	return nil
}

// Exit handles the end of a compound construct or one of its parts.
func (b *Builder) Exit(kind ConstructKind, span Span) error {
	if err := b.checkActive(kind); err != nil {
		return err
	}

	switch kind {
	case ConstructThen, ConstructElse:
		f, ok := b.stack.top().(*selectionFrame)
		if !ok {
			return b.unexpected(kind)
		}
		if id := b.finalize(span.End); id != 0 {
			f.junctions = append(f.junctions, pendingEdge{source: id, kind: EdgeFlow})
		}

	case ConstructIf, ConstructIfElse:
		top, err := b.stack.pop(kind)
		if err != nil {
			return err
		}
		b.merge(top.(*selectionFrame).junctions, span.End)

	case ConstructLoopBody:
		f, ok := b.stack.top().(*iterationFrame)
		if !ok {
			return b.unexpected(kind)
		}
		if id := b.finalize(span.End); id != 0 {
			b.addEdge(id, f.header, EdgeFlow)
		}

	case ConstructWhile, ConstructFor, ConstructRangeFor, ConstructDoWhile:
		top, err := b.stack.pop(kind)
		if err != nil {
			return err
		}
		b.merge(top.(*iterationFrame).breaks, span.End)

	case ConstructSwitch:
		top, err := b.stack.pop(kind)
		if err != nil {
			return err
		}
		f := top.(*switchFrame)
		last := b.finalize(span.End)
		if !f.hasDefault {
			// no arm matched
			f.breaks = append(f.breaks, pendingEdge{source: f.decision, kind: EdgeFlow})
		}
		if last != 0 {
			f.breaks = append(f.breaks, pendingEdge{source: last, kind: EdgeFlow})
		}
		b.merge(f.breaks, span.End)

	case ConstructTryBody, ConstructCatch:
		f, ok := b.stack.top().(*tryFrame)
		if !ok {
			return b.unexpected(kind)
		}
		if id := b.finalize(span.End); id != 0 {
			f.junctions = append(f.junctions, pendingEdge{source: id, kind: EdgeFlow})
		}
		f.inHandlers = true

	case ConstructTry:
		top, err := b.stack.pop(kind)
		if err != nil {
			return err
		}
		b.merge(top.(*tryFrame).junctions, span.End)

	default:
		return fmt.Errorf("%w: %s is not a compound construct", ErrMalformedEvents, kind)
	}

	return nil
}

// Leaf handles case labels, jumps and statement labels. ident carries the label name
// for ConstructGoto and ConstructLabel.
func (b *Builder) Leaf(kind ConstructKind, span Span, ident string) error {
	if err := b.checkActive(kind); err != nil {
		return err
	}

	switch kind {
	case ConstructCase, ConstructDefault:
		f := b.stack.innermostSwitch()
		if f == nil {
			return b.unexpected(kind)
		}
		prev := b.finalize(span.Start)
		arm := b.openBlock(span.Start)
		if prev != 0 && (f.hasCase || f.hasDefault) {
			// fallthrough from the previous arm
			b.addEdge(prev, arm, EdgeFlow)
		}
		b.addEdge(f.decision, arm, EdgeSwitchCase)
		if kind == ConstructDefault {
			f.hasDefault = true
		} else {
			f.hasCase = true
		}

	case ConstructBreak:
		target := b.stack.breakTarget()
		if target == nil {
			b.logger.Debug("ignoring break outside loop or switch", "function", b.fn.Name, "line", span.Start)
			return nil
		}
		id := b.finalize(span.End)
		if id == 0 {
			return nil
		}
		switch t := target.(type) {
		case *iterationFrame:
			t.breaks = append(t.breaks, pendingEdge{source: id, kind: EdgeFlow})
		case *switchFrame:
			t.breaks = append(t.breaks, pendingEdge{source: id, kind: EdgeFlow})
		}

	case ConstructContinue:
		loop := b.stack.loop()
		if loop == nil {
			b.logger.Debug("ignoring continue outside loop", "function", b.fn.Name, "line", span.Start)
			return nil
		}
		if id := b.finalize(span.End); id != 0 {
			b.addEdge(id, loop.header, EdgeFlow)
		}

	case ConstructReturn:
		if id := b.terminate(span.End); id != 0 {
			b.finals[id] = true
		}

	case ConstructThrow:
		guarded := b.stack.guardedTry() != nil
		if id := b.finalize(span.End); id != 0 && !guarded {
			b.finals[id] = true
		}

	case ConstructGoto:
		id := b.finalize(span.End)
		if id == 0 {
			return nil
		}
		if target, ok := b.labels[ident]; ok {
			b.addEdge(id, target, EdgeGoto)
		} else {
			b.gotos[ident] = append(b.gotos[ident], id)
		}

	case ConstructLabel:
		prev := b.finalize(span.Start)
		target := b.openBlock(span.Start)
		b.flow(prev, target)
		b.labels[ident] = target
		for _, src := range b.gotos[ident] {
			b.addEdge(src, target, EdgeGoto)
		}
		delete(b.gotos, ident)

	default:
		return fmt.Errorf("%w: %s is not a leaf construct", ErrMalformedEvents, kind)
	}

	return nil
}

// openBlock starts a new block at line and makes it current.
func (b *Builder) openBlock(line int) int {
	if b.open {
		b.finalize(line)
	}
	b.counter++
	b.current = b.counter
	b.start = line
	b.open = true
	return b.current
}

// finalize closes the open block at line and returns its id, or 0 when no block is open.
// Blocks closed inside the body of a try become exception sources for its handlers.
func (b *Builder) finalize(line int) int {
	id := b.close(line)
	if id != 0 {
		if t := b.stack.guardedTry(); t != nil {
			t.candidates = append(t.candidates, id)
		}
	}
	return id
}

// terminate closes the open block without registering it as an exception source, so
// blocks ending in return keep an out-degree of zero.
func (b *Builder) terminate(line int) int {
	return b.close(line)
}

func (b *Builder) close(line int) int {
	if !b.open {
		return 0
	}
	if line < b.start {
		line = b.start
	}
	b.fn.Nodes = append(b.fn.Nodes, Block{ID: b.current, StartLine: b.start, EndLine: line})
	b.open = false
	return b.current
}

// merge opens a junction block and connects every pending edge into it. Nothing is
// opened when no path reaches the junction.
func (b *Builder) merge(pending []pendingEdge, line int) {
	if len(pending) == 0 {
		return
	}
	junction := b.openBlock(line)
	for _, p := range pending {
		b.addEdge(p.source, junction, p.kind)
	}
}

// flow adds a Flow edge from src, if any, to dst.
func (b *Builder) flow(src, dst int) {
	if src != 0 {
		b.addEdge(src, dst, EdgeFlow)
	}
}

func (b *Builder) addEdge(src, dst int, kind EdgeKind) {
	b.fn.Edges = append(b.fn.Edges, Edge{Source: src, Dest: dst, Kind: kind})
}

func (b *Builder) checkActive(kind ConstructKind) error {
	if b.fn == nil {
		return fmt.Errorf("%w: %s outside of a function", ErrMalformedEvents, kind)
	}
	return nil
}

func (b *Builder) unexpected(kind ConstructKind) error {
	open := "nothing"
	if top := b.stack.top(); top != nil {
		open = top.construct().String()
	}
	return fmt.Errorf("%w: unexpected %s while %s is open", ErrMalformedEvents, kind, open)
}
