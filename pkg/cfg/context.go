package cfg

import "fmt"

// pendingEdge is an edge whose destination block does not exist yet.
type pendingEdge struct {
	source int
	kind   EdgeKind
}

// frame is one entry of the nesting-context stack. The concrete frame types below are
// the only implementations.
type frame interface {
	construct() ConstructKind
}

// selectionFrame tracks an if or if-else statement.
type selectionFrame struct {
	kind      ConstructKind
	cond      int
	decisions []EdgeKind // consumed front to back, one per arm
	junctions []pendingEdge
}

// iterationFrame tracks while, for, range-for and do-while loops.
type iterationFrame struct {
	kind   ConstructKind
	header int // back-edge and continue target; the trailing test for do-while
	entry  int // block flowing into the body of a do-while, 0 if none
	breaks []pendingEdge
}

// switchFrame tracks a switch statement.
type switchFrame struct {
	decision   int
	hasCase    bool
	hasDefault bool
	breaks     []pendingEdge
}

// tryFrame tracks a try statement and its handlers.
type tryFrame struct {
	entry      int // block flowing into the try body, 0 if none
	inHandlers bool
	candidates []int // blocks that may raise into the next handler
	junctions  []pendingEdge
}

func (f *selectionFrame) construct() ConstructKind { return f.kind }
func (f *iterationFrame) construct() ConstructKind { return f.kind }
func (f *switchFrame) construct() ConstructKind    { return ConstructSwitch }
func (f *tryFrame) construct() ConstructKind       { return ConstructTry }

// contextStack is the explicit nesting-context stack of the active function.
type contextStack struct {
	frames []frame
}

func (s *contextStack) push(f frame) {
	s.frames = append(s.frames, f)
}

func (s *contextStack) len() int {
	return len(s.frames)
}

func (s *contextStack) top() frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// pop removes the innermost frame, which must have been pushed for kind.
func (s *contextStack) pop(kind ConstructKind) (frame, error) {
	top := s.top()
	if top == nil {
		return nil, fmt.Errorf("%w: exit %s with no open construct", ErrMalformedEvents, kind)
	}
	if top.construct() != kind {
		return nil, fmt.Errorf("%w: exit %s while %s is open", ErrMalformedEvents, kind, top.construct())
	}
	s.frames = s.frames[:len(s.frames)-1]
	return top, nil
}

// breakTarget returns the innermost loop or switch.
func (s *contextStack) breakTarget() frame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		switch f := s.frames[i].(type) {
		case *iterationFrame, *switchFrame:
			return f
		}
	}
	return nil
}

// innermostSwitch returns the innermost switch.
func (s *contextStack) innermostSwitch() *switchFrame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if f, ok := s.frames[i].(*switchFrame); ok {
			return f
		}
	}
	return nil
}

// loop returns the innermost loop, looking through any enclosing switch.
func (s *contextStack) loop() *iterationFrame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if f, ok := s.frames[i].(*iterationFrame); ok {
			return f
		}
	}
	return nil
}

// try returns the innermost try statement.
func (s *contextStack) try() *tryFrame {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if f, ok := s.frames[i].(*tryFrame); ok {
			return f
		}
	}
	return nil
}

// guardedTry returns the innermost try whose body is still being walked, or nil when
// the innermost try is already in its handlers.
func (s *contextStack) guardedTry() *tryFrame {
	if f := s.try(); f != nil && !f.inHandlers {
		return f
	}
	return nil
}
