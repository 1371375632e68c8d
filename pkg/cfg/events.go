package cfg

import "fmt"

// ConstructKind enumerates the syntactic constructs an event source reports.
type ConstructKind int

const (
	// Compound constructs, reported with Enter/Exit.
	ConstructIf ConstructKind = iota
	ConstructIfElse
	ConstructThen
	ConstructElse
	ConstructSwitch
	ConstructWhile
	ConstructFor
	ConstructDoWhile
	ConstructRangeFor
	ConstructLoopBody
	ConstructTry
	ConstructTryBody
	ConstructCatch

	// Leaf constructs, reported with Leaf.
	ConstructCase
	ConstructDefault
	ConstructBreak
	ConstructContinue
	ConstructReturn
	ConstructThrow
	ConstructGoto
	ConstructLabel
)

var constructNames = [...]string{
	ConstructIf:       "if",
	ConstructIfElse:   "if-else",
	ConstructThen:     "then",
	ConstructElse:     "else",
	ConstructSwitch:   "switch",
	ConstructWhile:    "while",
	ConstructFor:      "for",
	ConstructDoWhile:  "do-while",
	ConstructRangeFor: "range-for",
	ConstructLoopBody: "loop-body",
	ConstructTry:      "try",
	ConstructTryBody:  "try-body",
	ConstructCatch:    "catch",
	ConstructCase:     "case",
	ConstructDefault:  "default",
	ConstructBreak:    "break",
	ConstructContinue: "continue",
	ConstructReturn:   "return",
	ConstructThrow:    "throw",
	ConstructGoto:     "goto",
	ConstructLabel:    "label",
}

func (k ConstructKind) String() string {
	if k < 0 || int(k) >= len(constructNames) {
		return fmt.Sprintf("ConstructKind(%d)", int(k))
	}
	return constructNames[k]
}

// IsLeaf reports whether the construct is reported through Listener.Leaf.
func (k ConstructKind) IsLeaf() bool {
	return k >= ConstructCase && k <= ConstructLabel
}

// IsLoop reports whether the construct is an iteration statement.
func (k ConstructKind) IsLoop() bool {
	switch k {
	case ConstructWhile, ConstructFor, ConstructDoWhile, ConstructRangeFor:
		return true
	}
	return false
}

// Span is the 1-based source line range of a construct.
type Span struct {
	Start int
	End   int
}

// Listener consumes the events of a depth-first, left-to-right traversal of one or more
// function bodies. Enter and Exit calls must be strictly nested.
type Listener interface {
	BeginFunction(name string, line int, body Span) error
	Enter(kind ConstructKind, span Span) error
	Exit(kind ConstructKind, span Span) error
	Leaf(kind ConstructKind, span Span, ident string) error
	EndFunction(span Span) (*FunctionCFG, error)
}
