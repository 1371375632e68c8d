// Package walker parses C and C++ sources with tree-sitter and replays the control
// structure of every function definition as cfg.Listener events.
package walker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/l3aro/go-prime-paths/internal/log"
	"github.com/l3aro/go-prime-paths/internal/scanner"
	"github.com/l3aro/go-prime-paths/pkg/cfg"
)

var (
	// ErrFunctionNotFound is returned by WalkFunction when no definition matches.
	ErrFunctionNotFound = errors.New("function not found")
	// ErrUnsupportedLanguage is returned by New for languages without a grammar.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Function describes a function definition found in a source file.
type Function struct {
	Name       string   // sanitized name, see SanitizeName
	Declarator string   // declarator name as written
	Span       cfg.Span // lines of the whole definition
}

// Walker emits listener events for the functions of a source file. Each call parses
// with its own parser, so a Walker is safe for concurrent use.
type Walker struct {
	language *sitter.Language
	logger   log.Logger
}

// New returns a walker for language ("c" or "cpp", as reported by the scanner).
func New(language string) (*Walker, error) {
	var lang *sitter.Language
	switch strings.ToLower(language) {
	case scanner.LanguageC:
		lang = c.GetLanguage()
	case scanner.LanguageCPP, "c++":
		lang = cpp.GetLanguage()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return &Walker{language: lang, logger: log.Default()}, nil
}

// ForPath returns a walker for the language of the file at path.
func ForPath(path string) (*Walker, error) {
	return New(scanner.DetectLanguage(filepath.Ext(path)))
}

// SetLogger sets the logger used for parse diagnostics.
func (w *Walker) SetLogger(logger log.Logger) {
	w.logger = logger
}

// Functions lists the function definitions of content in source order.
func (w *Walker) Functions(ctx context.Context, content []byte) ([]Function, error) {
	tree, err := w.parse(ctx, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []Function
	for _, def := range definitions(tree.RootNode()) {
		out = append(out, w.describe(def, content))
	}
	return out, nil
}

// Walk replays every function definition of content into l, in source order.
func (w *Walker) Walk(ctx context.Context, content []byte, l cfg.Listener) error {
	return w.walk(ctx, content, l, func(Function) bool { return true })
}

// WalkFunction replays the first definition named name into l. name matches either the
// declarator as written or its sanitized form.
func (w *Walker) WalkFunction(ctx context.Context, content []byte, name string, l cfg.Listener) error {
	found := false
	err := w.walk(ctx, content, l, func(fn Function) bool {
		if found {
			return false
		}
		found = fn.Declarator == name || fn.Name == SanitizeName(name)
		return found
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return nil
}

func (w *Walker) walk(ctx context.Context, content []byte, l cfg.Listener, want func(Function) bool) error {
	tree, err := w.parse(ctx, content)
	if err != nil {
		return err
	}
	defer tree.Close()

	for _, def := range definitions(tree.RootNode()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn := w.describe(def, content)
		if !want(fn) {
			continue
		}
		body := def.ChildByFieldName("body")
		if body == nil {
			continue
		}

		s := &session{content: content, l: l}
		if err := l.BeginFunction(fn.Name, fn.Span.Start, spanOf(body)); err != nil {
			return err
		}
		if err := s.statement(body); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
		if _, err := l.EndFunction(spanOf(body)); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
	}
	return nil
}

func (w *Walker) parse(ctx context.Context, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(w.language)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	if tree.RootNode().HasError() {
		w.logger.Warn("source has syntax errors, control flow may be incomplete")
	}
	return tree, nil
}

func (w *Walker) describe(def *sitter.Node, content []byte) Function {
	declarator := declaratorName(def, content)
	return Function{
		Name:       SanitizeName(declarator),
		Declarator: declarator,
		Span:       spanOf(def),
	}
}

// SanitizeName turns a declarator into a file-system friendly function name: '~' is
// spelled "destructor" and everything but letters and digits is dropped.
func SanitizeName(declarator string) string {
	declarator = strings.ReplaceAll(declarator, "~", "destructor")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, declarator)
}

// definitions collects function definitions without descending into their bodies.
func definitions(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() == "function_definition" {
			out = append(out, child)
			continue
		}
		out = append(out, definitions(child)...)
	}
	return out
}

// declaratorName returns the name part of a function definition's declarator, without
// return type decorations or parameters.
func declaratorName(def *sitter.Node, content []byte) string {
	d := def.ChildByFieldName("declarator")
	for d != nil {
		if d.Type() == "function_declarator" {
			if name := d.ChildByFieldName("declarator"); name != nil {
				return name.Content(content)
			}
			return d.Content(content)
		}
		next := d.ChildByFieldName("declarator")
		if next == nil && d.NamedChildCount() > 0 {
			// reference_declarator has no field
			next = d.NamedChild(int(d.NamedChildCount()) - 1)
		}
		if next == nil {
			return d.Content(content)
		}
		d = next
	}
	return ""
}

// session replays one function body.
type session struct {
	content []byte
	l       cfg.Listener
}

func (s *session) statement(n *sitter.Node) error {
	if n == nil {
		return nil
	}

	switch n.Type() {
	case "compound_statement":
		return s.children(n)
	case "if_statement":
		return s.ifStatement(n)
	case "switch_statement":
		return s.switchStatement(n)
	case "case_statement":
		return s.caseStatement(n)
	case "while_statement":
		return s.loop(n, cfg.ConstructWhile)
	case "for_statement":
		return s.loop(n, cfg.ConstructFor)
	case "for_range_loop":
		return s.loop(n, cfg.ConstructRangeFor)
	case "do_statement":
		return s.loop(n, cfg.ConstructDoWhile)
	case "try_statement":
		return s.tryStatement(n)
	case "labeled_statement":
		return s.labeledStatement(n)
	case "break_statement":
		return s.l.Leaf(cfg.ConstructBreak, spanOf(n), "")
	case "continue_statement":
		return s.l.Leaf(cfg.ConstructContinue, spanOf(n), "")
	case "return_statement", "co_return_statement":
		return s.l.Leaf(cfg.ConstructReturn, spanOf(n), "")
	case "throw_statement":
		return s.l.Leaf(cfg.ConstructThrow, spanOf(n), "")
	case "goto_statement":
		return s.l.Leaf(cfg.ConstructGoto, spanOf(n), s.text(n.ChildByFieldName("label")))
	}
	return nil
}

func (s *session) children(n *sitter.Node) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if err := s.statement(n.NamedChild(i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) ifStatement(n *sitter.Node) error {
	consequence := n.ChildByFieldName("consequence")
	alternative := n.ChildByFieldName("alternative")
	elseBody := alternative
	if alternative != nil && alternative.Type() == "else_clause" && alternative.NamedChildCount() > 0 {
		elseBody = alternative.NamedChild(int(alternative.NamedChildCount()) - 1)
	}

	kind := cfg.ConstructIf
	if alternative != nil {
		kind = cfg.ConstructIfElse
	}
	span := spanOf(n)

	if err := s.l.Enter(kind, span); err != nil {
		return err
	}
	if err := s.part(cfg.ConstructThen, consequence, consequence); err != nil {
		return err
	}
	if alternative != nil {
		if err := s.part(cfg.ConstructElse, alternative, elseBody); err != nil {
			return err
		}
	}
	return s.l.Exit(kind, span)
}

func (s *session) switchStatement(n *sitter.Node) error {
	span := spanOf(n)
	if err := s.l.Enter(cfg.ConstructSwitch, span); err != nil {
		return err
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if err := s.children(body); err != nil {
			return err
		}
	}
	return s.l.Exit(cfg.ConstructSwitch, span)
}

func (s *session) caseStatement(n *sitter.Node) error {
	kind := cfg.ConstructCase
	if first := n.Child(0); first != nil && first.Type() == "default" {
		kind = cfg.ConstructDefault
	}
	line := startLine(n)
	if err := s.l.Leaf(kind, cfg.Span{Start: line, End: line}, ""); err != nil {
		return err
	}

	value := n.ChildByFieldName("value")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if value != nil && child.Equal(value) {
			continue
		}
		if err := s.statement(child); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) loop(n *sitter.Node, kind cfg.ConstructKind) error {
	span := spanOf(n)
	body := n.ChildByFieldName("body")
	bodySpan := span
	if body != nil {
		bodySpan = spanOf(body)
	}

	if err := s.l.Enter(kind, span); err != nil {
		return err
	}
	if err := s.l.Enter(cfg.ConstructLoopBody, bodySpan); err != nil {
		return err
	}
	if err := s.statement(body); err != nil {
		return err
	}
	if err := s.l.Exit(cfg.ConstructLoopBody, bodySpan); err != nil {
		return err
	}
	return s.l.Exit(kind, span)
}

func (s *session) tryStatement(n *sitter.Node) error {
	span := spanOf(n)
	if err := s.l.Enter(cfg.ConstructTry, span); err != nil {
		return err
	}
	body := n.ChildByFieldName("body")
	if err := s.part(cfg.ConstructTryBody, body, body); err != nil {
		return err
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "catch_clause" {
			continue
		}
		if err := s.part(cfg.ConstructCatch, clause, clause.ChildByFieldName("body")); err != nil {
			return err
		}
	}
	return s.l.Exit(cfg.ConstructTry, span)
}

func (s *session) labeledStatement(n *sitter.Node) error {
	label := n.ChildByFieldName("label")
	line := startLine(n)
	if err := s.l.Leaf(cfg.ConstructLabel, cfg.Span{Start: line, End: line}, s.text(label)); err != nil {
		return err
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if label != nil && child.Equal(label) {
			continue
		}
		if err := s.statement(child); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(s.content)
}

// part brackets the statements of body with Enter/Exit events of kind spanning node.
func (s *session) part(kind cfg.ConstructKind, node, body *sitter.Node) error {
	span := cfg.Span{}
	if node != nil {
		span = spanOf(node)
	}
	if err := s.l.Enter(kind, span); err != nil {
		return err
	}
	if err := s.statement(body); err != nil {
		return err
	}
	return s.l.Exit(kind, span)
}

func spanOf(n *sitter.Node) cfg.Span {
	return cfg.Span{Start: startLine(n), End: endLine(n)}
}

func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}
