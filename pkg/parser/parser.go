// Package parser scans markup with a grammar's composite matchers and builds a parse tree.
package parser

import (
	"log/slog"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/grammar"
	"github.com/aretw0/tendril/pkg/tree"
)

var blankLine = regexp.MustCompile(`\r?\n\r?\n`)

// Parser parses source texts with one grammar. Safe for concurrent use.
type Parser struct {
	grammar *grammar.Grammar
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used to report forward-progress guard trips.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// WithHooks registers lifecycle hooks; only OnParse is used.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(p *Parser) {
		p.hooks = hooks
	}
}

// New creates a parser for g.
func New(g *grammar.Grammar, opts ...Option) *Parser {
	p := &Parser{
		grammar: g,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses source with g using default options.
func Parse(source string, g *grammar.Grammar) *tree.ParseTree {
	return New(g).Parse(source)
}

// Parse turns source into a parse tree. It never fails: unmatched constructs
// degrade to literal text and loose runs to paragraphs.
func (p *Parser) Parse(source string) *tree.ParseTree {
	start := time.Now()
	s := &scanner{
		src:    source,
		block:  p.grammar.Matcher(grammar.Block),
		run:    p.grammar.Matcher(grammar.Run),
		logger: p.logger,
		terms:  make(map[*regexp.Regexp]*regexp.Regexp),
	}
	nodes := s.ParseBlocks(nil)

	if p.hooks.OnParse != nil {
		p.hooks.OnParse(&domain.ParseEvent{
			Length:   len(source),
			Nodes:    tree.Count(nodes),
			Guarded:  s.guarded,
			Duration: time.Since(start),
		})
	}
	return &tree.ParseTree{Nodes: nodes}
}

// scanner is the state of one parse pass. It implements grammar.Scanner.
type scanner struct {
	src     string
	pos     int
	block   *grammar.Matcher
	run     *grammar.Matcher
	logger  *slog.Logger
	guarded int
	// terms caches paragraph terminators combined with a blank line.
	terms map[*regexp.Regexp]*regexp.Regexp
}

func (s *scanner) Source() string { return s.src }
func (s *scanner) Pos() int       { return s.pos }

func (s *scanner) SetPos(pos int) {
	s.pos = min(max(pos, 0), len(s.src))
}

func (s *scanner) SkipWhitespace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\r', '\n':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) ParseBlocks(terminator *regexp.Regexp) []tree.Node {
	var nodes []tree.Node
	for {
		s.SkipWhitespace()
		if s.pos >= len(s.src) || s.matchesAt(terminator) {
			return nodes
		}
		start := s.pos
		nodes = append(nodes, s.parseBlock(terminator)...)
		if s.pos <= start {
			nodes = s.forceProgress(nodes, "paragraph", start)
		}
	}
}

func (s *scanner) parseBlock(terminator *regexp.Regexp) []tree.Node {
	if m, ok := s.block.Find(s.src, s.pos); ok && m.Start == s.pos {
		start := s.pos
		nodes := m.Rule.Parse(s, m)
		if s.pos > start {
			return nodes
		}
		s.logger.Warn("block rule did not advance, parsing as paragraph", "rule", m.Rule.Name, "pos", start)
		s.guarded++
		s.pos = start
	}

	children := s.ParseRun(s.paragraphTerminator(terminator))
	if len(children) == 0 {
		return nil
	}
	return []tree.Node{&tree.Element{Tag: "p", Children: children, Block: true}}
}

func (s *scanner) ParseRun(terminator *regexp.Regexp) []tree.Node {
	if terminator == nil {
		terminator = blankLine
	}

	var nodes []tree.Node
	termStart, termFound := s.find(terminator, s.pos)
	for s.pos < len(s.src) {
		if termFound && termStart < s.pos {
			termStart, termFound = s.find(terminator, s.pos)
		}

		m, ok := s.run.Find(s.src, s.pos)
		if !ok || (termFound && termStart <= m.Start) {
			end := len(s.src)
			if termFound {
				end = termStart
			}
			nodes = appendText(nodes, s.src[s.pos:end])
			s.pos = end
			return nodes
		}

		nodes = appendText(nodes, s.src[s.pos:m.Start])
		s.pos = m.Start
		start := s.pos
		nodes = append(nodes, m.Rule.Parse(s, m)...)
		if s.pos <= start {
			nodes = s.forceProgress(nodes, m.Rule.Name, start)
		}
	}
	return nodes
}

// forceProgress moves the cursor one rune past start and keeps that rune as text.
// It guards against rules that match without consuming input.
func (s *scanner) forceProgress(nodes []tree.Node, rule string, start int) []tree.Node {
	s.guarded++
	s.logger.Warn("rule did not advance the cursor", "rule", rule, "pos", start)
	if start >= len(s.src) {
		s.pos = len(s.src)
		return nodes
	}
	_, width := utf8.DecodeRuneInString(s.src[start:])
	s.pos = start + width
	return appendText(nodes, s.src[start:s.pos])
}

func (s *scanner) find(re *regexp.Regexp, from int) (int, bool) {
	loc := re.FindStringIndex(s.src[from:])
	if loc == nil {
		return 0, false
	}
	return from + loc[0], true
}

func (s *scanner) matchesAt(re *regexp.Regexp) bool {
	if re == nil {
		return false
	}
	at, ok := s.find(re, s.pos)
	return ok && at == s.pos
}

func (s *scanner) paragraphTerminator(outer *regexp.Regexp) *regexp.Regexp {
	if outer == nil {
		return blankLine
	}
	if re, ok := s.terms[outer]; ok {
		return re
	}
	re := regexp.MustCompile(`(?:` + outer.String() + `)|` + blankLine.String())
	s.terms[outer] = re
	return re
}

func appendText(nodes []tree.Node, text string) []tree.Node {
	if text == "" {
		return nodes
	}
	if n := len(nodes); n > 0 {
		if last, ok := nodes[n-1].(*tree.Text); ok {
			last.Text += text
			return nodes
		}
	}
	return append(nodes, tree.NewText(text))
}
