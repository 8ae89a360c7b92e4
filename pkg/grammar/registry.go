package grammar

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/tree"
)

// Class selects the rule set a rule belongs to.
type Class string

const (
	Block Class = "block"
	Run   Class = "run"
)

// Scanner is the view of the parser that rule parse functions work with.
type Scanner interface {
	Source() string
	Pos() int
	SetPos(pos int)
	SkipWhitespace()
	// ParseRun parses inline content up to terminator, or a blank line when terminator is nil.
	// The cursor is left at the start of the terminator.
	ParseRun(terminator *regexp.Regexp) []tree.Node
	// ParseBlocks parses blocks until terminator matches at the cursor or input ends.
	// The cursor is left at the start of the terminator.
	ParseBlocks(terminator *regexp.Regexp) []tree.Node
}

// ParseFunc turns a match into nodes. It must advance the cursor past what it consumed.
type ParseFunc func(s Scanner, m Match) []tree.Node

// Rule is one grammar production.
type Rule struct {
	Name    string
	Pattern string
	Parse   ParseFunc
}

// Registry collects rules per class. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[Class][]Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[Class][]Rule),
	}
}

// Register adds a rule to a class.
// It returns a *domain.ConfigError when the name is already registered in that class
// or when the rule is malformed.
func (r *Registry) Register(class Class, rule Rule) error {
	if class != Block && class != Run {
		return &domain.ConfigError{Kind: "rule", Name: rule.Name, Err: fmt.Errorf("unknown class %q", class)}
	}
	if rule.Name == "" || rule.Parse == nil {
		return &domain.ConfigError{Kind: "rule", Name: rule.Name, Err: errors.New("rule needs a name and a parse function")}
	}
	if _, err := regexp.Compile(rule.Pattern); err != nil {
		return &domain.ConfigError{Kind: "rule", Name: rule.Name, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rules[class] {
		if existing.Name == rule.Name {
			return &domain.ConfigError{Kind: "rule", Name: rule.Name, Err: domain.ErrDuplicateRule}
		}
	}
	r.rules[class] = append(r.rules[class], rule)
	return nil
}

// MustRegister is like Register but panics on error. Intended for startup code.
func (r *Registry) MustRegister(class Class, rule Rule) {
	if err := r.Register(class, rule); err != nil {
		panic(err)
	}
}

// Names returns the rule names of a class in registration order.
func (r *Registry) Names(class Class) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rules[class]))
	for _, rule := range r.rules[class] {
		names = append(names, rule.Name)
	}
	return names
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	disabled []string
}

// WithDisabled leaves the named rules out of the built grammar, in every class.
func WithDisabled(names ...string) BuildOption {
	return func(c *buildConfig) {
		c.disabled = append(c.disabled, names...)
	}
}

// Build compiles the composite matcher of each class.
func (r *Registry) Build(opts ...BuildOption) (*Grammar, error) {
	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	g := &Grammar{classes: make(map[Class]*composite, 2)}
	for _, class := range []Class{Block, Run} {
		var enabled []Rule
		for _, rule := range r.rules[class] {
			if !slices.Contains(cfg.disabled, rule.Name) {
				enabled = append(enabled, rule)
			}
		}
		c, err := compile(class, enabled)
		if err != nil {
			return nil, err
		}
		g.classes[class] = c
	}
	return g, nil
}

// composite is the compiled alternation of one class.
type composite struct {
	re    *regexp.Regexp
	rules []Rule
	// groups[i] is the capture group wrapping rule i.
	groups []int
	// widths[i] is the number of capture groups inside rule i.
	widths []int
}

func compile(class Class, rules []Rule) (*composite, error) {
	c := &composite{rules: rules}
	if len(rules) == 0 {
		return c, nil
	}

	var sb strings.Builder
	sb.WriteString("(?m)")
	group := 1
	for i, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, &domain.ConfigError{Kind: "rule", Name: rule.Name, Err: err}
		}
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString("(")
		sb.WriteString(rule.Pattern)
		sb.WriteString(")")
		c.groups = append(c.groups, group)
		c.widths = append(c.widths, re.NumSubexp())
		group += 1 + re.NumSubexp()
	}

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, &domain.ConfigError{Kind: "grammar", Name: string(class), Err: err}
	}
	c.re = re
	return c, nil
}

// Grammar is a built, immutable rule set.
type Grammar struct {
	classes map[Class]*composite
}

// Matcher returns a fresh matcher for one parse pass.
func (g *Grammar) Matcher(class Class) *Matcher {
	return &Matcher{c: g.classes[class]}
}

// Rules returns the enabled rules of a class in order.
func (g *Grammar) Rules(class Class) []Rule {
	c := g.classes[class]
	if c == nil {
		return nil
	}
	return slices.Clone(c.rules)
}
