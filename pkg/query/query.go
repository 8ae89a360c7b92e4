/*
Package query implements the filter expressions accepted by query-typed macro parameters.

A filter is a sequence of items. A literal title (bare, quoted or in [[double brackets]])
adds itself. A bracketed run of steps, such as [tag[task]!is[system]sort[title]], starts
from every title in the store and narrows or reorders it step by step. Results are the
ordered union of all items without duplicates.
*/
package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
)

// Source is the read access a filter needs. ports.EntityStore satisfies it.
type Source interface {
	Get(title string) (*domain.Entity, bool)
	AllTitles(predicate func(*domain.Entity) bool) []string
}

// Filter is a parsed filter expression.
type Filter struct {
	src   string
	items []item
}

type item struct {
	literal string
	steps   []step
}

type step struct {
	op      string
	suffix  string
	operand string
	negate  bool
}

var operators = map[string]bool{
	"tag": true, "is": true, "prefix": true, "field": true, "has": true,
	"title": true, "sort": true, "limit": true,
}

// Parse parses a filter expression.
func Parse(src string) (*Filter, error) {
	f := &Filter{src: src}
	for i := 0; i < len(src); {
		switch c := src[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.HasPrefix(src[i:], "[["):
			end := strings.Index(src[i+2:], "]]")
			if end < 0 {
				return nil, fmt.Errorf("unterminated [[ at %d", i)
			}
			f.items = append(f.items, item{literal: src[i+2 : i+2+end]})
			i += end + 4
		case c == '[':
			steps, next, err := parseSteps(src, i+1)
			if err != nil {
				return nil, err
			}
			f.items = append(f.items, item{steps: steps})
			i = next
		case c == '"' || c == '\'':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote at %d", i)
			}
			f.items = append(f.items, item{literal: src[i+1 : i+1+end]})
			i += end + 2
		default:
			end := strings.IndexAny(src[i:], " \t\r\n[")
			if end < 0 {
				end = len(src) - i
			}
			f.items = append(f.items, item{literal: src[i : i+end]})
			i += end
		}
	}
	return f, nil
}

// parseSteps reads steps from pos up to the closing bracket of the run.
func parseSteps(src string, pos int) ([]step, int, error) {
	var steps []step
	for pos < len(src) {
		if src[pos] == ']' {
			if len(steps) == 0 {
				return nil, 0, fmt.Errorf("empty filter run at %d", pos)
			}
			return steps, pos + 1, nil
		}
		var s step
		if src[pos] == '!' {
			s.negate = true
			pos++
		}
		open := strings.IndexByte(src[pos:], '[')
		if open < 0 {
			return nil, 0, fmt.Errorf("missing operand at %d", pos)
		}
		name := src[pos : pos+open]
		s.op, s.suffix, _ = strings.Cut(name, ":")
		if !operators[s.op] {
			return nil, 0, fmt.Errorf("unknown filter operator %q", s.op)
		}
		pos += open + 1
		end := strings.IndexByte(src[pos:], ']')
		if end < 0 {
			return nil, 0, fmt.Errorf("unterminated operand of %q", s.op)
		}
		s.operand = src[pos : pos+end]
		if s.op == "limit" {
			if _, err := strconv.Atoi(s.operand); err != nil {
				return nil, 0, fmt.Errorf("limit needs a number, got %q", s.operand)
			}
		}
		steps = append(steps, s)
		pos += end + 1
	}
	return nil, 0, fmt.Errorf("unterminated filter run")
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.src
}

// Apply evaluates the filter against a source.
func (f *Filter) Apply(src Source) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(titles ...string) {
		for _, t := range titles {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	for _, it := range f.items {
		if it.steps == nil {
			add(it.literal)
			continue
		}
		titles := src.AllTitles(nil)
		for _, s := range it.steps {
			titles = s.apply(src, titles)
		}
		add(titles...)
	}
	return out
}

func (s step) apply(src Source, titles []string) []string {
	switch s.op {
	case "sort":
		field := s.operand
		if field == "" {
			field = domain.FieldTitle
		}
		sorted := slices.Clone(titles)
		slices.SortStableFunc(sorted, func(a, b string) int {
			c := domain.CompareTitles(fieldOf(src, a, field), fieldOf(src, b, field))
			if s.negate {
				return -c
			}
			return c
		})
		return sorted
	case "limit":
		n, _ := strconv.Atoi(s.operand)
		if s.negate {
			return titles[max(len(titles)-n, 0):]
		}
		return titles[:min(n, len(titles))]
	}

	var kept []string
	for _, title := range titles {
		if s.keep(src, title) != s.negate {
			kept = append(kept, title)
		}
	}
	return kept
}

func (s step) keep(src Source, title string) bool {
	switch s.op {
	case "title":
		return title == s.operand
	case "prefix":
		return strings.HasPrefix(title, s.operand)
	case "is":
		switch s.operand {
		case "system":
			return strings.HasPrefix(title, "$:/")
		case "missing":
			_, ok := src.Get(title)
			return !ok
		}
		return false
	}

	e, ok := src.Get(title)
	if !ok {
		return false
	}
	switch s.op {
	case "tag":
		return e.HasTag(s.operand)
	case "has":
		return e.Has(s.operand)
	case "field":
		v, _ := e.Field(s.suffix)
		return v == s.operand
	}
	return false
}

func fieldOf(src Source, title, field string) string {
	if field == domain.FieldTitle {
		return title
	}
	e, ok := src.Get(title)
	if !ok {
		return ""
	}
	v, _ := e.Field(field)
	return v
}
