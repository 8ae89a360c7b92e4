package wikitext

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/grammar"
	"github.com/aretw0/tendril/pkg/tree"
)

// attrList matches the attribute part of an HTML open tag as a single group.
const attrList = `((?:\s+[^\s=/>]+(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>"']+))?)*)`

var (
	lineEnd   = regexp.MustCompile(`\r?\n`)
	macroEnd  = regexp.MustCompile(`>>`)
	codeEnd   = regexp.MustCompile(`\r?\n\}\}\}`)
	listLine  = regexp.MustCompile(`^([*#]+)[ \t]*`)
	attribute = regexp.MustCompile(`([^\s=/>]+)(?:\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>"']+)))?`)

	emphasisTags = map[string]string{"''": "strong", "//": "em", "__": "u", "~~": "s"}
	emphasisEnds = map[string]*regexp.Regexp{
		"''": regexp.MustCompile(`''|\r?\n\r?\n`),
		"//": regexp.MustCompile(`//|\r?\n\r?\n`),
		"__": regexp.MustCompile(`__|\r?\n\r?\n`),
		"~~": regexp.MustCompile(`~~|\r?\n\r?\n`),
	}

	voidTags = map[string]bool{"br": true, "hr": true, "img": true, "input": true, "meta": true, "link": true}
)

// BlockRules returns the default block rules in registration order.
func BlockRules() []grammar.Rule {
	return []grammar.Rule{
		{Name: "heading", Pattern: `^(!{1,6})[ \t]*`, Parse: parseHeading},
		{Name: "rule", Pattern: `^-{3,}[ \t]*(?:\r?\n|$)`, Parse: parseRule},
		{Name: "list", Pattern: `^[*#]+`, Parse: parseList},
		{Name: "codeblock", Pattern: `^\{\{\{[ \t]*\r?\n`, Parse: parseCodeBlock},
		{Name: "macro", Pattern: `^<<([^\s>]+)((?:[^>]|>[^><])*)>>[ \t]*(?:\r?\n|$)`, Parse: parseBlockMacro},
		{Name: "html", Pattern: `^<([A-Za-z_][\w\-]*)` + attrList + `\s*>[ \t]*\r?\n`, Parse: parseBlockHTML},
	}
}

// RunRules returns the default run rules in registration order.
func RunRules() []grammar.Rule {
	return []grammar.Rule{
		{Name: "macro", Pattern: `<<([^\s>]+)((?:[^>]|>[^><])*)>([><])`, Parse: parseMacro},
		{Name: "prettylink", Pattern: `\[\[([^\]|]*)(?:\|([^\]]*))?\]\]`, Parse: parsePrettyLink},
		{Name: "transclude", Pattern: `\{\{([^{}|]*)(?:\|\|([^{}|]*))?\}\}`, Parse: parseTransclude},
		{Name: "html", Pattern: `<([A-Za-z_][\w\-]*)` + attrList + `\s*(/?)>`, Parse: parseHTML},
		{Name: "extlink", Pattern: `(?:https?|mailto|ftp|file):[^\s<>{}\[\]` + "`" + `|"\\^]+(?:/|\b)`, Parse: parseExtLink},
		{Name: "emphasis", Pattern: `''|//|__|~~`, Parse: parseEmphasis},
		{Name: "wikilink", Pattern: `~?\b[A-Z][a-z0-9]+[A-Z][A-Za-z0-9]*\b`, Parse: parseWikiLink},
		{Name: "code", Pattern: "`([^`\\n]*)`", Parse: parseCode},
	}
}

// RegisterRules adds the default rules to r.
func RegisterRules(r *grammar.Registry) error {
	for _, rule := range BlockRules() {
		if err := r.Register(grammar.Block, rule); err != nil {
			return err
		}
	}
	for _, rule := range RunRules() {
		if err := r.Register(grammar.Run, rule); err != nil {
			return err
		}
	}
	return nil
}

// NewGrammar builds a grammar holding the default rules.
func NewGrammar(opts ...grammar.BuildOption) (*grammar.Grammar, error) {
	r := grammar.NewRegistry()
	if err := RegisterRules(r); err != nil {
		return nil, err
	}
	return r.Build(opts...)
}

func parseHeading(s grammar.Scanner, m grammar.Match) []tree.Node {
	level := len(m.Group(1))
	s.SetPos(m.End)
	children := s.ParseRun(lineEnd)
	skipLineEnd(s)
	return []tree.Node{&tree.Element{Tag: "h" + strconv.Itoa(level), Children: children, Block: true}}
}

func parseRule(s grammar.Scanner, m grammar.Match) []tree.Node {
	s.SetPos(m.End)
	return []tree.Node{&tree.Element{Tag: "hr", Block: true}}
}

type listLevel struct {
	marker byte
	list   *tree.Element
	item   *tree.Element
}

func listTag(marker byte) string {
	if marker == '#' {
		return "ol"
	}
	return "ul"
}

// parseList consumes consecutive list lines. The marker prefix of each line
// selects its nesting: "*" and "#" open unordered and ordered lists.
func parseList(s grammar.Scanner, _ grammar.Match) []tree.Node {
	var roots []tree.Node
	var stack []*listLevel
	for {
		src, pos := s.Source(), s.Pos()
		loc := listLine.FindStringSubmatchIndex(src[pos:])
		if loc == nil {
			break
		}
		markers := src[pos+loc[2] : pos+loc[3]]
		s.SetPos(pos + loc[1])

		common := 0
		for common < len(stack) && common < len(markers) && stack[common].marker == markers[common] {
			common++
		}
		stack = stack[:common]
		for depth := common; depth < len(markers); depth++ {
			list := &tree.Element{Tag: listTag(markers[depth]), Block: true}
			if depth == 0 {
				roots = append(roots, list)
			} else {
				parent := stack[depth-1]
				if parent.item == nil {
					parent.item = &tree.Element{Tag: "li", Block: true}
					parent.list.Children = append(parent.list.Children, parent.item)
				}
				parent.item.Children = append(parent.item.Children, list)
			}
			stack = append(stack, &listLevel{marker: markers[depth], list: list})
		}

		top := stack[len(stack)-1]
		top.item = &tree.Element{Tag: "li", Block: true}
		top.list.Children = append(top.list.Children, top.item)
		top.item.Children = append(top.item.Children, s.ParseRun(lineEnd)...)
		skipLineEnd(s)
	}
	return roots
}

func parseCodeBlock(s grammar.Scanner, m grammar.Match) []tree.Node {
	src := s.Source()
	start := m.End
	text := src[start:]
	end := len(src)
	if loc := codeEnd.FindStringIndex(src[start:]); loc != nil {
		text = src[start : start+loc[0]]
		end = start + loc[1]
	}
	s.SetPos(end)
	skipLineEnd(s)
	code := tree.NewElement("code", nil, tree.NewText(text))
	return []tree.Node{&tree.Element{Tag: "pre", Children: []tree.Node{code}, Block: true}}
}

func parseBlockMacro(s grammar.Scanner, m grammar.Match) []tree.Node {
	s.SetPos(m.End)
	return []tree.Node{&tree.Macro{Name: m.Group(1), Args: strings.TrimSpace(m.Group(2)), Block: true}}
}

func parseBlockHTML(s grammar.Scanner, m grammar.Match) []tree.Node {
	tag, attrs := m.Group(1), parseAttributes(m.Group(2))
	s.SetPos(m.End)
	if voidTags[tag] {
		return []tree.Node{htmlNode(tag, attrs, nil, true)}
	}
	closer := closersFor(tag)
	children := s.ParseBlocks(closer.block)
	skipAt(s, closer.block)
	return []tree.Node{htmlNode(tag, attrs, children, true)}
}

func parseMacro(s grammar.Scanner, m grammar.Match) []tree.Node {
	node := &tree.Macro{Name: m.Group(1), Args: strings.TrimSpace(m.Group(2))}
	s.SetPos(m.End)
	if m.Group(3) == "<" {
		node.Content = s.ParseRun(macroEnd)
		skipAt(s, macroEnd)
	}
	return []tree.Node{node}
}

func parsePrettyLink(s grammar.Scanner, m grammar.Match) []tree.Node {
	s.SetPos(m.End)
	text := m.Group(1)
	target := text
	if start, _ := m.GroupIndex(2); start >= 0 {
		target = m.Group(2)
	}
	return []tree.Node{&tree.Macro{
		Name:    "link",
		Preset:  map[string]string{"to": strings.TrimSpace(target)},
		Content: []tree.Node{tree.NewText(text)},
	}}
}

// parseTransclude handles {{Title}}, {{Title||Template}} and {{Title!!field}}.
func parseTransclude(s grammar.Scanner, m grammar.Match) []tree.Node {
	s.SetPos(m.End)
	target := strings.TrimSpace(m.Group(1))
	template := strings.TrimSpace(m.Group(2))
	if strings.Contains(target, "!!") {
		ref := domain.ParseTextReference(target)
		preset := map[string]string{"field": ref.Field}
		if ref.Title != "" {
			preset["tiddler"] = ref.Title
		}
		return []tree.Node{&tree.Macro{Name: "view", Preset: preset}}
	}
	preset := map[string]string{}
	if target != "" {
		preset["target"] = target
	}
	if template != "" {
		preset["template"] = template
	}
	return []tree.Node{&tree.Macro{Name: "tiddler", Preset: preset}}
}

func parseHTML(s grammar.Scanner, m grammar.Match) []tree.Node {
	tag, attrs := m.Group(1), parseAttributes(m.Group(2))
	s.SetPos(m.End)
	if voidTags[tag] || m.Group(3) == "/" {
		return []tree.Node{htmlNode(tag, attrs, nil, false)}
	}
	closer := closersFor(tag)
	children := s.ParseRun(closer.run)
	skipAt(s, closer.block)
	return []tree.Node{htmlNode(tag, attrs, children, false)}
}

func parseExtLink(s grammar.Scanner, m grammar.Match) []tree.Node {
	s.SetPos(m.End)
	url := m.Text()
	return []tree.Node{tree.NewElement("a", map[string]string{"href": url, "class": "tendril-external"}, tree.NewText(url))}
}

func parseEmphasis(s grammar.Scanner, m grammar.Match) []tree.Node {
	delim := m.Text()
	s.SetPos(m.End)
	children := s.ParseRun(emphasisEnds[delim])
	if strings.HasPrefix(s.Source()[s.Pos():], delim) {
		s.SetPos(s.Pos() + len(delim))
	}
	return []tree.Node{&tree.Element{Tag: emphasisTags[delim], Children: children}}
}

func parseWikiLink(s grammar.Scanner, m grammar.Match) []tree.Node {
	s.SetPos(m.End)
	word := m.Text()
	if escaped, ok := strings.CutPrefix(word, "~"); ok {
		return []tree.Node{tree.NewText(escaped)}
	}
	return []tree.Node{&tree.Macro{
		Name:    "link",
		Preset:  map[string]string{"to": word},
		Content: []tree.Node{tree.NewText(word)},
	}}
}

func parseCode(s grammar.Scanner, m grammar.Match) []tree.Node {
	s.SetPos(m.End)
	return []tree.Node{tree.NewElement("code", nil, tree.NewText(m.Group(1)))}
}

// htmlNode builds an element, or a macro call for tags written as <_name>.
func htmlNode(tag string, attrs map[string]string, children []tree.Node, block bool) tree.Node {
	if name, ok := strings.CutPrefix(tag, "_"); ok {
		return &tree.Macro{Name: name, Preset: attrs, Content: children, Block: block}
	}
	return &tree.Element{Tag: tag, Attributes: attrs, Children: children, Block: block}
}

func parseAttributes(raw string) map[string]string {
	matches := attribute.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(matches))
	for _, loc := range matches {
		name := raw[loc[2]:loc[3]]
		value := "true"
		for g := 2; g <= 4; g++ {
			if loc[2*g] >= 0 {
				value = raw[loc[2*g]:loc[2*g+1]]
				break
			}
		}
		attrs[name] = value
	}
	return attrs
}

type closers struct {
	// block matches the closing tag alone, run also stops at a blank line.
	block *regexp.Regexp
	run   *regexp.Regexp
}

var closerCache sync.Map

func closersFor(tag string) closers {
	if c, ok := closerCache.Load(tag); ok {
		return c.(closers)
	}
	end := `</` + regexp.QuoteMeta(tag) + `\s*>`
	c := closers{
		block: regexp.MustCompile(end),
		run:   regexp.MustCompile(end + `|\r?\n\r?\n`),
	}
	closerCache.Store(tag, c)
	return c
}

func skipLineEnd(s grammar.Scanner) {
	rest := s.Source()[s.Pos():]
	switch {
	case strings.HasPrefix(rest, "\r\n"):
		s.SetPos(s.Pos() + 2)
	case strings.HasPrefix(rest, "\n"):
		s.SetPos(s.Pos() + 1)
	}
}

// skipAt moves past re when it matches at the cursor.
func skipAt(s grammar.Scanner, re *regexp.Regexp) {
	if loc := re.FindStringIndex(s.Source()[s.Pos():]); loc != nil && loc[0] == 0 {
		s.SetPos(s.Pos() + loc[1])
	}
}
