package graph

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/aretw0/tendril/pkg/deps"
)

// allID names the pseudo node standing for the entire store.
const allID = "__all__"

// Node is one entity in the dependency graph.
type Node struct {
	Title string
	// Missing marks a title that is referenced but not in the store.
	Missing bool
	// All marks a rendering that depends on the entire store.
	All     bool
	Depends []string
}

// GraphOverlay highlights part of the graph.
type GraphOverlay struct {
	// Changed titles are styled as touched by the last batch of changes.
	Changed []string
	Current string
}

// Build turns per-title dependencies into graph nodes. Referenced titles that
// exists reports as absent are added as missing nodes.
func Build(dependencies map[string]*deps.Dependencies, exists func(string) bool) []Node {
	titles := make([]string, 0, len(dependencies))
	for title := range dependencies {
		titles = append(titles, title)
	}
	slices.Sort(titles)

	seen := make(map[string]bool, len(titles))
	var nodes, missing []Node
	for _, title := range titles {
		seen[title] = true
	}
	for _, title := range titles {
		d := dependencies[title]
		n := Node{Title: title, All: d.All()}
		for _, dep := range d.Titles() {
			if dep == title {
				continue
			}
			n.Depends = append(n.Depends, dep)
			if !seen[dep] {
				seen[dep] = true
				missing = append(missing, Node{Title: dep, Missing: !exists(dep)})
			}
		}
		nodes = append(nodes, n)
	}
	slices.SortFunc(missing, func(a, b Node) int { return strings.Compare(a.Title, b.Title) })
	return append(nodes, missing...)
}

// GenerateMermaid produces a Mermaid flowchart of which entity renders
// depend on which. Shapes:
// - Current: ((Circle))
// - System entity ($:/...): [[Subroutine]]
// - Missing: [/Parallelogram/]
// - Default: [Rectangle]
func GenerateMermaid(nodes []Node, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	ids := newIDs()
	needsAll := false
	for _, node := range nodes {
		id := ids.get(node.Title)

		opener, closer := "[", "]"
		switch {
		case overlay != nil && node.Title == overlay.Current:
			opener, closer = "((", "))"
		case node.Missing:
			opener, closer = "[/", "/]"
		case strings.HasPrefix(node.Title, "$:/"):
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label(node.Title), closer)

		for _, dep := range node.Depends {
			fmt.Fprintf(&sb, "    %s --> %s\n", id, ids.get(dep))
		}
		if node.All {
			needsAll = true
			fmt.Fprintf(&sb, "    %s -.-> %s\n", id, allID)
		}
	}
	if needsAll {
		fmt.Fprintf(&sb, "    %s{{\"entire store\"}}\n", allID)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef changed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		done := make(map[string]bool)
		for _, title := range overlay.Changed {
			id := ids.get(title)
			if !done[id] {
				done[id] = true
				fmt.Fprintf(&sb, "    class %s changed;\n", id)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", ids.get(overlay.Current))
		}
	}
	return sb.String()
}

func label(title string) string {
	return strings.ReplaceAll(title, "\"", "'")
}

// ids hands out Mermaid-safe identifiers, keeping them unique when two titles
// sanitize to the same string.
type ids struct {
	byTitle map[string]string
	used    map[string]bool
}

func newIDs() *ids {
	return &ids{byTitle: make(map[string]string), used: map[string]bool{allID: true}}
}

func (m *ids) get(title string) string {
	if id, ok := m.byTitle[title]; ok {
		return id
	}
	base := sanitizeMermaidID(title)
	id := base
	for n := 2; m.used[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	m.used[id] = true
	m.byTitle[title] = id
	return id
}

func sanitizeMermaidID(title string) string {
	s := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, title)
	if s == "" || unicode.IsDigit(rune(s[0])) {
		s = "n" + s
	}
	return s
}
