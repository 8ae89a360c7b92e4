package render

import (
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Output formats understood by Render.
const (
	FormatPlain    = "text/plain"
	FormatHTML     = "text/html"
	FormatMarkdown = "text/markdown"
)

var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true, "meta": true, "link": true,
}

// Render serializes the executed tree in one of the static output formats.
func (t *Tree) Render(format string) (string, error) {
	var b strings.Builder
	switch format {
	case FormatPlain:
		for _, root := range t.Roots {
			writePlain(&b, root)
		}
	case FormatHTML:
		for _, root := range t.Roots {
			writeHTML(&b, root)
		}
	case FormatMarkdown:
		md := &markdownWriter{b: &b}
		for _, root := range t.Roots {
			md.node(root)
		}
		return strings.TrimRight(b.String(), "\n") + "\n", nil
	default:
		return "", fmt.Errorf("render %q: %w", format, domain.ErrUnknownFormat)
	}
	return b.String(), nil
}

func writePlain(b *strings.Builder, n *Node) {
	if n.Kind == KindText {
		b.WriteString(n.Text)
		return
	}
	for _, child := range n.Children {
		writePlain(b, child)
	}
}

func writeHTML(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindText:
		b.WriteString(html.EscapeString(n.Text))
	case KindMacro:
		for _, child := range n.Children {
			writeHTML(b, child)
		}
	case KindElement:
		b.WriteByte('<')
		b.WriteString(n.Tag)
		for _, name := range slices.Sorted(maps.Keys(n.Attributes)) {
			if !ports.ValidAttributeName(name) {
				continue
			}
			fmt.Fprintf(b, ` %s="%s"`, name, html.EscapeString(n.Attributes[name]))
		}
		b.WriteByte('>')
		if voidElements[n.Tag] {
			return
		}
		for _, child := range n.Children {
			writeHTML(b, child)
		}
		b.WriteString("</")
		b.WriteString(n.Tag)
		b.WriteByte('>')
	}
}

type markdownWriter struct {
	b    *strings.Builder
	list []string
}

func (w *markdownWriter) node(n *Node) {
	switch n.Kind {
	case KindText:
		w.b.WriteString(n.Text)
	case KindMacro:
		for _, child := range n.Children {
			w.node(child)
		}
	case KindElement:
		w.element(n)
	}
}

func (w *markdownWriter) children(n *Node) {
	for _, child := range n.Children {
		w.node(child)
	}
}

func (w *markdownWriter) element(n *Node) {
	switch n.Tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		w.b.WriteString(strings.Repeat("#", int(n.Tag[1]-'0')) + " ")
		w.children(n)
		w.b.WriteString("\n\n")
	case "p":
		w.children(n)
		w.b.WriteString("\n\n")
	case "strong":
		w.wrapped(n, "**")
	case "em":
		w.wrapped(n, "*")
	case "s":
		w.wrapped(n, "~~")
	case "code":
		w.wrapped(n, "`")
	case "a":
		w.b.WriteByte('[')
		w.children(n)
		fmt.Fprintf(w.b, "](%s)", n.Attributes["href"])
	case "hr":
		w.b.WriteString("---\n\n")
	case "br":
		w.b.WriteString("  \n")
	case "pre":
		w.b.WriteString("```\n")
		writePlain(w.b, n)
		w.b.WriteString("\n```\n\n")
	case "ul", "ol":
		w.list = append(w.list, n.Tag)
		w.children(n)
		w.list = w.list[:len(w.list)-1]
		if len(w.list) == 0 {
			w.b.WriteString("\n")
		}
	case "li":
		depth := max(len(w.list)-1, 0)
		marker := "- "
		if len(w.list) > 0 && w.list[len(w.list)-1] == "ol" {
			marker = "1. "
		}
		w.b.WriteString(strings.Repeat("  ", depth) + marker)
		for _, child := range n.Children {
			if child.Kind == KindElement && (child.Tag == "ul" || child.Tag == "ol") {
				w.b.WriteString("\n")
			}
			w.node(child)
		}
		if !strings.HasSuffix(w.b.String(), "\n") {
			w.b.WriteString("\n")
		}
	default:
		w.children(n)
		if n.Block && !strings.HasSuffix(w.b.String(), "\n\n") {
			w.b.WriteString("\n\n")
		}
	}
}

func (w *markdownWriter) wrapped(n *Node, delim string) {
	w.b.WriteString(delim)
	w.children(n)
	w.b.WriteString(delim)
}
