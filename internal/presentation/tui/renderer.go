package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/tendril/pkg/render"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return r.Render, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or 0 when unknown.
func TerminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// WriteMarkdown writes markdown to w, styled with glamour when pretty is set.
// Styling failures fall back to the raw markdown.
func WriteMarkdown(w io.Writer, markdown string, pretty bool, width int) error {
	if pretty {
		renderer, err := NewRenderer(width)
		if err == nil {
			if out, err := renderer(markdown); err == nil {
				_, werr := io.WriteString(w, out)
				return werr
			}
		}
	}
	_, err := io.WriteString(w, markdown)
	return err
}

// FormatStats summarizes a reconciliation, coloured for the terminal when
// colour is set.
func FormatStats(title string, s render.Stats, colour bool) string {
	line := fmt.Sprintf("%s: reused=%d refreshed=%d rebuilt=%d inserted=%d removed=%d",
		title, s.Reused, s.Refreshed, s.Rebuilt, s.Inserted, s.Removed)
	if !colour {
		return line
	}
	p := termenv.ColorProfile()
	color := "#34d399"
	if s.Rebuilt > 0 || s.Removed > 0 {
		color = "#fbbf24"
	}
	return termenv.String(line).Foreground(p.Color(color)).String()
}
