package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/aretw0/tendril/pkg/deps"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []graph.Node
		overlay  *graph.GraphOverlay
		contains []string
	}{
		{
			name:     "Current Node Shape",
			nodes:    []graph.Node{{Title: "Home"}},
			overlay:  &graph.GraphOverlay{Current: "Home"},
			contains: []string{`Home(("Home"))`, "class Home current;"},
		},
		{
			name:     "System Node Shape",
			nodes:    []graph.Node{{Title: "$:/state/x"}},
			contains: []string{`___state_x[["$:/state/x"]]`},
		},
		{
			name:     "Missing Node Shape",
			nodes:    []graph.Node{{Title: "Gone", Missing: true}},
			contains: []string{`Gone[/"Gone"/]`},
		},
		{
			name: "ID Sanitization",
			nodes: []graph.Node{
				{Title: "Hello World"},
				{Title: "Hello-World"},
				{Title: "2024 Notes"},
			},
			contains: []string{
				`Hello_World["Hello World"]`,
				`Hello_World_2["Hello-World"]`,
				`n2024_Notes["2024 Notes"]`,
			},
		},
		{
			name: "Edges",
			nodes: []graph.Node{
				{Title: "Home", Depends: []string{"Part"}, All: true},
				{Title: "Part"},
			},
			contains: []string{
				"Home --> Part",
				"Home -.-> __all__",
				`__all__{{"entire store"}}`,
			},
		},
		{
			name:     "Quote Escaping",
			nodes:    []graph.Node{{Title: `Say "hi"`}},
			contains: []string{`Say__hi_["Say 'hi'"]`},
		},
		{
			name:     "Changed Overlay",
			nodes:    []graph.Node{{Title: "A"}, {Title: "B"}},
			overlay:  &graph.GraphOverlay{Changed: []string{"A", "A", "B"}},
			contains: []string{"class A changed;\n    class B changed;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.nodes, tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	home := deps.New()
	home.Add("Home")
	home.Add("Part")
	home.Add("Ghost")
	list := deps.New()
	list.DependOnAll()

	nodes := graph.Build(map[string]*deps.Dependencies{"Home": home, "List": list}, func(title string) bool {
		return title == "Part"
	})

	assert.Equal(t, []graph.Node{
		{Title: "Home", Depends: []string{"Ghost", "Part"}},
		{Title: "List", All: true},
		{Title: "Ghost", Missing: true},
		{Title: "Part"},
	}, nodes)
}
