package query_test

import (
	"slices"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource map[string]*domain.Entity

func (f fakeSource) Get(title string) (*domain.Entity, bool) {
	e, ok := f[title]
	return e, ok
}

func (f fakeSource) AllTitles(pred func(*domain.Entity) bool) []string {
	var out []string
	for title, e := range f {
		if pred == nil || pred(e) {
			out = append(out, title)
		}
	}
	slices.SortFunc(out, domain.CompareTitles)
	return out
}

func entity(t *testing.T, fields map[string]any) *domain.Entity {
	t.Helper()
	e, err := domain.NewEntity(fields)
	require.NoError(t, err)
	return e
}

func source(t *testing.T) fakeSource {
	return fakeSource{
		"banana":      entity(t, map[string]any{"title": "banana", "tags": "fruit", "color": "yellow"}),
		"Apple":       entity(t, map[string]any{"title": "Apple", "tags": "fruit", "color": "red"}),
		"carrot":      entity(t, map[string]any{"title": "carrot", "tags": "vegetable", "color": "orange"}),
		"$:/settings": entity(t, map[string]any{"title": "$:/settings"}),
	}
}

func apply(t *testing.T, expr string) []string {
	t.Helper()
	f, err := query.Parse(expr)
	require.NoError(t, err)
	assert.Equal(t, expr, f.String())
	return f.Apply(source(t))
}

func TestApply_Runs(t *testing.T) {
	assert.Equal(t, []string{"$:/settings", "Apple", "banana", "carrot"}, apply(t, "[title[$:/settings]] [!is[system]]"))
	assert.Equal(t, []string{"Apple", "banana"}, apply(t, "[tag[fruit]]"))
	assert.Equal(t, []string{"carrot"}, apply(t, "[!is[system]!tag[fruit]]"))
	assert.Equal(t, []string{"banana"}, apply(t, "[field:color[yellow]]"))
	assert.Equal(t, []string{"Apple", "banana", "carrot"}, apply(t, "[has[color]]"))
	assert.Equal(t, []string{"carrot"}, apply(t, "[prefix[car]]"))
}

func TestApply_SortAndLimit(t *testing.T) {
	assert.Equal(t, []string{"carrot", "banana", "Apple"}, apply(t, "[!is[system]!sort[title]]"))
	assert.Equal(t, []string{"carrot", "Apple", "banana"}, apply(t, "[!is[system]sort[color]]"))
	assert.Equal(t, []string{"Apple", "banana"}, apply(t, "[!is[system]limit[2]]"))
	assert.Equal(t, []string{"carrot"}, apply(t, "[!is[system]!limit[1]]"))
}

func TestApply_LiteralsAndUnion(t *testing.T) {
	assert.Equal(t, []string{"One", "Two Words", "quoted", "Apple", "banana"}, apply(t, `One [[Two Words]] "quoted" [tag[fruit]] One`))
	assert.Equal(t, []string{"Missing"}, apply(t, "Missing [is[missing]]"))
}

func TestParse_Errors(t *testing.T) {
	for _, expr := range []string{"[[open", "[tag[x]", "[bogus[x]]", "[]", "[limit[many]]", `"open`, "[tag"} {
		_, err := query.Parse(expr)
		assert.Error(t, err, expr)
	}
}
