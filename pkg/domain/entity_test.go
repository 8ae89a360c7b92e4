package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntity_NormalizesFields(t *testing.T) {
	e, err := domain.NewEntity(map[string]any{
		"title":    "HelloThere",
		"text":     "Hi",
		"tags":     "one [[two words]] three",
		"modified": "20240131120000123",
		"count":    3,
	})
	require.NoError(t, err)

	assert.Equal(t, "HelloThere", e.Title())
	assert.Equal(t, []string{"one", "two words", "three"}, e.Tags())
	assert.True(t, e.HasTag("two words"))
	assert.Equal(t, time.Date(2024, 1, 31, 12, 0, 0, 123*int(time.Millisecond), time.UTC), e.Modified())
	assert.Equal(t, domain.TypeWikitext, e.Type())

	count, ok := e.Field("count")
	assert.True(t, ok)
	assert.Equal(t, "3", count)

	tags, _ := e.Field("tags")
	assert.Equal(t, "one [[two words]] three", tags)
}

func TestNewEntity_RequiresTitle(t *testing.T) {
	_, err := domain.NewEntity(map[string]any{"text": "orphan"})
	assert.ErrorIs(t, err, domain.ErrMissingTitle)
}

func TestNewEntity_RejectsBadDate(t *testing.T) {
	_, err := domain.NewEntity(map[string]any{"title": "x", "created": "yesterday"})
	assert.Error(t, err)
}

func TestEntity_WithIsCopyOnWrite(t *testing.T) {
	orig, err := domain.NewEntity(map[string]any{"title": "A", "text": "one", "color": "red"})
	require.NoError(t, err)

	next, err := orig.With(map[string]any{"text": "two", "color": domain.Unset})
	require.NoError(t, err)

	assert.Equal(t, "one", orig.Text())
	assert.True(t, orig.Has("color"))
	assert.Equal(t, "two", next.Text())
	assert.False(t, next.Has("color"))
	assert.Equal(t, "A", next.Title())
}

func TestEntity_TagsAreCopied(t *testing.T) {
	e, err := domain.NewEntity(map[string]any{"title": "A", "tags": []string{"x"}})
	require.NoError(t, err)

	tags := e.Tags()
	tags[0] = "mutated"
	assert.Equal(t, []string{"x"}, e.Tags())
}

func TestEntity_JSONRoundTrip(t *testing.T) {
	e, err := domain.NewEntity(map[string]any{
		"title":   "A",
		"tags":    []string{"a b", "c"},
		"created": time.Date(2023, 5, 1, 8, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"A","tags":"[[a b]] c","created":"20230501083000000"}`, string(data))

	var back domain.Entity
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e.Strings(), back.Strings())
}

func TestParseStringList_UnterminatedBracket(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, domain.ParseStringList("a [[b c"))
	assert.Empty(t, domain.ParseStringList("   "))
}

func TestParseTextReference(t *testing.T) {
	assert.Equal(t, domain.TextReference{Title: "Foo", Field: "text"}, domain.ParseTextReference("Foo"))
	assert.Equal(t, domain.TextReference{Title: "Foo", Field: "caption"}, domain.ParseTextReference("Foo!!caption"))
	assert.Equal(t, "Foo!!caption", domain.ParseTextReference("Foo!!caption").String())
}

func TestChangeSet_LatestMutationWins(t *testing.T) {
	cs := domain.ChangeSet{}
	cs.Record("A", false)
	cs.Record("A", true)
	cs.Record("B", false)

	assert.Equal(t, domain.Change{Deleted: true}, cs["A"])
	assert.Equal(t, []string{"A", "B"}, cs.Titles())
	assert.True(t, cs.Has("B"))
	assert.False(t, cs.Has("C"))
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnReconcile: func(*domain.ReconcileEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{OnReconcile: func(*domain.ReconcileEvent) { calls = append(calls, "b") }}

	merged := a.Merge(b)
	merged.OnReconcile(&domain.ReconcileEvent{})
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, merged.OnParse)
}

func TestCompareTitles_CaseInsensitive(t *testing.T) {
	assert.Negative(t, domain.CompareTitles("apple", "Banana"))
	assert.Positive(t, domain.CompareTitles("banana", "Apple"))
	assert.NotZero(t, domain.CompareTitles("a", "A"))
	assert.Zero(t, domain.CompareTitles("Same", "Same"))
}
