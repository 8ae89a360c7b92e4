package deps_test

import (
	"testing"

	"github.com/aretw0/tendril/pkg/deps"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func changes(titles ...string) domain.ChangeSet {
	cs := domain.ChangeSet{}
	for _, t := range titles {
		cs.Record(t, false)
	}
	return cs
}

func TestHasChanged_Titles(t *testing.T) {
	d := deps.New()
	d.Add("A")
	d.Add("B")

	assert.True(t, d.HasChanged(changes("B"), "X"))
	assert.False(t, d.HasChanged(changes("C"), "X"))
	assert.False(t, d.HasChanged(changes("C", "D", "E"), "X"))
	assert.False(t, d.HasChanged(domain.ChangeSet{}, "X"))
}

func TestHasChanged_EntireStore(t *testing.T) {
	d := deps.New()
	d.DependOnAll()

	assert.True(t, d.HasChanged(changes("anything"), "X"))
	assert.False(t, d.HasChanged(domain.ChangeSet{}, "X"), "an empty batch changes nothing")
}

func TestHasChanged_Context(t *testing.T) {
	d := deps.New()
	d.DependOnContext()

	assert.True(t, d.HasChanged(changes("Here"), "Here"))
	assert.False(t, d.HasChanged(changes("Elsewhere"), "Here"))
}

func TestMerge_UnionsChild(t *testing.T) {
	parent := deps.New()
	parent.Add("P")

	child := deps.New()
	child.Add("C")
	child.DependOnAll()

	parent.Merge(child, "Ctx", "Ctx")
	assert.Equal(t, []string{"C", "P"}, parent.Titles())
	assert.True(t, parent.All())
}

func TestMerge_ResolvesChildContext(t *testing.T) {
	same := deps.New()
	child := deps.New()
	child.DependOnContext()

	same.Merge(child, "Home", "Home")
	assert.True(t, same.Context())

	other := deps.New()
	other.Merge(child, "Item", "Home")
	assert.False(t, other.Context())
	assert.True(t, other.Has("Item"))
	assert.True(t, other.HasChanged(changes("Item"), "Home"))
}

func TestCloneIsIndependent(t *testing.T) {
	d := deps.New()
	d.Add("A")
	c := d.Clone()
	c.Add("B")

	assert.False(t, d.Has("B"))
	assert.True(t, deps.New().Empty())
	assert.False(t, c.Empty())
}
