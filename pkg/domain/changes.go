package domain

import (
	"maps"
	"slices"
)

// Change describes what happened to one title within a batch.
type Change struct {
	Modified bool `json:"modified,omitempty"`
	Deleted  bool `json:"deleted,omitempty"`
}

// ChangeSet maps titles to the change they underwent since listeners were last notified.
type ChangeSet map[string]Change

// Record notes a mutation of title. The latest mutation in a batch wins.
func (c ChangeSet) Record(title string, deleted bool) {
	if deleted {
		c[title] = Change{Deleted: true}
		return
	}
	c[title] = Change{Modified: true}
}

// Has reports whether title is part of the batch.
func (c ChangeSet) Has(title string) bool {
	_, ok := c[title]
	return ok
}

// Titles returns the changed titles in lexical order.
func (c ChangeSet) Titles() []string {
	return slices.Sorted(maps.Keys(c))
}

// Merge folds other into c, with other taking precedence.
func (c ChangeSet) Merge(other ChangeSet) {
	maps.Copy(c, other)
}
