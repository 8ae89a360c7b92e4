// Package deps tracks which entities an executed node depends on.
package deps

import (
	"maps"
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
)

// Dependencies is the set of titles a node reads, plus two flags:
// All marks a dependency on the entire store and Self a dependency on
// whatever entity is the node's context.
type Dependencies struct {
	titles map[string]struct{}
	all    bool
	self   bool
}

// New creates an empty dependency set.
func New() *Dependencies {
	return &Dependencies{}
}

// Add records a dependency on title.
func (d *Dependencies) Add(title string) {
	if d.titles == nil {
		d.titles = make(map[string]struct{})
	}
	d.titles[title] = struct{}{}
}

// DependOnAll marks the node as depending on the entire store.
func (d *Dependencies) DependOnAll() { d.all = true }

// DependOnContext marks the node as depending on its context entity.
func (d *Dependencies) DependOnContext() { d.self = true }

func (d *Dependencies) All() bool     { return d.all }
func (d *Dependencies) Context() bool { return d.self }

// Has reports whether title is tracked explicitly.
func (d *Dependencies) Has(title string) bool {
	_, ok := d.titles[title]
	return ok
}

// Titles returns the tracked titles in lexical order.
func (d *Dependencies) Titles() []string {
	return slices.Sorted(maps.Keys(d.titles))
}

// Empty reports whether nothing is tracked.
func (d *Dependencies) Empty() bool {
	return len(d.titles) == 0 && !d.all && !d.self
}

// Merge unions child into d. A child's context dependency is resolved against
// the child's own context title, which may differ from d's.
func (d *Dependencies) Merge(child *Dependencies, childContext, context string) {
	if child == nil {
		return
	}
	for title := range child.titles {
		d.Add(title)
	}
	if child.all {
		d.all = true
	}
	if child.self {
		if childContext == context {
			d.self = true
		} else if childContext != "" {
			d.Add(childContext)
		}
	}
}

// Clone returns an independent copy.
func (d *Dependencies) Clone() *Dependencies {
	return &Dependencies{
		titles: maps.Clone(d.titles),
		all:    d.all,
		self:   d.self,
	}
}

// HasChanged reports whether a batch of changes affects a node whose context is context.
func (d *Dependencies) HasChanged(changes domain.ChangeSet, context string) bool {
	if len(changes) == 0 {
		return false
	}
	if d.all {
		return true
	}
	if d.self && changes.Has(context) {
		return true
	}
	if len(changes) < len(d.titles) {
		for title := range changes {
			if d.Has(title) {
				return true
			}
		}
		return false
	}
	for title := range d.titles {
		if changes.Has(title) {
			return true
		}
	}
	return false
}
