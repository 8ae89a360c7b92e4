package render

import (
	"maps"
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/macro"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/tree"
)

// Stats counts reconciliation outcomes.
type Stats struct {
	Reused    int
	Refreshed int
	Rebuilt   int
	Inserted  int
	Removed   int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Reused += other.Reused
	s.Refreshed += other.Refreshed
	s.Rebuilt += other.Rebuilt
	s.Inserted += other.Inserted
	s.Removed += other.Removed
}

// Reconcile brings a realized tree up to date with a batch of store changes,
// editing the output through the sink it was realized with. Subtrees whose
// dependencies are untouched keep their nodes and handles.
func (t *Tree) Reconcile(changes domain.ChangeSet) Stats {
	sink := t.sink
	if sink == nil {
		sink = discard{}
	}
	r := &reconciler{exec: t.exec, sink: sink, changes: changes}
	for _, root := range t.Roots {
		r.node(root, t.parent)
	}
	return r.stats
}

type reconciler struct {
	exec    *Executor
	sink    ports.OutputSink
	changes domain.ChangeSet
	stats   Stats
}

func (r *reconciler) node(n *Node, parent ports.Handle) {
	if n.deps == nil || !n.deps.HasChanged(r.changes, n.ctx.title) {
		r.record(n, domain.OutcomeReused)
		return
	}
	switch n.Kind {
	case KindElement:
		for _, child := range n.Children {
			r.node(child, n.Handle)
		}
		n.recompute()
	case KindMacro:
		r.macroNode(n, parent)
	}
}

func (r *reconciler) macroNode(n *Node, parent ports.Handle) {
	if n.source == nil {
		r.record(n, domain.OutcomeReused)
		return
	}
	if n.macro == nil {
		r.replace(n, parent, r.exec.executeMacro(n.source, n.ctx, n.parent))
		return
	}
	if n.own != nil && !n.own.HasChanged(r.changes, n.ctx.title) {
		// Only descendants are affected.
		root := n.Children[0]
		r.node(root, parent)
		n.Handle = root.Handle
		n.recompute()
		return
	}

	ev := r.exec.evaluate(n, n.macro)
	if ev.err == nil && n.Err == nil {
		if r.refresh(n, ev) {
			return
		}
		if r.diffable(n, ev) {
			r.diff(n, ev)
			return
		}
	}
	fresh := &Node{Kind: KindMacro, Name: n.Name, source: n.source, ctx: n.ctx, parent: n.parent}
	fresh.macro = n.macro
	r.exec.expand(fresh, ev)
	r.replace(n, parent, fresh)
}

// refresh lets a live macro update its realized output in place.
func (r *reconciler) refresh(n *Node, ev evaluation) bool {
	if n.macro.Refresh == nil || n.output == nil || n.output.Collection != nil {
		return false
	}
	focused := false
	if fr, ok := r.sink.(ports.FocusReporter); ok && n.Handle != nil {
		focused = fr.HasFocus(n.Handle)
	}
	ok := n.macro.Refresh(&macro.RefreshContext{
		Call:     ev.call,
		Previous: n.output,
		Current:  ev.out,
		Sink:     r.sink,
		Handle:   n.Handle,
		Focused:  focused,
	})
	if !ok {
		return false
	}
	if focused {
		// The sink still shows the previous output; keep it as the baseline.
		r.record(n, domain.OutcomeRefreshed)
		return true
	}
	n.call, n.own, n.output = ev.call, ev.call.Deps, ev.out
	if el, isEl := wrap(ev.out.Nodes, n.source.Block).(*tree.Element); isEl && n.Children[0].Kind == KindElement && n.Children[0].Tag == el.Tag {
		n.Children[0].Attributes = maps.Clone(el.Attributes)
	}
	n.recompute()
	r.record(n, domain.OutcomeRefreshed)
	return true
}

// diffable reports whether a collection can be updated item by item: the frame
// is unchanged and no entity named by a parameter was touched.
func (r *reconciler) diffable(n *Node, ev evaluation) bool {
	if !n.IsCollection() || ev.out.Collection == nil {
		return false
	}
	prev, next := n.output.Collection, ev.out.Collection
	if prev.Tag != next.Tag || !maps.Equal(prev.Attributes, next.Attributes) {
		return false
	}
	for _, ref := range ev.call.Params.References() {
		if r.changes.Has(ref) {
			return false
		}
	}
	return true
}

// diff walks the new items in order. An old item with the same key further
// ahead is kept and reconciled, the old items skipped on the way are removed,
// and keys without an old item are executed and inserted.
func (r *reconciler) diff(n *Node, ev evaluation) {
	frame := n.Children[0]
	old := frame.Children
	next := make([]*Node, 0, len(ev.out.Collection.Items))
	t := 0
	for _, item := range ev.out.Collection.Items {
		i := indexKey(old, t, item.Key)
		if i < 0 {
			var ref ports.Handle
			if t < len(old) {
				ref = old[t].Handle
			}
			fresh := r.exec.executeItem(item, ev.scope, frame)
			realize(fresh, r.sink, frame.Handle, ref)
			r.record(fresh, domain.OutcomeInserted)
			next = append(next, fresh)
			continue
		}
		for _, gone := range old[t:i] {
			r.remove(n, gone)
		}
		kept := old[i]
		r.node(kept, frame.Handle)
		next = append(next, kept)
		t = i + 1
	}
	for _, gone := range old[t:] {
		r.remove(n, gone)
	}
	frame.Children = next
	frame.recompute()

	n.call, n.own, n.output = ev.call, ev.call.Deps, ev.out
	n.frameCtx = ev.scope
	n.Handle = frame.Handle
	n.recompute()
	r.record(n, domain.OutcomeRefreshed)
}

func indexKey(nodes []*Node, from int, key string) int {
	if from >= len(nodes) {
		return -1
	}
	if i := slices.IndexFunc(nodes[from:], func(n *Node) bool { return n.Key == key }); i >= 0 {
		return from + i
	}
	return -1
}

func (r *reconciler) remove(owner, gone *Node) {
	if gone.Handle != nil {
		if owner.macro.View == nil || !owner.macro.View.Remove(r.sink, gone.Handle) {
			r.sink.Remove(gone.Handle)
		}
	}
	gone.detach()
	r.record(gone, domain.OutcomeRemoved)
}

// replace swaps n for fresh in place, realizing fresh where n was.
func (r *reconciler) replace(n *Node, parent ports.Handle, fresh *Node) {
	old := n.Handle
	realize(fresh, r.sink, parent, old)
	if old != nil {
		r.sink.Remove(old)
	}
	n.detach()
	key := n.Key
	*n = *fresh
	n.Key = key
	for _, child := range n.Children {
		child.parent = n
	}
	r.record(n, domain.OutcomeRebuilt)
}

func (r *reconciler) record(n *Node, outcome domain.ReconcileOutcome) {
	n.Outcome = outcome
	switch outcome {
	case domain.OutcomeReused:
		r.stats.Reused++
	case domain.OutcomeRefreshed:
		r.stats.Refreshed++
	case domain.OutcomeRebuilt:
		r.stats.Rebuilt++
	case domain.OutcomeInserted:
		r.stats.Inserted++
	case domain.OutcomeRemoved:
		r.stats.Removed++
	}
	if hook := r.exec.hooks.OnReconcile; hook != nil {
		hook(&domain.ReconcileEvent{Title: n.ctx.title, Macro: n.Name, Outcome: outcome})
	}
}

// discard is the sink used to reconcile trees that were never realized.
type discard struct{}

func (discard) CreateNode(string, map[string]string) ports.Handle { return nil }
func (discard) SetAttribute(ports.Handle, string, string)         {}
func (discard) InsertBefore(_, _, _ ports.Handle)                  {}
func (discard) Remove(ports.Handle)                                {}
func (discard) SetText(ports.Handle, string)                       {}
