package domain

import "time"

// ReconcileOutcome names what the reconciler did with one node.
type ReconcileOutcome string

const (
	OutcomeReused    ReconcileOutcome = "reused"
	OutcomeRefreshed ReconcileOutcome = "refreshed"
	OutcomeRebuilt   ReconcileOutcome = "rebuilt"
	OutcomeInserted  ReconcileOutcome = "inserted"
	OutcomeRemoved   ReconcileOutcome = "removed"
)

// ParseEvent is emitted after a source text has been parsed.
type ParseEvent struct {
	Length   int
	Nodes    int
	Guarded  int // forward-progress guard trips
	Duration time.Duration
}

// ExecuteEvent is emitted after a macro node has been executed.
type ExecuteEvent struct {
	Title    string
	Macro    string
	Duration time.Duration
	Err      error
}

// ReconcileEvent is emitted once per node the reconciler visits and decides on.
type ReconcileEvent struct {
	Title   string
	Macro   string
	Outcome ReconcileOutcome
}

// LifecycleHooks defines callbacks for pipeline observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnParse     func(*ParseEvent)
	OnExecute   func(*ExecuteEvent)
	OnReconcile func(*ReconcileEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnParse:     chain(h.OnParse, other.OnParse),
		OnExecute:   chain(h.OnExecute, other.OnExecute),
		OnReconcile: chain(h.OnReconcile, other.OnReconcile),
	}
}

func chain[T any](a, b func(T)) func(T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(v T) {
		a(v)
		b(v)
	}
}
