package observability_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/macro"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/parser"
	"github.com/aretw0/tendril/pkg/render"
	"github.com/aretw0/tendril/pkg/wikitext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordPipeline(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()

	g, err := wikitext.NewGrammar()
	require.NoError(t, err)
	macros := macro.NewRegistry()
	require.NoError(t, wikitext.RegisterMacros(macros))
	store := memory.NewStore()
	store.Put(domain.NewTextEntity("Home", "<<echo hi>> <<nope>>"))

	exec := render.NewExecutor(store, macros, parser.New(g, parser.WithHooks(hooks)), render.WithHooks(hooks))
	tr := exec.ExecuteEntity("Home")
	tr.Realize(memory.NewSink(), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Parses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("echo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("nope", "error")))

	store.Put(domain.NewTextEntity("Unrelated", ""))
	tr.Reconcile(domain.ChangeSet{"Unrelated": {Modified: true}})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconciles.WithLabelValues(string(domain.OutcomeReused))))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	hooks := observability.LogHooks(logger)

	hooks.OnExecute(&domain.ExecuteEvent{Title: "Home", Macro: "echo", Duration: time.Millisecond})
	assert.Empty(t, buf.String(), "successful executions log at debug")

	hooks.OnExecute(&domain.ExecuteEvent{Title: "Home", Macro: "list", Err: errors.New("boom")})
	assert.Contains(t, buf.String(), "macro failed")
	assert.Contains(t, buf.String(), "macro=list")
}
