package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Home", cfg.DefaultTitle)
	assert.Equal(t, StoreLoam, cfg.Store.Kind)
	assert.Equal(t, filepath.Join(dir, "tendril.db"), cfg.Store.SQLitePath)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
log_level: debug
default_title: Start
store:
  kind: sqlite
  sqlite_path: data/wiki.db
grammar:
  disabled_rules: [wikilink, emphasis]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Start", cfg.DefaultTitle)
	assert.Equal(t, "text/html", cfg.Format, "unset keys keep their default")
	assert.Equal(t, StoreSQLite, cfg.Store.Kind)
	assert.Equal(t, filepath.Join(dir, "data", "wiki.db"), cfg.Store.SQLitePath)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
	assert.Equal(t, []string{"wikilink", "emphasis"}, cfg.Grammar.DisabledRules)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("stroe:\n  kind: redis\n"))
	assert.Error(t, err)
}

func TestParse_RejectsUnknownStore(t *testing.T) {
	_, err := Parse([]byte("store:\n  kind: postgres\n"))
	assert.ErrorContains(t, err, `unknown store kind "postgres"`)
}
