package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/adapters/loam"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/adapters/sqlite"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Options are the command-line settings shared by every command.
// Non-empty values override tendril.yaml.
type Options struct {
	Dir        string
	Store      string
	RedisAddr  string
	SQLitePath string
	LogLevel   string
	LogFile    string
	Debug      bool
}

// Env is an opened wiki with everything the commands need around it.
type Env struct {
	Config   *config.Config
	Wiki     *tendril.Wiki
	Repo     ports.EntityRepository
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []io.Closer
}

// Open reads the configuration, opens the configured repository and loads
// every entity from it into a new wiki.
func Open(ctx context.Context, opts Options) (*Env, error) {
	cfg, err := config.Load(opts.Dir)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger, logCloser, err := newLogger(level, opts.LogFile)
	if err != nil {
		return nil, err
	}
	env := &Env{Config: cfg, Logger: logger, closers: []io.Closer{logCloser}}

	env.Repo, err = openRepository(opts.Dir, cfg, logger)
	if err != nil {
		env.Close()
		return nil, err
	}
	if c, ok := env.Repo.(io.Closer); ok {
		env.closers = append(env.closers, c)
	}

	env.Registry = prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(env.Registry)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	wikiOpts := []tendril.Option{
		tendril.WithLogger(logger),
		tendril.WithRepository(env.Repo),
		tendril.WithLifecycleHooks(metrics.Hooks()),
		tendril.WithDisabledRules(cfg.Grammar.DisabledRules...),
	}
	if opts.Debug {
		wikiOpts = append(wikiOpts, tendril.WithLifecycleHooks(observability.LogHooks(logger)))
	}
	env.Wiki, err = tendril.New(wikiOpts...)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("error initializing wiki: %w", err)
	}
	if _, err := env.Wiki.Load(ctx); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.Store != "" {
		cfg.Store.Kind = opts.Store
	}
	if opts.RedisAddr != "" {
		cfg.Store.RedisAddr = opts.RedisAddr
	}
	if opts.SQLitePath != "" {
		cfg.Store.SQLitePath = opts.SQLitePath
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
}

func openRepository(dir string, cfg *config.Config, logger *slog.Logger) (ports.EntityRepository, error) {
	switch cfg.Store.Kind {
	case config.StoreRedis:
		return redis.New(cfg.Store.RedisAddr, "", cfg.Store.RedisDB, redis.WithLogger(logger)), nil
	case config.StoreSQLite:
		return sqlite.Open(cfg.Store.SQLitePath, sqlite.WithLogger(logger))
	default:
		return loam.Open(dir, loam.WithLogger(logger))
	}
}

// Close releases the repository and the log file.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	return errors.Join(errs...)
}
