// Package sqlite persists entities in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Repository implements ports.EntityRepository on SQLite.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the repository's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// Open creates or opens the database at path and applies the schema.
func Open(path string, opts ...Option) (*Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	r := &Repository{db: db, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save inserts or replaces the entity.
func (r *Repository) Save(ctx context.Context, entity *domain.Entity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	modified, _ := entity.Field(domain.FieldModified)
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO entities (title, fields, modified) VALUES (?, ?, ?)
		 ON CONFLICT(title) DO UPDATE SET fields = excluded.fields, modified = excluded.modified`,
		entity.Title(), string(data), modified)
	if err != nil {
		r.logger.Error("sqlite save failed", "title", entity.Title(), "error", err)
		return fmt.Errorf("save %q: %w", entity.Title(), err)
	}
	return nil
}

// Load retrieves an entity.
func (r *Repository) Load(ctx context.Context, title string) (*domain.Entity, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT fields FROM entities WHERE title = ?`, title).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %q: %w", title, domain.ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", title, err)
	}
	var entity domain.Entity
	if err := json.Unmarshal([]byte(data), &entity); err != nil {
		return nil, fmt.Errorf("decode %q: %w", title, err)
	}
	return &entity, nil
}

// Delete removes an entity. Deleting a missing title is not an error.
func (r *Repository) Delete(ctx context.Context, title string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE title = ?`, title); err != nil {
		return fmt.Errorf("delete %q: %w", title, err)
	}
	return nil
}

// List returns every stored title ordered by title.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT title FROM entities ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// RecentlyModified returns up to limit titles, most recently modified first.
// Entities without a modified date sort last.
func (r *Repository) RecentlyModified(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title FROM entities ORDER BY modified DESC, title LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent entities: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}
