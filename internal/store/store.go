// Package store persists meals, templates and daily targets through
// database/sql. SQLite, PostgreSQL and MySQL are supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrInvalid  = errors.New("invalid reference")
)

// Timestamps are kept as fixed-width UTC text so that ordering by the
// column is chronological on every dialect.
const timeLayout = "2006-01-02T15:04:05.000Z"

type Store struct {
	db   *sql.DB
	d    dialect
	log  *zap.Logger
	now  func() time.Time
	seed bool
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSeed controls whether the default ingredient templates are inserted
// into an empty catalog.
func WithSeed(seed bool) Option {
	return func(s *Store) { s.seed = seed }
}

func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.name == "sqlite" {
		// each connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, d: d, log: zap.NewNop(), now: time.Now, seed: true}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if s.seed {
		if err := s.seedTemplates(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed templates: %w", err)
		}
	}
	s.log.Info("store ready", zap.String("driver", d.name))
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Driver() string { return s.d.name }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meals (
    id {{pk}},
    name VARCHAR(255) NOT NULL,
    eaten_at VARCHAR(32) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS ingredients (
    id {{pk}},
    meal_id BIGINT NULL,
    sort_order INTEGER NOT NULL DEFAULT 0,
    name VARCHAR(255) NOT NULL,
    quantity {{float}} NOT NULL DEFAULT 1,
    carbs {{float}} NOT NULL DEFAULT 0,
    fat {{float}} NOT NULL DEFAULT 0,
    protein {{float}} NOT NULL DEFAULT 0,
    kcal {{float}} NOT NULL DEFAULT 0,
    macro_unit VARCHAR(20) NOT NULL DEFAULT 'per_unit'
)`,
	`CREATE TABLE IF NOT EXISTS ingredient_templates (
    id {{pk}},
    name VARCHAR(255) NOT NULL UNIQUE,
    carbs {{float}} NOT NULL DEFAULT 0,
    fat {{float}} NOT NULL DEFAULT 0,
    protein {{float}} NOT NULL DEFAULT 0,
    kcal {{float}} NOT NULL DEFAULT 0,
    macro_unit VARCHAR(20) NOT NULL DEFAULT 'per_unit',
    default_quantity {{float}} NOT NULL DEFAULT 1,
    created_at VARCHAR(32) NOT NULL,
    updated_at VARCHAR(32) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS meal_templates (
    id {{pk}},
    name VARCHAR(255) NOT NULL,
    description {{text}},
    created_at VARCHAR(32) NOT NULL,
    updated_at VARCHAR(32) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS meal_template_ingredients (
    meal_template_id BIGINT NOT NULL,
    sort_order INTEGER NOT NULL,
    ingredient_template_id BIGINT NOT NULL,
    quantity {{float}} NOT NULL DEFAULT 1,
    PRIMARY KEY (meal_template_id, sort_order)
)`,
	`CREATE TABLE IF NOT EXISTS daily_targets (
    id {{pk}},
    carbs_min {{float}} NULL,
    carbs_max {{float}} NULL,
    fat_min {{float}} NULL,
    fat_max {{float}} NULL,
    protein_min {{float}} NULL,
    protein_max {{float}} NULL,
    kcal_min {{float}} NULL,
    kcal_max {{float}} NULL,
    created_at VARCHAR(32) NOT NULL,
    updated_at VARCHAR(32) NOT NULL
)`,
}

var indexes = []string{
	`CREATE INDEX idx_meals_eaten_at ON meals(eaten_at)`,
	`CREATE INDEX idx_ingredients_meal ON ingredients(meal_id, sort_order)`,
	`CREATE INDEX idx_mti_ingredient ON meal_template_ingredients(ingredient_template_id)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, s.d.ddl(stmt)); err != nil {
			return err
		}
	}
	// MySQL has no CREATE INDEX IF NOT EXISTS; treat duplicates as done.
	for _, stmt := range indexes {
		if err := s.execIgnoreDupIndex(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) execIgnoreDupIndex(ctx context.Context, ddl string) error {
	_, err := s.db.ExecContext(ctx, ddl)
	if err != nil {
		e := err.Error()
		if strings.Contains(e, "already exists") || strings.Contains(e, "Duplicate key name") || strings.Contains(e, "1061") {
			return nil
		}
	}
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q queryer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// insert runs an INSERT and returns the new row id.
func (s *Store) insert(ctx context.Context, q queryer, query string, args ...any) (int64, error) {
	if s.d.returning {
		var id int64
		err := s.queryRow(ctx, q, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := s.exec(ctx, q, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) exists(ctx context.Context, q queryer, table string, id int64) (bool, error) {
	var n int
	err := s.queryRow(ctx, q, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n)
	return n > 0, err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
