package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	sectionUp   = "Up"
	sectionDown = "Down"
	marker      = "-- +migrate "
)

type migration struct {
	Version string
	Path    string
}

type migrationState struct {
	Version string
	Applied bool
}

type migrator struct {
	db  *sql.DB
	dir string
	log *zap.Logger
}

func newMigrator(db *sql.DB, dir string, log *zap.Logger) *migrator {
	return &migrator{db: db, dir: dir, log: log}
}

func (m *migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}
	return nil
}

// migrations lists *.sql files in dir ordered by file name, which starts
// with a sortable timestamp.
func (m *migrator) migrations() ([]migration, error) {
	paths, err := filepath.Glob(filepath.Join(m.dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	sort.Strings(paths)

	out := make([]migration, 0, len(paths))
	for _, p := range paths {
		out = append(out, migration{Version: filepath.Base(p), Path: p})
	}
	return out, nil
}

func (m *migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

// Up applies pending migrations in order, each in its own transaction, and
// returns how many were applied.
func (m *migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	all, err := m.migrations()
	if err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range all {
		if done[mig.Version] {
			m.log.Debug("skipping applied migration", zap.String("version", mig.Version))
			continue
		}

		body, err := section(mig.Path, sectionUp)
		if err != nil {
			return count, err
		}

		m.log.Info("applying migration", zap.String("version", mig.Version))
		if err := m.inTx(ctx, body, `INSERT INTO schema_migrations (version) VALUES ($1)`, mig.Version); err != nil {
			return count, fmt.Errorf("migration %s failed: %w", mig.Version, err)
		}
		count++
	}

	m.log.Info("migrations up to date", zap.Int("applied", count))
	return count, nil
}

// Down rolls back the most recently applied migration.
func (m *migrator) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	var last string
	err := m.db.QueryRowContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`,
	).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		m.log.Warn("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}

	all, err := m.migrations()
	if err != nil {
		return err
	}

	var path string
	for _, mig := range all {
		if mig.Version == last {
			path = mig.Path
			break
		}
	}
	if path == "" {
		return fmt.Errorf("migration file not found for version: %s", last)
	}

	body, err := section(path, sectionDown)
	if err != nil {
		return err
	}

	m.log.Info("rolling back migration", zap.String("version", last))
	if err := m.inTx(ctx, body, `DELETE FROM schema_migrations WHERE version = $1`, last); err != nil {
		return fmt.Errorf("rollback of %s failed: %w", last, err)
	}
	return nil
}

func (m *migrator) Status(ctx context.Context) ([]migrationState, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	all, err := m.migrations()
	if err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]migrationState, 0, len(all))
	for _, mig := range all {
		states = append(states, migrationState{Version: mig.Version, Applied: done[mig.Version]})
	}
	return states, nil
}

// inTx runs the migration body and the bookkeeping statement atomically.
func (m *migrator) inTx(ctx context.Context, body, bookkeeping, version string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return fmt.Errorf("failed to record migration version: %w", err)
	}
	return tx.Commit()
}

func section(path, name string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	body := extractSection(string(content), name)
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%s has no %q section", filepath.Base(path), marker+name)
	}
	return body, nil
}

// extractSection returns the lines between "-- +migrate <name>" and the next
// marker or end of file. Trailing blank lines are dropped and a non-empty
// section always ends in exactly one newline.
func extractSection(content, name string) string {
	var b strings.Builder
	in := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, marker) {
			if in {
				break
			}
			in = strings.TrimSpace(strings.TrimPrefix(trimmed, marker)) == name
			continue
		}
		if in {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	out := strings.TrimRight(b.String(), " \t\r\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}
