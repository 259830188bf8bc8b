package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/setforge/setforge/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements engine.RunStore on a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a store instance. Call Init before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database in WAL mode and runs pending migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return s.migrate()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SaveRun persists a run and its item results in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, result *engine.ExecutionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, configuration_name, dry_run, succeeded, failed, restart_required, started_at, duration_ms, throughput)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID,
		result.ConfigurationName,
		result.DryRun,
		result.Succeeded,
		result.Failed,
		result.RestartRequired,
		result.StartedAt.UTC(),
		result.Duration.Milliseconds(),
		result.Throughput,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, item := range result.Items {
		var changes *string
		if item.Changes != nil {
			encoded, err := json.Marshal(item.Changes)
			if err != nil {
				return fmt.Errorf("failed to encode change set for %s: %w", item.ItemName, err)
			}
			text := string(encoded)
			changes = &text
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO item_results (run_id, position, item_name, item_type, success, message, restart_required, changes, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			result.RunID,
			i,
			item.ItemName,
			item.ItemType,
			item.Success,
			item.Message,
			item.RestartRequired,
			changes,
			item.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item result: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID including its item results, in stored order.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*engine.ExecutionResult, error) {
	result := &engine.ExecutionResult{}
	var durationMS int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, configuration_name, dry_run, succeeded, failed, restart_required, started_at, duration_ms, throughput
		FROM runs
		WHERE id = ?
	`, runID).Scan(
		&result.RunID,
		&result.ConfigurationName,
		&result.DryRun,
		&result.Succeeded,
		&result.Failed,
		&result.RestartRequired,
		&result.StartedAt,
		&durationMS,
		&result.Throughput,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	result.Duration = time.Duration(durationMS) * time.Millisecond

	items, err := s.GetItemResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	result.Items = items

	return result, nil
}

// GetItemResults returns a run's item results in stored order.
func (s *SQLiteStore) GetItemResults(ctx context.Context, runID string) ([]engine.ItemResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_name, item_type, success, message, restart_required, changes, duration_ms
		FROM item_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item results: %w", err)
	}
	defer rows.Close()

	var items []engine.ItemResult
	for rows.Next() {
		var item engine.ItemResult
		var changes sql.NullString
		var itemDurationMS int64
		if err := rows.Scan(
			&item.ItemName,
			&item.ItemType,
			&item.Success,
			&item.Message,
			&item.RestartRequired,
			&changes,
			&itemDurationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item result: %w", err)
		}
		item.Duration = time.Duration(itemDurationMS) * time.Millisecond
		if changes.Valid {
			var set engine.ChangeSet
			if err := json.Unmarshal([]byte(changes.String), &set); err != nil {
				return nil, fmt.Errorf("failed to decode change set for %s: %w", item.ItemName, err)
			}
			item.Changes = &set
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item results: %w", err)
	}
	return items, nil
}

// ListRuns returns the most recent run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]engine.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, configuration_name, dry_run, succeeded, failed, started_at, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	records := []engine.RunRecord{}
	for rows.Next() {
		var record engine.RunRecord
		var durationMS int64
		if err := rows.Scan(
			&record.RunID,
			&record.ConfigurationName,
			&record.DryRun,
			&record.Succeeded,
			&record.Failed,
			&record.StartedAt,
			&durationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		record.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return records, nil
}
