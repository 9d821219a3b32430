package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petal-labs/spellbook/spell"
)

const sqliteStoreSchema = `
CREATE TABLE IF NOT EXISTS spells (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	payload BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

const defaultSQLiteFile = "spellbook.db"

// DefaultSQLitePath returns the default SQLite location relative to the
// working directory.
func DefaultSQLitePath() string {
	return filepath.Join(defaultStoreDir, defaultSQLiteFile)
}

// SQLiteStore persists the collection in a SQLite table, one row per spell.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite-backed store at dsn.
func NewSQLiteStore(dsn string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyPath
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("store: create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite create schema: %w", err)
	}

	o := buildOptions(opts)
	return &SQLiteStore{db: db, logger: o.logger}, nil
}

// Load reads every row. Rows whose payload fails validation are skipped and
// counted.
func (s *SQLiteStore) Load(ctx context.Context) (result LoadResult, err error) {
	started := time.Now()
	defer func() {
		emitObservation(DriverSQLite, OpLoad, started, len(result.Spells), result.Skipped, err)
	}()

	if err := ctx.Err(); err != nil {
		return LoadResult{}, err
	}
	if s == nil || s.db == nil {
		return LoadResult{}, errors.New("store: sqlite store is nil")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, payload
FROM spells
ORDER BY id ASC`)
	if err != nil {
		return LoadResult{}, fmt.Errorf("store: sqlite list spells: %w", err)
	}
	defer rows.Close()

	result = LoadResult{Spells: Collection{}}
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return LoadResult{}, fmt.Errorf("store: sqlite scan spell: %w", err)
		}
		sp, err := spell.Parse(payload)
		if err != nil {
			result.Skipped++
			s.logger.Warn("skipping invalid stored spell",
				"driver", DriverSQLite,
				"id", id,
				"error", err,
			)
			continue
		}
		result.Spells.Put(sp)
	}
	if err := rows.Err(); err != nil {
		return LoadResult{}, fmt.Errorf("store: sqlite spell rows: %w", err)
	}
	return result, nil
}

// Save replaces the table contents with spells in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, spells Collection) (err error) {
	started := time.Now()
	defer func() {
		emitObservation(DriverSQLite, OpSave, started, len(spells), 0, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("store: sqlite store is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: sqlite begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM spells`); err != nil {
		return fmt.Errorf("store: sqlite clear spells: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, sp := range spells.byID() {
		payload, encErr := sp.MarshalJSON()
		if encErr != nil {
			err = fmt.Errorf("store: encode spell %s: %w", sp.ID, encErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO spells (id, name, payload, updated_at)
VALUES (?, ?, ?, ?)`, sp.ID, sp.Name, payload, now); err != nil {
			return fmt.Errorf("store: sqlite insert spell %s: %w", sp.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: sqlite commit: %w", err)
	}
	return nil
}

// Clear deletes every row.
func (s *SQLiteStore) Clear(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		emitObservation(DriverSQLite, OpClear, started, 0, 0, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("store: sqlite store is nil")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM spells`); err != nil {
		return fmt.Errorf("store: sqlite clear spells: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
