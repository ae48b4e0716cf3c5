package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/dicomfn/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// visible to every caller.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) Pause(ctx context.Context, ref model.InstanceRef, at time.Time) (bool, error) {
	if err := validateRef(ref); err != nil {
		return false, err
	}
	s.logger.Debug("sql", "op", "insert", "table", "paused_orchestrations", "ref", ref.String())

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO paused_orchestrations (name, instance_id, paused_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (name, instance_id) DO NOTHING`,
		ref.Name, ref.InstanceID, at.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("insert pause record %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) Resume(ctx context.Context, count int) ([]model.InstanceRef, error) {
	if count <= 0 {
		return []model.InstanceRef{}, nil
	}
	s.logger.Debug("sql", "op", "resume", "table", "paused_orchestrations", "count", count)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT seq, name, instance_id FROM paused_orchestrations
		 ORDER BY paused_at DESC, seq DESC LIMIT ?`, count)
	if err != nil {
		return nil, err
	}

	var seqs []int64
	refs := []model.InstanceRef{}
	for rows.Next() {
		var seq int64
		var ref model.InstanceRef
		if err := rows.Scan(&seq, &ref.Name, &ref.InstanceID); err != nil {
			rows.Close()
			return nil, err
		}
		seqs = append(seqs, seq)
		refs = append(refs, ref)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, seq := range seqs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM paused_orchestrations WHERE seq = ?`, seq); err != nil {
			return nil, fmt.Errorf("delete pause record %d: %w", seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return refs, nil
}

func (s *SQLiteStore) ListPaused(ctx context.Context) (map[model.InstanceRef]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, instance_id FROM paused_orchestrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.InstanceRef]struct{})
	for rows.Next() {
		var ref model.InstanceRef
		if err := rows.Scan(&ref.Name, &ref.InstanceID); err != nil {
			return nil, err
		}
		out[ref] = struct{}{}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Records(ctx context.Context) ([]model.PauseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, instance_id, paused_at FROM paused_orchestrations
		 ORDER BY paused_at DESC, seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PauseRecord{}
	for rows.Next() {
		var rec model.PauseRecord
		var nanos int64
		if err := rows.Scan(&rec.Ref.Name, &rec.Ref.InstanceID, &nanos); err != nil {
			return nil, err
		}
		rec.PausedAt = time.Unix(0, nanos).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
