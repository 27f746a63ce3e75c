package storage

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

	"techbiz/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states of a record row.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

const recordColumns = `id, name, date, place, service_type, income, cost, hours, status, notes, confirms`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	return rec, err
}

// GetWithVersion returns a record together with its row version, used to
// acknowledge exactly the state that was mirrored.
func (r *SQLiteRepository) GetWithVersion(ctx context.Context, id int64) (core.Record, int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+`, version FROM records WHERE id = ?`, id)
	var version int64
	rec, err := scanRecord(row, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, 0, core.ErrNotFound
	}
	return rec, version, err
}

func (r *SQLiteRepository) Version(ctx context.Context) (int64, error) {
	var v int64
	if err := r.db.QueryRowContext(ctx, `SELECT version FROM store_meta WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read store version: %w", err)
	}
	return v, nil
}

// Create inserts a record. AUTOINCREMENT guarantees ids of deleted rows are not reused.
func (r *SQLiteRepository) Create(ctx context.Context, rec core.Record) (core.Record, error) {
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO records
			(name, date, place, service_type, income, cost, hours, status, notes, confirms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Name, rec.Date, rec.Place, rec.ServiceType,
			rec.Income.Ptr(), rec.Cost.Ptr(), rec.Hours.Ptr(),
			rec.Status, rec.Notes, encodeConfirms(rec.Confirms))
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert record id: %w", err)
		}
		rec.ID = id
		return bumpVersion(ctx, tx)
	})
	if err != nil {
		return core.Record{}, err
	}

	slog.InfoContext(ctx, "Record saved to SQLite", "id", rec.ID, "name", rec.Name)
	return rec, nil
}

// Update replaces a record and marks it pending for the sheet mirror.
func (r *SQLiteRepository) Update(ctx context.Context, rec core.Record) (core.Record, error) {
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE records SET
			name = ?, date = ?, place = ?, service_type = ?, income = ?, cost = ?, hours = ?,
			status = ?, notes = ?, confirms = ?,
			version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			rec.Name, rec.Date, rec.Place, rec.ServiceType,
			rec.Income.Ptr(), rec.Cost.Ptr(), rec.Hours.Ptr(),
			rec.Status, rec.Notes, encodeConfirms(rec.Confirms), rec.ID)
		if err != nil {
			return fmt.Errorf("update record %d: %w", rec.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		return bumpVersion(ctx, tx)
	})
	if err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete record %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		return bumpVersion(ctx, tx)
	})
}

// Seed inserts records with their own ids when the table is empty.
// It returns the number of inserted rows.
func (r *SQLiteRepository) Seed(ctx context.Context, records []core.Record) (int, error) {
	inserted := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var n int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		if n > 0 {
			return nil
		}
		for _, rec := range records {
			if err := rec.Validate(); err != nil {
				return fmt.Errorf("seed record %d: %w", rec.ID, err)
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO records (`+recordColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.Name, rec.Date, rec.Place, rec.ServiceType,
				rec.Income.Ptr(), rec.Cost.Ptr(), rec.Hours.Ptr(),
				rec.Status, rec.Notes, encodeConfirms(rec.Confirms))
			if err != nil {
				return fmt.Errorf("seed record %d: %w", rec.ID, err)
			}
			inserted++
		}
		if inserted == 0 {
			return nil
		}
		return bumpVersion(ctx, tx)
	})
	return inserted, err
}

// PendingSyncRecord is the minimal data needed to queue a mirror update.
type PendingSyncRecord struct {
	ID        int64
	Version   int64
	UpdatedAt time.Time
}

// GetPendingSyncRecords returns records not yet mirrored, oldest first.
func (r *SQLiteRepository) GetPendingSyncRecords(ctx context.Context, limit int) ([]PendingSyncRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, version, updated_at FROM records
		WHERE sync_status = 'pending' ORDER BY updated_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync records: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncRecord
	for rows.Next() {
		var (
			p       PendingSyncRecord
			updated any
		)
		if err := rows.Scan(&p.ID, &p.Version, &updated); err != nil {
			return nil, fmt.Errorf("scan pending sync record: %w", err)
		}
		p.UpdatedAt = parseTimestamp(updated)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks the record as mirrored, unless it changed again since version.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE records SET sync_status = 'synced' WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark record synced: %w", err)
	}
	slog.DebugContext(ctx, "Record marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError marks a record as failed so the reconciler stops retrying it every tick.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE records SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark record sync error: %w", err)
	}
	slog.WarnContext(ctx, "Record marked with sync error", "id", id)
	return nil
}

// SyncStatus returns the mirror state of one record.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (string, error) {
	var s string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM records WHERE id = ?`, id).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read sync status: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func bumpVersion(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE store_meta SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump store version: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner, extra ...any) (core.Record, error) {
	var (
		rec                 core.Record
		income, cost, hours sql.NullFloat64
		confirms            string
	)
	dest := append([]any{&rec.ID, &rec.Name, &rec.Date, &rec.Place, &rec.ServiceType,
		&income, &cost, &hours, &rec.Status, &rec.Notes, &confirms}, extra...)
	err := s.Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Record{}, err
		}
		return core.Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Income = nullNumber(income)
	rec.Cost = nullNumber(cost)
	rec.Hours = nullNumber(hours)
	rec.Confirms, err = decodeConfirms(confirms)
	if err != nil {
		return core.Record{}, fmt.Errorf("record %d confirms: %w", rec.ID, err)
	}
	return rec, nil
}

// parseTimestamp accepts both driver-decoded times and raw CURRENT_TIMESTAMP text.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := time.Parse(time.DateTime, t); err == nil {
			return ts
		}
	case []byte:
		if ts, err := time.Parse(time.DateTime, string(t)); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func nullNumber(n sql.NullFloat64) core.Number {
	if !n.Valid {
		return core.Absent()
	}
	return core.Num(n.Float64)
}

func encodeConfirms(s core.ConfirmSet) string {
	kinds := s.Kinds()
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func decodeConfirms(s string) (core.ConfirmSet, error) {
	if s == "" {
		return core.NewConfirmSet(), nil
	}
	return core.ParseConfirms(strings.Split(s, ","))
}
