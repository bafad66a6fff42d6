// Package sqlite is the durable reservation ledger for single-node
// deployments, backed by modernc.org/sqlite with embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avstrong/reservation/internal/reservation"
	"github.com/avstrong/reservation/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite" // database/sql driver
)

type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the sqlite ledger at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// applyMigrations executes each embedded migration file at most once,
// tracked in schema_migrations by file name.
func applyMigrations(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)

	for _, file := range files {
		var applied int
		if err := sqlDB.QueryRow(
			"SELECT COUNT(1) FROM schema_migrations WHERE name = ?", file,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("exec migration %s: %w", file, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)",
			file,
			time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("record migration %s: %w", file, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}

	return nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}

	return s.sqlDB.Close()
}

const reservationColumns = "id, hotel_id, user_id, check_in, check_out, state, created_at, version"

func scanReservation(row interface{ Scan(dest ...any) error }) (*reservation.Reservation, error) {
	var (
		r                           reservation.Reservation
		checkIn, checkOut, createdAt int64
		state                       string
	)

	if err := row.Scan(&r.ID, &r.HotelID, &r.UserID, &checkIn, &checkOut, &state, &createdAt, &r.Version); err != nil {
		return nil, err
	}

	r.CheckIn = fromMillis(checkIn)
	r.CheckOut = fromMillis(checkOut)
	r.CreatedAt = fromMillis(createdAt)
	r.State = reservation.State(state)

	return &r, nil
}

func (s *Store) Create(ctx context.Context, r *reservation.Reservation) error {
	_, err := s.sqlDB.ExecContext(
		ctx,
		"INSERT INTO reservations ("+reservationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID,
		r.HotelID,
		r.UserID,
		toMillis(r.CheckIn),
		toMillis(r.CheckOut),
		string(r.State),
		toMillis(r.CreatedAt),
		r.Version,
	)
	if err != nil {
		return fmt.Errorf("insert reservation %v: %w", r.ID, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*reservation.Reservation, error) {
	r, err := scanReservation(s.sqlDB.QueryRowContext(
		ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?",
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrRecordNotFound
		}

		return nil, fmt.Errorf("select reservation %v: %w", id, err)
	}

	return r, nil
}

// UpdateState applies a versioned state transition; the WHERE clause on
// version is the compare-and-swap.
func (s *Store) UpdateState(
	ctx context.Context,
	id string,
	expectedVersion int64,
	state reservation.State,
) (*reservation.Reservation, error) {
	res, err := s.sqlDB.ExecContext(
		ctx,
		"UPDATE reservations SET state = ?, version = version + 1 WHERE id = ? AND version = ?",
		string(state),
		id,
		expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update reservation %v: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected for reservation %v: %w", id, err)
	}

	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("reservation %v write expected version %v: %w", id, expectedVersion, reservation.ErrVersionConflict)
	}

	return s.Get(ctx, id)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*reservation.Reservation, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var result []*reservation.Reservation

	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}

		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}

	return result, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*reservation.Reservation, error) {
	return s.list(
		ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE user_id = ? ORDER BY created_at DESC",
		userID,
	)
}

func (s *Store) ListOverlapping(
	ctx context.Context,
	hotelID string,
	in, out time.Time,
) ([]*reservation.Reservation, error) {
	return s.list(
		ctx,
		"SELECT "+reservationColumns+" FROM reservations"+
			" WHERE hotel_id = ? AND check_in < ? AND check_out > ? ORDER BY created_at DESC",
		hotelID,
		toMillis(out),
		toMillis(in),
	)
}

func (s *Store) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*reservation.Reservation, error) {
	return s.list(
		ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE state = ? AND created_at < ?",
		string(reservation.StatePending),
		toMillis(cutoff),
	)
}

func (s *Store) ListActive(ctx context.Context) ([]*reservation.Reservation, error) {
	return s.list(
		ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE state IN (?, ?)",
		string(reservation.StatePending),
		string(reservation.StateConfirmed),
	)
}
