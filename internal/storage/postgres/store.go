// Package postgres is the reservation ledger for deployments that already
// run postgres. Same versioned-write contract as the sqlite and memory
// backends.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avstrong/reservation/internal/reservation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reservations (
	id TEXT PRIMARY KEY,
	hotel_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	check_in TIMESTAMPTZ NOT NULL,
	check_out TIMESTAMPTZ NOT NULL,
	state TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	version BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reservations_hotel_range ON reservations(hotel_id, check_in, check_out);
CREATE INDEX IF NOT EXISTS idx_reservations_state_created ON reservations(state, created_at);
`

type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pgx pool to databaseURL and ensures the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()

		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const reservationColumns = "id, hotel_id, user_id, check_in, check_out, state, created_at, version"

func scanReservation(row pgx.Row) (*reservation.Reservation, error) {
	var (
		r     reservation.Reservation
		state string
	)

	if err := row.Scan(&r.ID, &r.HotelID, &r.UserID, &r.CheckIn, &r.CheckOut, &state, &r.CreatedAt, &r.Version); err != nil {
		return nil, err
	}

	r.CheckIn = r.CheckIn.UTC()
	r.CheckOut = r.CheckOut.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.State = reservation.State(state)

	return &r, nil
}

func (s *Store) Create(ctx context.Context, r *reservation.Reservation) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO reservations ("+reservationColumns+") VALUES ($1,$2,$3,$4,$5,$6,$7,$8)",
		r.ID, r.HotelID, r.UserID, r.CheckIn, r.CheckOut, string(r.State), r.CreatedAt, r.Version,
	)
	if err != nil {
		return fmt.Errorf("insert reservation %v: %w", r.ID, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*reservation.Reservation, error) {
	r, err := scanReservation(s.pool.QueryRow(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id=$1", id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	tag, err := s.pool.Exec(ctx,
		"UPDATE reservations SET state=$1, version=version+1 WHERE id=$2 AND version=$3",
		string(state), id, expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update reservation %v: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("reservation %v write expected version %v: %w", id, expectedVersion, reservation.ErrVersionConflict)
	}

	return s.Get(ctx, id)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*reservation.Reservation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}

	defer rows.Close()

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
	return s.list(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE user_id=$1 ORDER BY created_at DESC",
		userID,
	)
}

func (s *Store) ListOverlapping(
	ctx context.Context,
	hotelID string,
	in, out time.Time,
) ([]*reservation.Reservation, error) {
	return s.list(ctx,
		"SELECT "+reservationColumns+" FROM reservations"+
			" WHERE hotel_id=$1 AND check_in < $2 AND check_out > $3 ORDER BY created_at DESC",
		hotelID, out, in,
	)
}

func (s *Store) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*reservation.Reservation, error) {
	return s.list(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE state=$1 AND created_at < $2",
		string(reservation.StatePending), cutoff,
	)
}

func (s *Store) ListActive(ctx context.Context) ([]*reservation.Reservation, error) {
	return s.list(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE state = ANY($1)",
		[]string{string(reservation.StatePending), string(reservation.StateConfirmed)},
	)
}
