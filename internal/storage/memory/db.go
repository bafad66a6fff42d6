// Package memory is the default reservation ledger: mutex-guarded maps
// with the same versioned-write contract as the durable backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avstrong/reservation/internal/logger"
	"github.com/avstrong/reservation/internal/reservation"
)

type Config struct {
	L *logger.Logger
}

type DB struct {
	mu           sync.Mutex
	l            *logger.Logger
	reservations map[string]*reservation.Reservation
}

func New(conf Config) *DB {
	return &DB{
		l:            conf.L,
		reservations: make(map[string]*reservation.Reservation),
	}
}

func clone(r *reservation.Reservation) *reservation.Reservation {
	cp := *r

	return &cp
}

func (db *DB) Create(_ context.Context, r *reservation.Reservation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.reservations[r.ID]; exists {
		return fmt.Errorf("reservation %v already exists: %w", r.ID, reservation.ErrVersionConflict)
	}

	db.reservations[r.ID] = clone(r)

	return nil
}

func (db *DB) Get(_ context.Context, id string) (*reservation.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, exists := db.reservations[id]
	if !exists {
		return nil, reservation.ErrRecordNotFound
	}

	return clone(r), nil
}

// UpdateState applies a versioned state transition. A stale version fails
// with ErrVersionConflict and leaves the record untouched; this is the
// winner election for racing cancel/confirm/expire writes.
func (db *DB) UpdateState(
	_ context.Context,
	id string,
	expectedVersion int64,
	state reservation.State,
) (*reservation.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, exists := db.reservations[id]
	if !exists {
		return nil, reservation.ErrRecordNotFound
	}

	if r.Version != expectedVersion {
		return nil, fmt.Errorf(
			"reservation %v is at version %v, write expected %v: %w",
			id,
			r.Version,
			expectedVersion,
			reservation.ErrVersionConflict,
		)
	}

	r.State = state
	r.Version++

	return clone(r), nil
}

func (db *DB) ListByUser(_ context.Context, userID string) ([]*reservation.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []*reservation.Reservation

	for _, r := range db.reservations {
		if r.UserID == userID {
			result = append(result, clone(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (db *DB) ListOverlapping(
	_ context.Context,
	hotelID string,
	in, out time.Time,
) ([]*reservation.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []*reservation.Reservation

	for _, r := range db.reservations {
		if r.HotelID == hotelID && r.CheckIn.Before(out) && r.CheckOut.After(in) {
			result = append(result, clone(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (db *DB) ListPendingBefore(_ context.Context, cutoff time.Time) ([]*reservation.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []*reservation.Reservation

	for _, r := range db.reservations {
		if r.State == reservation.StatePending && r.CreatedAt.Before(cutoff) {
			result = append(result, clone(r))
		}
	}

	return result, nil
}

func (db *DB) ListActive(_ context.Context) ([]*reservation.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []*reservation.Reservation

	for _, r := range db.reservations {
		if r.State == reservation.StatePending || r.State == reservation.StateConfirmed {
			result = append(result, clone(r))
		}
	}

	return result, nil
}
