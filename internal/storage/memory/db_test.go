package memory

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/avstrong/reservation/internal/logger"
	"github.com/avstrong/reservation/internal/reservation"
)

func newDB() *DB {
	return New(Config{L: logger.New(log.Default())})
}

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func sample(id, userID string, createdAt time.Time) *reservation.Reservation {
	return &reservation.Reservation{
		ID:        id,
		HotelID:   "reddison",
		UserID:    userID,
		CheckIn:   date(2026, 9, 1),
		CheckOut:  date(2026, 9, 3),
		State:     reservation.StatePending,
		CreatedAt: createdAt,
		Version:   1,
	}
}

func TestGetUnknownReservation(t *testing.T) {
	t.Parallel()

	db := newDB()

	_, err := db.Get(context.Background(), "nosuchid")
	if !errors.Is(err, reservation.ErrRecordNotFound) {
		t.Fatalf("error = %v, want %v", err, reservation.ErrRecordNotFound)
	}
}

func TestUpdateStateVersionedWrite(t *testing.T) {
	t.Parallel()

	db := newDB()
	ctx := context.Background()

	if err := db.Create(ctx, sample("r1", "alice", date(2026, 6, 1))); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := db.UpdateState(ctx, "r1", 1, reservation.StateConfirmed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Version != 2 {
		t.Fatalf("version = %v, want 2", updated.Version)
	}

	// A second write carrying the stale version must lose.
	_, err = db.UpdateState(ctx, "r1", 1, reservation.StateCancelled)
	if !errors.Is(err, reservation.ErrVersionConflict) {
		t.Fatalf("stale write error = %v, want %v", err, reservation.ErrVersionConflict)
	}

	got, err := db.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.State != reservation.StateConfirmed {
		t.Fatalf("state = %v, want %v after losing write", got.State, reservation.StateConfirmed)
	}
}

func TestReturnedReservationsAreCopies(t *testing.T) {
	t.Parallel()

	db := newDB()
	ctx := context.Background()

	if err := db.Create(ctx, sample("r1", "alice", date(2026, 6, 1))); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := db.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	got.State = reservation.StateCancelled

	again, err := db.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}

	if again.State != reservation.StatePending {
		t.Fatal("mutating a returned reservation leaked into the store")
	}
}

func TestListByUserNewestFirst(t *testing.T) {
	t.Parallel()

	db := newDB()
	ctx := context.Background()

	base := date(2026, 6, 1)

	for i, id := range []string{"r1", "r2", "r3"} {
		if err := db.Create(ctx, sample(id, "alice", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("create %v: %v", id, err)
		}
	}

	if err := db.Create(ctx, sample("other", "bob", base)); err != nil {
		t.Fatalf("create other: %v", err)
	}

	list, err := db.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}

	if list[0].ID != "r3" || list[2].ID != "r1" {
		t.Fatalf("order = %v, %v, %v; want r3 first, r1 last", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestListOverlappingHalfOpenBounds(t *testing.T) {
	t.Parallel()

	db := newDB()
	ctx := context.Background()

	r := sample("r1", "alice", date(2026, 6, 1))
	r.CheckIn = date(2026, 9, 10)
	r.CheckOut = date(2026, 9, 12)

	if err := db.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	overlapping, err := db.ListOverlapping(ctx, "reddison", date(2026, 9, 11), date(2026, 9, 15))
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(overlapping) != 1 {
		t.Fatalf("len = %d, want 1", len(overlapping))
	}

	// [12, 15) only touches the check-out boundary; no overlap.
	overlapping, err = db.ListOverlapping(ctx, "reddison", date(2026, 9, 12), date(2026, 9, 15))
	if err != nil {
		t.Fatalf("boundary list: %v", err)
	}

	if len(overlapping) != 0 {
		t.Fatalf("boundary len = %d, want 0", len(overlapping))
	}
}

func TestListPendingBeforeAndActive(t *testing.T) {
	t.Parallel()

	db := newDB()
	ctx := context.Background()

	stale := sample("stale", "alice", date(2026, 6, 1))
	fresh := sample("fresh", "alice", date(2026, 6, 2))

	if err := db.Create(ctx, stale); err != nil {
		t.Fatalf("create stale: %v", err)
	}

	if err := db.Create(ctx, fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	if _, err := db.UpdateState(ctx, "fresh", 1, reservation.StateConfirmed); err != nil {
		t.Fatalf("confirm fresh: %v", err)
	}

	pending, err := db.ListPendingBefore(ctx, date(2026, 6, 2))
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}

	if len(pending) != 1 || pending[0].ID != "stale" {
		t.Fatalf("pending = %+v, want only stale", pending)
	}

	active, err := db.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}

	if len(active) != 2 {
		t.Fatalf("active len = %d, want 2", len(active))
	}
}
