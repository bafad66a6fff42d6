// Package availability maintains the derived per-(hotel, date) view of
// committed capacity. It is the single authority answering "is there room
// left on these dates" and the only place room-night counters are mutated.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avstrong/reservation/internal/logger"
)

var (
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrBusy               = errors.New("availability index busy")
	ErrInvariantViolation = errors.New("availability invariant violation")
)

type roomsProvider interface {
	TotalRooms(ctx context.Context, hotelID string) (int, error)
}

type Config struct {
	L *logger.Logger
	// Rooms supplies the authoritative room count per hotel.
	Rooms roomsProvider
	// LockWait bounds how long a multi-cell operation may wait for its
	// cell locks before failing with ErrBusy.
	LockWait time.Duration
}

// cell carries the committed room-night count for one (hotel, date) pair.
// The semaphore serializes mutations on the cell; reads go through the
// atomic counter and never block.
type cell struct {
	sem       chan struct{}
	committed atomic.Int64
}

type Index struct {
	l        *logger.Logger
	rooms    roomsProvider
	lockWait time.Duration

	mu    sync.Mutex
	cells map[string]*cell
}

func New(conf Config) *Index {
	return &Index{
		l:        conf.L,
		rooms:    conf.Rooms,
		lockWait: conf.LockWait,
		cells:    make(map[string]*cell),
	}
}

func cellKey(hotelID string, date time.Time) string {
	return fmt.Sprintf("%s_%s", hotelID, date.Format(time.DateOnly))
}

// datesIn lists every occupied date of the half-open range [in, out).
func datesIn(in, out time.Time) []time.Time {
	var dates []time.Time

	for d := in; d.Before(out); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	return dates
}

func (ix *Index) cellsFor(hotelID string, dates []time.Time) []*cell {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	result := make([]*cell, 0, len(dates))

	for _, d := range dates {
		key := cellKey(hotelID, d)

		c, ok := ix.cells[key]
		if !ok {
			c = &cell{sem: make(chan struct{}, 1)}
			ix.cells[key] = c
		}

		result = append(result, c)
	}

	return result
}

// acquire takes the cell semaphores in date order under one shared
// deadline. Ordered acquisition keeps overlapping ranges from deadlocking
// each other; the deadline turns contention into ErrBusy instead of an
// unbounded stall.
func (ix *Index) acquire(ctx context.Context, cells []*cell) error {
	wait := time.NewTimer(ix.lockWait)
	defer wait.Stop()

	for i, c := range cells {
		select {
		case c.sem <- struct{}{}:
		case <-wait.C:
			ix.unlock(cells[:i])

			return ErrBusy
		case <-ctx.Done():
			ix.unlock(cells[:i])

			return ctx.Err()
		}
	}

	return nil
}

func (ix *Index) unlock(cells []*cell) {
	for _, c := range cells {
		<-c.sem
	}
}

// Query reports whether every date in [in, out) still has capacity. It
// reads the committed counters without locking; the answer is advisory
// and re-validated by Reserve.
func (ix *Index) Query(ctx context.Context, hotelID string, in, out time.Time) (bool, error) {
	total, err := ix.rooms.TotalRooms(ctx, hotelID)
	if err != nil {
		return false, fmt.Errorf("total rooms for hotel %v: %w", hotelID, err)
	}

	if total <= 0 {
		return false, nil
	}

	for _, c := range ix.cellsFor(hotelID, datesIn(in, out)) {
		if c.committed.Load() >= int64(total) {
			return false, nil
		}
	}

	return true, nil
}

// Reserve commits one room-unit on every date in [in, out), all or
// nothing. No cell is mutated unless every post-increment value stays
// within the hotel's total capacity.
func (ix *Index) Reserve(ctx context.Context, hotelID string, in, out time.Time) error {
	total, err := ix.rooms.TotalRooms(ctx, hotelID)
	if err != nil {
		return fmt.Errorf("total rooms for hotel %v: %w", hotelID, err)
	}

	dates := datesIn(in, out)

	cells := ix.cellsFor(hotelID, dates)
	if err := ix.acquire(ctx, cells); err != nil {
		return err
	}

	defer ix.unlock(cells)

	for i, c := range cells {
		if c.committed.Load()+1 > int64(total) {
			return fmt.Errorf("hotel %v is full on %v: %w", hotelID, dates[i].Format(time.DateOnly), ErrCapacityExceeded)
		}
	}

	for _, c := range cells {
		c.committed.Add(1)
	}

	return nil
}

// Release returns one room-unit on every date in [in, out), all or
// nothing. A cell that would go negative means a double-release; nothing
// is mutated and the violation is surfaced.
func (ix *Index) Release(ctx context.Context, hotelID string, in, out time.Time) error {
	dates := datesIn(in, out)

	cells := ix.cellsFor(hotelID, dates)
	if err := ix.acquire(ctx, cells); err != nil {
		return err
	}

	defer ix.unlock(cells)

	for i, c := range cells {
		if c.committed.Load() < 1 {
			return fmt.Errorf(
				"release would take hotel %v below zero on %v: %w",
				hotelID,
				dates[i].Format(time.DateOnly),
				ErrInvariantViolation,
			)
		}
	}

	for _, c := range cells {
		c.committed.Add(-1)
	}

	return nil
}

// Restore replays one committed reservation into the index without
// capacity checks. Used only while rebuilding the index from the ledger
// at startup, before the engine serves traffic.
func (ix *Index) Restore(hotelID string, in, out time.Time) {
	for _, c := range ix.cellsFor(hotelID, datesIn(in, out)) {
		c.committed.Add(1)
	}
}
