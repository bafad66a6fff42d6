package availability

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/avstrong/reservation/internal/inventory"
	"github.com/avstrong/reservation/internal/logger"
)

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func newTestIndex(t *testing.T, rooms map[string]int) *Index {
	t.Helper()

	catalog := inventory.NewMemory()
	for hotelID, total := range rooms {
		catalog.SetTotalRooms(hotelID, total)
	}

	return New(Config{
		L:        logger.New(log.Default()),
		Rooms:    inventory.NewStore(catalog),
		LockWait: 2 * time.Second,
	})
}

func TestQueryUnknownHotelIsNeverAvailable(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, map[string]int{"reddison": 2})

	available, err := ix.Query(context.Background(), "nosuchhotel", date(2026, 9, 1), date(2026, 9, 3))
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if available {
		t.Fatal("unknown hotel reported available")
	}
}

func TestReserveConsumesCapacityPerDate(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, map[string]int{"reddison": 1})
	ctx := context.Background()

	if err := ix.Reserve(ctx, "reddison", date(2026, 9, 1), date(2026, 9, 3)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	available, err := ix.Query(ctx, "reddison", date(2026, 9, 1), date(2026, 9, 2))
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if available {
		t.Fatal("occupied date reported available")
	}

	// The half-open range [01, 03) leaves the check-out day free.
	available, err = ix.Query(ctx, "reddison", date(2026, 9, 3), date(2026, 9, 4))
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if !available {
		t.Fatal("check-out day reported occupied")
	}
}

func TestReserveIsAllOrNothing(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, map[string]int{"reddison": 1})
	ctx := context.Background()

	// Fill one date in the middle of the range about to be requested.
	if err := ix.Reserve(ctx, "reddison", date(2026, 9, 2), date(2026, 9, 3)); err != nil {
		t.Fatalf("reserve middle date: %v", err)
	}

	err := ix.Reserve(ctx, "reddison", date(2026, 9, 1), date(2026, 9, 4))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("overlapping reserve error = %v, want %v", err, ErrCapacityExceeded)
	}

	// The dates around the full one must be untouched by the failure.
	for _, d := range []time.Time{date(2026, 9, 1), date(2026, 9, 3)} {
		available, err := ix.Query(ctx, "reddison", d, d.AddDate(0, 0, 1))
		if err != nil {
			t.Fatalf("query %v: %v", d, err)
		}

		if !available {
			t.Fatalf("failed reserve leaked capacity on %v", d.Format(time.DateOnly))
		}
	}
}

func TestReleaseRestoresCapacity(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, map[string]int{"reddison": 1})
	ctx := context.Background()

	in, out := date(2026, 9, 1), date(2026, 9, 4)

	if err := ix.Reserve(ctx, "reddison", in, out); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := ix.Release(ctx, "reddison", in, out); err != nil {
		t.Fatalf("release: %v", err)
	}

	available, err := ix.Query(ctx, "reddison", in, out)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if !available {
		t.Fatal("released range still reported occupied")
	}
}

func TestDoubleReleaseIsInvariantViolation(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, map[string]int{"reddison": 2})
	ctx := context.Background()

	in, out := date(2026, 9, 1), date(2026, 9, 2)

	if err := ix.Reserve(ctx, "reddison", in, out); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := ix.Release(ctx, "reddison", in, out); err != nil {
		t.Fatalf("first release: %v", err)
	}

	err := ix.Release(ctx, "reddison", in, out)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("double release error = %v, want %v", err, ErrInvariantViolation)
	}
}

func TestReserveBusyWhenCellHeld(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, map[string]int{"reddison": 5})
	ix.lockWait = 20 * time.Millisecond
	ctx := context.Background()

	in, out := date(2026, 9, 1), date(2026, 9, 2)

	// Hold the cell's semaphore directly so Reserve cannot acquire it.
	held := ix.cellsFor("reddison", datesIn(in, out))
	held[0].sem <- struct{}{}

	defer func() { <-held[0].sem }()

	err := ix.Reserve(ctx, "reddison", in, out)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("reserve against held cell error = %v, want %v", err, ErrBusy)
	}
}

func TestDisjointHotelsDoNotContend(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, map[string]int{"reddison": 1, "grandplaza": 1})
	ix.lockWait = 10 * time.Millisecond
	ctx := context.Background()

	in, out := date(2026, 9, 1), date(2026, 9, 2)

	held := ix.cellsFor("reddison", datesIn(in, out))
	held[0].sem <- struct{}{}

	defer func() { <-held[0].sem }()

	if err := ix.Reserve(ctx, "grandplaza", in, out); err != nil {
		t.Fatalf("reserve on unrelated hotel blocked: %v", err)
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, map[string]int{"reddison": 1})
	ctx := context.Background()

	const attempts = 16

	var wg sync.WaitGroup

	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results <- ix.Reserve(ctx, "reddison", date(2026, 9, 1), date(2026, 9, 3))
		}()
	}

	wg.Wait()
	close(results)

	won := 0

	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrCapacityExceeded):
		default:
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}

	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
}
