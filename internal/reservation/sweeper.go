package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SweepExpired runs one expiry pass: every PENDING reservation older than
// the TTL is force-transitioned to EXPIRED and its provisional capacity
// released. The versioned state write elects the winner per reservation;
// holds confirmed or cancelled mid-sweep are skipped. Returns how many
// reservations were expired.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	stale, err := m.ledger.ListPendingBefore(ctx, now.Add(-m.conf.PendingTTL))
	if err != nil {
		return 0, fmt.Errorf("list stale pending reservations: %w", err)
	}

	swept := 0

	for _, r := range stale {
		expired, err := m.ledger.UpdateState(ctx, r.ID, r.Version, StateExpired)
		if err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}

			m.l.LogErrorf("Could not expire reservation %v: %v", r.ID, err.Error())

			continue
		}

		if err := m.index.Release(ctx, r.HotelID, r.CheckIn, r.CheckOut); err != nil {
			m.l.LogErrorf("Could not release capacity for expired reservation %v: %v", r.ID, err.Error())
			m.revertState(ctx, expired, StatePending)

			continue
		}

		swept++
	}

	return swept, nil
}

// RunSweeper loops SweepExpired on the given interval until ctx is done.
// It is the safety net for callers that abandoned a two-phase flow before
// confirming.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			swept, err := m.SweepExpired(ctx, now.UTC())
			if err != nil {
				m.l.LogErrorf("Expiry sweep failed: %v", err.Error())

				continue
			}

			if swept > 0 {
				m.l.LogInfo("Expiry sweep reclaimed %v reservations", swept)
			}
		}
	}
}
