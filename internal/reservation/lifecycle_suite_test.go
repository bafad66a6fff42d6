package reservation_test

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/avstrong/reservation/internal/availability"
	idgen "github.com/avstrong/reservation/internal/idgen/uuid"
	"github.com/avstrong/reservation/internal/inventory"
	"github.com/avstrong/reservation/internal/logger"
	"github.com/avstrong/reservation/internal/reservation"
	"github.com/avstrong/reservation/internal/storage/memory"
)

type LifecycleSuite struct {
	suite.Suite
	ledger  *memory.DB
	index   *availability.Index
	engine  *reservation.Manager
	catalog *inventory.Memory
}

func (s *LifecycleSuite) SetupTest() {
	l := logger.New(log.Default())

	s.catalog = inventory.NewMemory()
	s.catalog.SetTotalRooms("reddison", 2)
	s.catalog.SetTotalRooms("harbourview", 1)

	s.index = availability.New(availability.Config{
		L:        l,
		Rooms:    inventory.NewStore(s.catalog),
		LockWait: 2 * time.Second,
	})

	s.ledger = memory.New(memory.Config{L: l})

	s.engine = reservation.New(l, s.ledger, s.index, idgen.New(), reservation.Conf{
		PendingTTL: 15 * time.Minute,
		Now:        func() time.Time { return date(2026, 6, 1) },
	})
}

func (s *LifecycleSuite) TestFullLifecycle() {
	ctx := context.Background()

	hold, err := s.engine.CreateHold(ctx, &reservation.CreateInput{
		HotelID: "reddison", UserID: "alice",
		CheckIn: date(2026, 9, 1), CheckOut: date(2026, 9, 4),
	})
	s.Require().NoError(err)
	s.Equal(reservation.StatePending, hold.State)

	confirmed, err := s.engine.Confirm(ctx, hold.ID, "alice")
	s.Require().NoError(err)
	s.Equal(reservation.StateConfirmed, confirmed.State)
	s.Greater(confirmed.Version, hold.Version)

	// Confirm is a no-op the second time around.
	again, err := s.engine.Confirm(ctx, hold.ID, "alice")
	s.Require().NoError(err)
	s.Equal(confirmed.Version, again.Version)

	s.Require().NoError(s.engine.Cancel(ctx, hold.ID, "alice"))

	err = s.engine.Cancel(ctx, hold.ID, "alice")
	s.ErrorIs(err, reservation.ErrAlreadyCancelled)
}

func (s *LifecycleSuite) TestRestoreIndexReplaysActiveReservations() {
	ctx := context.Background()

	_, err := s.engine.Create(ctx, &reservation.CreateInput{
		HotelID: "harbourview", UserID: "alice",
		CheckIn: date(2026, 9, 1), CheckOut: date(2026, 9, 3),
	})
	s.Require().NoError(err)

	dropped, err := s.engine.Create(ctx, &reservation.CreateInput{
		HotelID: "reddison", UserID: "bob",
		CheckIn: date(2026, 9, 1), CheckOut: date(2026, 9, 2),
	})
	s.Require().NoError(err)
	s.Require().NoError(s.engine.Cancel(ctx, dropped.ID, "bob"))

	// A new process: same ledger, fresh index.
	l := logger.New(log.Default())
	freshIndex := availability.New(availability.Config{
		L:        l,
		Rooms:    inventory.NewStore(s.catalog),
		LockWait: 2 * time.Second,
	})
	restored := reservation.New(l, s.ledger, freshIndex, idgen.New(), reservation.Conf{
		Now: func() time.Time { return date(2026, 6, 1) },
	})

	s.Require().NoError(restored.RestoreIndex(ctx))

	// The confirmed harbourview stay still occupies its dates.
	available, err := freshIndex.Query(ctx, "harbourview", date(2026, 9, 1), date(2026, 9, 3))
	s.Require().NoError(err)
	s.False(available)

	// The cancelled reddison stay does not.
	available, err = freshIndex.Query(ctx, "reddison", date(2026, 9, 1), date(2026, 9, 2))
	s.Require().NoError(err)
	s.True(available)
}

func (s *LifecycleSuite) TestOverlapAuditQuery() {
	ctx := context.Background()

	r, err := s.engine.Create(ctx, &reservation.CreateInput{
		HotelID: "reddison", UserID: "alice",
		CheckIn: date(2026, 9, 10), CheckOut: date(2026, 9, 12),
	})
	s.Require().NoError(err)

	overlapping, err := s.engine.ListOverlapping(ctx, "reddison", date(2026, 9, 11), date(2026, 9, 20))
	s.Require().NoError(err)
	s.Require().Len(overlapping, 1)
	s.Equal(r.ID, overlapping[0].ID)

	// Ranges touching only at the boundary do not overlap.
	overlapping, err = s.engine.ListOverlapping(ctx, "reddison", date(2026, 9, 12), date(2026, 9, 20))
	s.Require().NoError(err)
	s.Empty(overlapping)
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}
