// Package reservation coordinates capacity and the reservation lifecycle.
// The Manager is the only writer of reservations: it validates requests,
// commits capacity through the availability index, and records lifecycle
// transitions in the ledger with optimistic versioning.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avstrong/reservation/internal/availability"
	"github.com/avstrong/reservation/internal/logger"
)

type idGenerator interface {
	GetID(ctx context.Context) (string, error)
}

// Ledger is the durable reservation store. Implementations must make
// UpdateState an atomic compare-and-swap on the version column.
type Ledger interface {
	Create(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, id string) (*Reservation, error)
	UpdateState(ctx context.Context, id string, expectedVersion int64, state State) (*Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]*Reservation, error)
	ListOverlapping(ctx context.Context, hotelID string, in, out time.Time) ([]*Reservation, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*Reservation, error)
	ListActive(ctx context.Context) ([]*Reservation, error)
}

type index interface {
	Query(ctx context.Context, hotelID string, in, out time.Time) (bool, error)
	Reserve(ctx context.Context, hotelID string, in, out time.Time) error
	Release(ctx context.Context, hotelID string, in, out time.Time) error
	Restore(hotelID string, in, out time.Time)
}

type Conf struct {
	// PendingTTL bounds how long a hold may stay PENDING before the sweep
	// reclaims its capacity.
	PendingTTL time.Duration
	// ConflictRetries is the internal re-read budget on stale-version
	// failures before ErrConflict surfaces to the caller.
	ConflictRetries int
	// Now overrides the clock in tests.
	Now func() time.Time
}

const (
	defaultPendingTTL      = 15 * time.Minute
	defaultConflictRetries = 3
)

type Manager struct {
	l           *logger.Logger
	ledger      Ledger
	index       index
	idGenerator idGenerator
	conf        Conf
}

func New(l *logger.Logger, ledger Ledger, index index, idGenerator idGenerator, conf Conf) *Manager {
	if conf.PendingTTL <= 0 {
		conf.PendingTTL = defaultPendingTTL
	}

	if conf.ConflictRetries <= 0 {
		conf.ConflictRetries = defaultConflictRetries
	}

	if conf.Now == nil {
		conf.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Manager{
		l:           l,
		ledger:      ledger,
		index:       index,
		idGenerator: idGenerator,
		conf:        conf,
	}
}

func (in *CreateInput) validate(now time.Time) error {
	if in.HotelID == "" {
		return fmt.Errorf("hotel id is required: %w", ErrInvalidRange)
	}

	if in.UserID == "" {
		return fmt.Errorf("user id is required: %w", ErrInvalidRange)
	}

	if !in.CheckOut.After(in.CheckIn) {
		return fmt.Errorf("check_out must be after check_in: %w", ErrInvalidRange)
	}

	if in.CheckIn.Before(midnightUTC(now)) {
		return fmt.Errorf("check_in must not be in the past: %w", ErrInvalidRange)
	}

	return nil
}

// Create books [CheckIn, CheckOut) and confirms it in the same logical
// operation. The availability check inside Reserve is the binding one; any
// earlier facade query is advisory only.
func (m *Manager) Create(ctx context.Context, input *CreateInput) (*Reservation, error) {
	return m.create(ctx, input, true)
}

// CreateHold books the range but leaves the reservation PENDING; capacity
// stays provisionally held until Confirm, Cancel, or the expiry sweep.
func (m *Manager) CreateHold(ctx context.Context, input *CreateInput) (*Reservation, error) {
	return m.create(ctx, input, false)
}

func (m *Manager) create(ctx context.Context, input *CreateInput, confirm bool) (_ *Reservation, err error) {
	input.prepareDates()

	if err := input.validate(m.conf.Now()); err != nil {
		return nil, err
	}

	if err := m.index.Reserve(ctx, input.HotelID, input.CheckIn, input.CheckOut); err != nil {
		switch {
		case errors.Is(err, availability.ErrCapacityExceeded):
			return nil, fmt.Errorf("%v: %w", err, ErrNoAvailability)
		case errors.Is(err, availability.ErrBusy):
			return nil, fmt.Errorf("%v: %w", err, ErrBusy)
		default:
			return nil, fmt.Errorf("reserve capacity: %w", err)
		}
	}

	// Capacity is held from here on; every failure path below must give
	// it back before returning.
	defer func() {
		if err == nil {
			return
		}

		if relErr := m.index.Release(ctx, input.HotelID, input.CheckIn, input.CheckOut); relErr != nil {
			m.l.LogErrorf("Could not compensate capacity for hotel %v after failed create: %v", input.HotelID, relErr.Error())
		}
	}()

	id, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get reservation id: %w", err)
	}

	r := &Reservation{
		ID:        id,
		HotelID:   input.HotelID,
		UserID:    input.UserID,
		CheckIn:   input.CheckIn,
		CheckOut:  input.CheckOut,
		State:     StatePending,
		CreatedAt: m.conf.Now(),
		Version:   1,
	}

	if err = m.ledger.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("write reservation %v to ledger: %w", id, err)
	}

	if !confirm {
		return r, nil
	}

	confirmed, err := m.ledger.UpdateState(ctx, r.ID, r.Version, StateConfirmed)
	if err != nil {
		// Park the orphaned PENDING row in a terminal state so the sweep
		// does not release its capacity a second time after the deferred
		// compensation below.
		m.revertState(ctx, r, StateCancelled)

		return nil, fmt.Errorf("confirm reservation %v: %w", id, err)
	}

	r = confirmed

	return r, nil
}

// Confirm finalizes a PENDING hold. Confirming an already CONFIRMED
// reservation is a no-op; terminal states are rejected.
func (m *Manager) Confirm(ctx context.Context, reservationID, userID string) (*Reservation, error) {
	for attempt := 0; attempt <= m.conf.ConflictRetries; attempt++ {
		r, err := m.owned(ctx, reservationID, userID)
		if err != nil {
			return nil, err
		}

		if r.State == StateConfirmed {
			return r, nil
		}

		if r.State.Terminal() {
			return nil, fmt.Errorf("reservation %v is %v: %w", reservationID, r.State, ErrAlreadyCancelled)
		}

		r, err = m.ledger.UpdateState(ctx, r.ID, r.Version, StateConfirmed)
		if err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}

			return nil, fmt.Errorf("confirm reservation %v: %w", reservationID, err)
		}

		return r, nil
	}

	return nil, fmt.Errorf("confirm reservation %v: %w", reservationID, ErrConflict)
}

// Cancel releases a reservation's capacity and marks it CANCELLED. The
// versioned state write runs first: it elects a single winner among racing
// cancels and sweeps, so capacity is released exactly once. If the release
// then fails the state write is rolled back and the error surfaced.
func (m *Manager) Cancel(ctx context.Context, reservationID, userID string) error {
	for attempt := 0; attempt <= m.conf.ConflictRetries; attempt++ {
		r, err := m.owned(ctx, reservationID, userID)
		if err != nil {
			return err
		}

		if r.State.Terminal() {
			return fmt.Errorf("reservation %v is %v: %w", reservationID, r.State, ErrAlreadyCancelled)
		}

		cancelled, err := m.ledger.UpdateState(ctx, r.ID, r.Version, StateCancelled)
		if err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}

			return fmt.Errorf("mark reservation %v cancelled: %w", reservationID, err)
		}

		if err := m.index.Release(ctx, r.HotelID, r.CheckIn, r.CheckOut); err != nil {
			m.revertState(ctx, cancelled, r.State)

			switch {
			case errors.Is(err, availability.ErrBusy):
				return fmt.Errorf("release capacity for reservation %v: %w", reservationID, ErrBusy)
			case errors.Is(err, availability.ErrInvariantViolation):
				m.l.LogErrorf("Invariant violation releasing capacity for reservation %v: %v", reservationID, err.Error())

				return fmt.Errorf("release capacity for reservation %v: %w", reservationID, ErrInvariantViolation)
			default:
				return fmt.Errorf("release capacity for reservation %v: %w", reservationID, err)
			}
		}

		return nil
	}

	return fmt.Errorf("cancel reservation %v: %w", reservationID, ErrConflict)
}

func (m *Manager) revertState(ctx context.Context, r *Reservation, prior State) {
	if _, err := m.ledger.UpdateState(ctx, r.ID, r.Version, prior); err != nil {
		m.l.LogErrorf("Could not revert reservation %v to %v: %v", r.ID, prior, err.Error())
	}
}

func (m *Manager) owned(ctx context.Context, reservationID, userID string) (*Reservation, error) {
	r, err := m.ledger.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("reservation %v: %w", reservationID, ErrNotFound)
		}

		return nil, fmt.Errorf("read reservation %v: %w", reservationID, err)
	}

	// Ownership is not disclosed: someone else's reservation looks absent.
	if r.UserID != userID {
		return nil, fmt.Errorf("reservation %v: %w", reservationID, ErrNotFound)
	}

	return r, nil
}

// ListByUser returns the user's reservations, newest first.
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]*Reservation, error) {
	reservations, err := m.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations for user %v: %w", userID, err)
	}

	return reservations, nil
}

// ListOverlapping exposes the ledger's audit view of reservations touching
// [in, out) for one hotel.
func (m *Manager) ListOverlapping(ctx context.Context, hotelID string, in, out time.Time) ([]*Reservation, error) {
	reservations, err := m.ledger.ListOverlapping(ctx, hotelID, midnightUTC(in), midnightUTC(out))
	if err != nil {
		return nil, fmt.Errorf("list reservations overlapping for hotel %v: %w", hotelID, err)
	}

	return reservations, nil
}

// RestoreIndex replays PENDING and CONFIRMED reservations into the
// availability index. Called once at startup before the engine serves
// traffic; the ledger is the source of truth for committed capacity.
func (m *Manager) RestoreIndex(ctx context.Context) error {
	active, err := m.ledger.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active reservations: %w", err)
	}

	for _, r := range active {
		m.index.Restore(r.HotelID, r.CheckIn, r.CheckOut)
	}

	m.l.LogInfo("Availability index restored from %v active reservations", len(active))

	return nil
}
