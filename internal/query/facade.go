// Package query is the read-only facade over the engine: batch
// availability checks and reservation listings, isolated from the write
// path. Its answers are advisory; Create re-validates capacity.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/reservation/internal/logger"
	"github.com/avstrong/reservation/internal/reservation"
)

type availabilityIndex interface {
	Query(ctx context.Context, hotelID string, in, out time.Time) (bool, error)
}

type reservationLister interface {
	ListByUser(ctx context.Context, userID string) ([]*reservation.Reservation, error)
}

type Facade struct {
	l            *logger.Logger
	index        availabilityIndex
	reservations reservationLister
}

func New(l *logger.Logger, index availabilityIndex, reservations reservationLister) *Facade {
	return &Facade{
		l:            l,
		index:        index,
		reservations: reservations,
	}
}

// CheckAvailability answers one bool per requested hotel. The caller
// supplied an opaque ID list it does not fully control, so unknown hotels
// map to false instead of failing the batch; so does a hotel whose check
// errors out.
func (f *Facade) CheckAvailability(
	ctx context.Context,
	hotelIDs []string,
	in, out time.Time,
) map[string]bool {
	result := make(map[string]bool, len(hotelIDs))

	for _, hotelID := range hotelIDs {
		if !out.After(in) {
			result[hotelID] = false

			continue
		}

		available, err := f.index.Query(ctx, hotelID, in, out)
		if err != nil {
			f.l.LogWarnf("Availability check degraded to false for hotel %v: %v", hotelID, err.Error())

			available = false
		}

		result[hotelID] = available
	}

	return result
}

// ListReservations returns the user's reservations, newest first.
func (f *Facade) ListReservations(ctx context.Context, userID string) ([]*reservation.Reservation, error) {
	reservations, err := f.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations for user %v: %w", userID, err)
	}

	return reservations, nil
}
