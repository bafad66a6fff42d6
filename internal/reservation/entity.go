package reservation

import "time"

// State tags a reservation's position in its lifecycle. PENDING holds
// capacity provisionally; CONFIRMED holds it until cancellation; CANCELLED
// and EXPIRED are terminal and hold nothing.
type State string

const (
	StatePending   State = "PENDING"
	StateConfirmed State = "CONFIRMED"
	StateCancelled State = "CANCELLED"
	StateExpired   State = "EXPIRED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateExpired
}

// Reservation occupies one room-unit for every date in [CheckIn, CheckOut).
// The check-out day itself is not occupied. Version increments on every
// state write and is the optimistic-concurrency token for mutations.
type Reservation struct {
	ID        string    `json:"id"`
	HotelID   string    `json:"hotel_id"`
	UserID    string    `json:"user_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"version"`
}

type CreateInput struct {
	HotelID  string    `json:"hotel_id"`
	UserID   string    `json:"user_id"`
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

func (in *CreateInput) prepareDates() {
	in.CheckIn = midnightUTC(in.CheckIn)
	in.CheckOut = midnightUTC(in.CheckOut)
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
