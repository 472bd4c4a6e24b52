// Package reservation holds the in-progress seat selection of one shopper.
// A Session prepares a checkout attempt; it does not guarantee exclusivity.
// Exclusivity is decided by the booking ledger when the booking is created.
package reservation

import (
	"errors"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// ErrSeatOccupied is returned when toggling a seat that is already taken.
var ErrSeatOccupied = errors.New("seat is occupied")

// ErrEmptySelection is returned by Submit when no seat is selected.
var ErrEmptySelection = errors.New("no seats selected")

// CheckoutRequest is what a session hands to the payment orchestrator.
type CheckoutRequest struct {
	ShowtimeID uint64   `json:"showtimeId"`
	Seats      []string `json:"seats"`
	SeatCount  int      `json:"seatCount"`
	TotalPrice int64    `json:"totalPrice"`
}

// Session is a single shopper's selection for one showtime.  It is not safe
// for concurrent use.
type Session struct {
	showtimeID uint64
	unitPrice  int64
	occupied   map[model.Seat]struct{}
	selected   []model.Seat
}

// NewSession starts a selection against a fresh occupancy snapshot.
func NewSession(showtimeID uint64, unitPrice int64, occupied []string) *Session {
	s := &Session{showtimeID: showtimeID, unitPrice: unitPrice}
	s.setOccupied(occupied)
	return s
}

func (s *Session) setOccupied(codes []string) {
	s.occupied = make(map[model.Seat]struct{}, len(codes))
	for _, c := range codes {
		if seat, err := model.ParseSeat(c); err == nil {
			s.occupied[seat] = struct{}{}
		}
	}
}

// ShowtimeID returns the showtime the session is bound to.
func (s *Session) ShowtimeID() uint64 { return s.showtimeID }

// ToggleSeat flips a seat between available and selected.  Occupied seats
// and codes outside the grid are rejected and leave the selection unchanged.
// It reports whether the seat is selected afterwards.
func (s *Session) ToggleSeat(code string) (bool, error) {
	seat, err := model.ParseSeat(code)
	if err != nil {
		return false, err
	}
	for i, sel := range s.selected {
		if sel == seat {
			s.selected = append(s.selected[:i], s.selected[i+1:]...)
			return false, nil
		}
	}
	if s.IsOccupied(seat) {
		return false, ErrSeatOccupied
	}
	s.selected = append(s.selected, seat)
	return true, nil
}

// IsOccupied reports whether the seat was taken in the latest snapshot.
func (s *Session) IsOccupied(seat model.Seat) bool {
	_, ok := s.occupied[seat]
	return ok
}

// Selected returns the selected seat codes in the order they were picked.
func (s *Session) Selected() []string { return model.SeatCodes(s.selected) }

// ComputeTotal is seat count times unit price.
func (s *Session) ComputeTotal() int64 { return int64(len(s.selected)) * s.unitPrice }

// Refresh replaces the occupancy snapshot and drops any selected seat that
// became occupied.  The dropped codes are returned.
func (s *Session) Refresh(occupied []string) []string {
	s.setOccupied(occupied)
	var dropped []string
	kept := s.selected[:0]
	for _, seat := range s.selected {
		if s.IsOccupied(seat) {
			dropped = append(dropped, seat.Code())
			continue
		}
		kept = append(kept, seat)
	}
	s.selected = kept
	return dropped
}

// Submit produces the checkout request for the current selection.
func (s *Session) Submit() (CheckoutRequest, error) {
	if len(s.selected) == 0 {
		return CheckoutRequest{}, ErrEmptySelection
	}
	for _, seat := range s.selected {
		if s.IsOccupied(seat) {
			return CheckoutRequest{}, ErrSeatOccupied
		}
	}
	return CheckoutRequest{
		ShowtimeID: s.showtimeID,
		Seats:      s.Selected(),
		SeatCount:  len(s.selected),
		TotalPrice: s.ComputeTotal(),
	}, nil
}
