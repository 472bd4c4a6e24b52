package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Seat grid of the reference deployment: rows A–P, seats 1–15 per row, with
// aisle gaps rendered after seats 4 and 11.
const (
	SeatRows    = 16
	SeatColumns = 15
)

// AisleAfter lists the seat numbers that are followed by an aisle gap.
var AisleAfter = []int{4, 11}

// ErrInvalidSeat is returned for seat codes outside the grid.
var ErrInvalidSeat = errors.New("invalid seat code")

// Seat is identified by a row letter and a 1-based number; its code is the
// concatenation, e.g. "A1" or "P15".
type Seat struct {
	Row    byte
	Number int
}

// Code returns the wire form of the seat.
func (s Seat) Code() string { return string(s.Row) + strconv.Itoa(s.Number) }

func (s Seat) String() string { return s.Code() }

// Valid reports whether the seat lies on the grid.
func (s Seat) Valid() bool {
	return s.Row >= 'A' && s.Row < 'A'+SeatRows && s.Number >= 1 && s.Number <= SeatColumns
}

// ParseSeat parses codes such as "a1" or " C12 ".  Row letters are
// case-insensitive; anything outside the grid is rejected.
func ParseSeat(code string) (Seat, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) < 2 {
		return Seat{}, fmt.Errorf("%w: %q", ErrInvalidSeat, code)
	}
	n, err := strconv.Atoi(c[1:])
	if err != nil || c[1] == '0' || c[1] == '+' || c[1] == '-' {
		return Seat{}, fmt.Errorf("%w: %q", ErrInvalidSeat, code)
	}
	s := Seat{Row: c[0], Number: n}
	if !s.Valid() {
		return Seat{}, fmt.Errorf("%w: %q", ErrInvalidSeat, code)
	}
	return s, nil
}

// ParseSeats parses and de-duplicates a list of seat codes while keeping the
// order in which they were first given.
func ParseSeats(codes []string) ([]Seat, error) {
	out := make([]Seat, 0, len(codes))
	seen := make(map[Seat]struct{}, len(codes))
	for _, code := range codes {
		s, err := ParseSeat(code)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// SeatCodes maps seats to their codes.
func SeatCodes(seats []Seat) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.Code()
	}
	return out
}

// JoinSeats renders the comma separated column format ("A1,A2").
func JoinSeats(codes []string) string { return strings.Join(codes, ",") }

// SplitSeats is the inverse of JoinSeats; empty input yields an empty slice.
func SplitSeats(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RowLabel returns the letter for a zero-based row index.
func RowLabel(i int) byte { return byte('A' + i) }

// IsAisleAfter reports whether an aisle gap follows seat number n.
func IsAisleAfter(n int) bool {
	for _, a := range AisleAfter {
		if a == n {
			return true
		}
	}
	return false
}
