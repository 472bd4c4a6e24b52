package service

import (
	"context"
	"log"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/repository"
)

// SeatStatus values rendered in a seat map.
const (
	SeatAvailable = "available"
	SeatOccupied  = "occupied"
)

// OccupancyReader is implemented by repository.BookingRepo.
type OccupancyReader interface {
	OccupiedSeats(ctx context.Context, showtimeID uint64) ([]string, error)
}

// LeaseReader is implemented by repository.SeatHoldRepo.
type LeaseReader interface {
	ActiveByShowtime(ctx context.Context, showtimeID uint64) ([]model.SeatHold, error)
}

// SeatCell is one seat of the grid.
type SeatCell struct {
	Code       string `json:"code"`
	Number     int    `json:"number"`
	Status     string `json:"status"`
	AisleAfter bool   `json:"aisleAfter,omitempty"`
}

// SeatRow is one lettered row of the grid.
type SeatRow struct {
	Row   string     `json:"row"`
	Seats []SeatCell `json:"seats"`
}

// SeatMap is the rendered grid of a showtime.  Degraded is set when
// occupancy could not be fetched; every seat then shows as available and
// the ledger remains the authority at booking time.
type SeatMap struct {
	ShowtimeID uint64    `json:"showtimeId"`
	Rows       []SeatRow `json:"rows"`
	Occupied   []string  `json:"occupied"`
	Degraded   bool      `json:"degraded"`
	Error      string    `json:"error,omitempty"`
}

// Inventory reads seat occupancy.  It never writes.
type Inventory struct {
	bookings OccupancyReader
	leases   LeaseReader
}

// NewInventory builds an Inventory.  A nil leases reader ignores leases.
func NewInventory(bookings OccupancyReader, leases LeaseReader) *Inventory {
	return &Inventory{bookings: bookings, leases: leases}
}

// GetOccupiedSeats returns the seats claimed in the ledger, in grid order.
func (inv *Inventory) GetOccupiedSeats(ctx context.Context, showtimeID uint64) ([]string, error) {
	return inv.bookings.OccupiedSeats(ctx, showtimeID)
}

// Occupied returns the ledger seats plus the seats under a live lease of
// any order other than viewerOrderID.
func (inv *Inventory) Occupied(ctx context.Context, showtimeID uint64, viewerOrderID string) ([]string, error) {
	seats, err := inv.bookings.OccupiedSeats(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if inv.leases == nil {
		return seats, nil
	}
	holds, err := inv.leases.ActiveByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(seats)+len(holds))
	for _, s := range seats {
		seen[s] = struct{}{}
	}
	for _, h := range holds {
		if viewerOrderID != "" && h.OrderID == viewerOrderID {
			continue
		}
		if _, ok := seen[h.SeatCode]; !ok {
			seen[h.SeatCode] = struct{}{}
			seats = append(seats, h.SeatCode)
		}
	}
	repository.SortSeatCodes(seats)
	return seats, nil
}

// SeatMap renders the full grid.  A fetch error does not fail the call.
func (inv *Inventory) SeatMap(ctx context.Context, showtimeID uint64, viewerOrderID string) SeatMap {
	m := SeatMap{ShowtimeID: showtimeID}
	occupied, err := inv.Occupied(ctx, showtimeID, viewerOrderID)
	if err != nil {
		log.Printf("inventory: occupancy for showtime %d unavailable: %v", showtimeID, err)
		m.Degraded = true
		m.Error = err.Error()
		occupied = nil
	}
	if occupied == nil {
		occupied = []string{}
	}
	m.Occupied = occupied
	m.Rows = BuildGrid(occupied)
	return m
}

// BuildGrid lays out the fixed grid and marks occupied seats.
func BuildGrid(occupied []string) []SeatRow {
	taken := make(map[string]struct{}, len(occupied))
	for _, c := range occupied {
		taken[c] = struct{}{}
	}
	rows := make([]SeatRow, 0, model.SeatRows)
	for r := 0; r < model.SeatRows; r++ {
		row := SeatRow{Row: string(model.RowLabel(r)), Seats: make([]SeatCell, 0, model.SeatColumns)}
		for n := 1; n <= model.SeatColumns; n++ {
			seat := model.Seat{Row: model.RowLabel(r), Number: n}
			cell := SeatCell{Code: seat.Code(), Number: n, Status: SeatAvailable, AisleAfter: model.IsAisleAfter(n)}
			if _, ok := taken[cell.Code]; ok {
				cell.Status = SeatOccupied
			}
			row.Seats = append(row.Seats, cell)
		}
		rows = append(rows, row)
	}
	return rows
}
