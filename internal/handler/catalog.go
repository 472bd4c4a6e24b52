package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/service"
)

// CatalogReader is the read side of the showtime catalog.
type CatalogReader interface {
	ListBookableMovies(ctx context.Context, region string) ([]model.BookableMovie, error)
	ListTheaters(ctx context.Context, region, chain string) ([]model.RegionGroup, error)
	ListShowtimes(ctx context.Context, movieID string, theaterID uint64, date string) ([]model.Showtime, error)
	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
}

// SeatReader answers occupancy queries for a showtime.
type SeatReader interface {
	GetOccupiedSeats(ctx context.Context, showtimeID uint64) ([]string, error)
	SeatMap(ctx context.Context, showtimeID uint64, viewerOrderID string) service.SeatMap
}

// CatalogHandler serves the public browse endpoints: bookable movies,
// theaters, showtimes and seat occupancy.  None of them require a token.
type CatalogHandler struct {
	Catalog   CatalogReader
	Inventory SeatReader
}

// NewCatalogHandler panics on nil dependencies.
func NewCatalogHandler(catalog CatalogReader, inventory SeatReader) *CatalogHandler {
	if catalog == nil || inventory == nil {
		panic("nil dependency passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: catalog, Inventory: inventory}
}

// BookableMovies handles GET /bookings/movies?region=.
func (h *CatalogHandler) BookableMovies(c echo.Context) error {
	region := strings.TrimSpace(c.QueryParam("region"))
	out, err := h.Catalog.ListBookableMovies(c.Request().Context(), region)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Theaters handles GET /theaters?region=&chain=.  The response is grouped
// by region, then chain.
func (h *CatalogHandler) Theaters(c echo.Context) error {
	region := strings.TrimSpace(c.QueryParam("region"))
	chain := strings.TrimSpace(c.QueryParam("chain"))
	out, err := h.Catalog.ListTheaters(c.Request().Context(), region, chain)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Showtimes handles GET /showtimes?movieId=&theaterId=&date=.  movieId and
// theaterId are required; date defaults to today in the configured zone.
func (h *CatalogHandler) Showtimes(c echo.Context) error {
	movieID := strings.TrimSpace(c.QueryParam("movieId"))
	if movieID == "" {
		return badRequest(c, "INVALID_REQUEST", "movieId is required")
	}
	theaterID, err := strconv.ParseUint(c.QueryParam("theaterId"), 10, 64)
	if err != nil || theaterID == 0 {
		return badRequest(c, "INVALID_REQUEST", "invalid theaterId")
	}
	out, err := h.Catalog.ListShowtimes(c.Request().Context(), movieID, theaterID, strings.TrimSpace(c.QueryParam("date")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Showtime handles GET /showtimes/:id.
func (h *CatalogHandler) Showtime(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_REQUEST", "invalid showtime id")
	}
	st, err := h.Catalog.GetShowtime(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// BookedSeats handles GET /bookings/showtime/:id/booked-seats and returns
// the seats held by PENDING or CONFIRMED bookings.
func (h *CatalogHandler) BookedSeats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_REQUEST", "invalid showtime id")
	}
	seats, err := h.Inventory.GetOccupiedSeats(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if seats == nil {
		seats = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"showtimeId": id, "bookedSeats": seats})
}

// SeatMap handles GET /bookings/showtime/:id/seats.  An authenticated caller
// may pass ?orderId= to see the seats of its own lease as available.  The
// response is always 200; a failed occupancy read sets "degraded".
func (h *CatalogHandler) SeatMap(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_REQUEST", "invalid showtime id")
	}
	viewer := ""
	if _, err := getUserID(c); err == nil {
		viewer = strings.TrimSpace(c.QueryParam("orderId"))
	}
	return c.JSON(http.StatusOK, h.Inventory.SeatMap(c.Request().Context(), id, viewer))
}
