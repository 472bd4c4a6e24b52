package model

import "time"

// Showtime is a scheduled screening.  AvailableSeats is a cached counter
// maintained by the ledger; occupancy itself comes from booking_seats.
type Showtime struct {
	ID             uint64    `json:"id"`             // showtimes.id
	MovieID        string    `json:"movieId"`        // showtimes.movie_id
	MovieTitle     string    `json:"movieTitle"`     // movies.title
	PosterPath     string    `json:"posterPath,omitempty"`
	ScreenID       uint64    `json:"screenId"`       // showtimes.screen_id
	ScreenName     string    `json:"screenName"`     // screens.name
	ScreenType     string    `json:"screenType"`     // screens.screen_type
	TheaterID      uint64    `json:"theaterId"`      // screens.theater_id
	TheaterName    string    `json:"theaterName"`    // theaters.name
	StartTime      time.Time `json:"startTime"`      // showtimes.start_time (UTC)
	EndTime        time.Time `json:"endTime"`        // showtimes.end_time (UTC)
	Price          int64     `json:"price"`          // per seat
	TotalSeats     int       `json:"totalSeats"`     // showtimes.total_seats
	AvailableSeats int       `json:"availableSeats"` // showtimes.available_seats
}
