package model

import "time"

// MovieIDPrefix is prepended to external catalog ids when stored locally.
const MovieIDPrefix = "tmdb_"

// Movie is the subset of external movie metadata the booking pages need.
type Movie struct {
	ID          string  `json:"movieId"` // movies.id ("tmdb_<n>")
	Title       string  `json:"title"`
	PosterPath  string  `json:"posterPath,omitempty"`
	Overview    string  `json:"overview,omitempty"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	VoteAverage float64 `json:"voteAverage"`
	Runtime     int     `json:"runtime"`
}

// ShowtimeInfo is a compact showtime entry used inside BookableMovie.
type ShowtimeInfo struct {
	ShowtimeID  uint64    `json:"showtimeId"`
	TheaterName string    `json:"theaterName"`
	ScreenName  string    `json:"screenName"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

// BookableMovie is a movie with at least one upcoming showtime in a region.
type BookableMovie struct {
	Movie
	FirstShowDate    string                    `json:"firstShowDate"`
	LastShowDate     string                    `json:"lastShowDate"`
	TotalShowtimes   int                       `json:"totalShowtimes"`
	IsNowPlaying     bool                      `json:"isNowPlaying"`
	TheaterShowtimes map[uint64][]ShowtimeInfo `json:"theaterShowtimes"`
}
