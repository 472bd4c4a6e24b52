package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// CatalogRepo provides read-only access to movies, theaters and showtimes.
// Nothing here writes; the ledger owns available_seats.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo returns a new CatalogRepo bound to the given database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// BookableRow couples an upcoming showtime with the metadata of its movie.
type BookableRow struct {
	Showtime model.Showtime
	Movie    model.Movie
}

const showtimeColumns = `st.id, st.movie_id, COALESCE(m.title, ''), COALESCE(m.poster_path, ''),
       st.screen_id, sc.name, sc.screen_type, sc.theater_id, t.name,
       st.start_time, st.end_time, st.price, st.total_seats, st.available_seats`

const showtimeJoins = `FROM showtimes st
JOIN screens sc ON sc.id = st.screen_id
JOIN theaters t ON t.id = sc.theater_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShowtime(sc rowScanner, extra ...any) (model.Showtime, error) {
	var s model.Showtime
	dest := []any{
		&s.ID, &s.MovieID, &s.MovieTitle, &s.PosterPath,
		&s.ScreenID, &s.ScreenName, &s.ScreenType, &s.TheaterID, &s.TheaterName,
		&s.StartTime, &s.EndTime, &s.Price, &s.TotalSeats, &s.AvailableSeats,
	}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return model.Showtime{}, err
	}
	return s, nil
}

// ListUpcoming returns showtimes starting after the given instant, joined
// with their movie.  Showtimes whose movie has no metadata are skipped.  An
// empty region means every region.  Rows are ordered by start time.
func (r *CatalogRepo) ListUpcoming(ctx context.Context, region string, after time.Time) ([]BookableRow, error) {
	q := `SELECT ` + showtimeColumns + `,
       COALESCE(m.overview, ''), COALESCE(m.release_date, ''), m.vote_average, m.runtime
` + showtimeJoins + `
JOIN movies m ON m.id = st.movie_id
WHERE st.start_time > ?`
	args := []any{after.UTC()}
	if region != "" {
		q += ` AND t.region = ?`
		args = append(args, region)
	}
	q += ` ORDER BY st.start_time ASC, st.id ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BookableRow
	for rows.Next() {
		var br BookableRow
		st, err := scanShowtime(rows, &br.Movie.Overview, &br.Movie.ReleaseDate, &br.Movie.VoteAverage, &br.Movie.Runtime)
		if err != nil {
			return nil, err
		}
		br.Showtime = st
		br.Movie.ID = st.MovieID
		br.Movie.Title = st.MovieTitle
		br.Movie.PosterPath = st.PosterPath
		out = append(out, br)
	}
	return out, rows.Err()
}

// ListTheaters returns theaters ordered by region, chain and name.  Empty
// filters are ignored.
func (r *CatalogRepo) ListTheaters(ctx context.Context, region, chain string) ([]model.Theater, error) {
	q := `SELECT id, name, chain, region, city, address, latitude, longitude FROM theaters`
	var where []string
	var args []any
	if region != "" {
		where = append(where, "region = ?")
		args = append(args, region)
	}
	if chain != "" {
		where = append(where, "chain = ?")
		args = append(args, chain)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY region, chain, name, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Theater
	for rows.Next() {
		var t model.Theater
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.Name, &t.Chain, &t.Region, &t.City, &t.Address, &lat, &lng); err != nil {
			return nil, err
		}
		if lat.Valid {
			v := lat.Float64
			t.Latitude = &v
		}
		if lng.Valid {
			v := lng.Float64
			t.Longitude = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListShowtimes returns the showtimes of a movie at a theater whose start
// time falls in [from, to), earliest first.
func (r *CatalogRepo) ListShowtimes(ctx context.Context, movieID string, theaterID uint64, from, to time.Time) ([]model.Showtime, error) {
	q := `SELECT ` + showtimeColumns + `
` + showtimeJoins + `
LEFT JOIN movies m ON m.id = st.movie_id
WHERE st.movie_id = ? AND sc.theater_id = ? AND st.start_time >= ? AND st.start_time < ?
ORDER BY st.start_time ASC, st.id ASC`
	rows, err := r.db.QueryContext(ctx, q, movieID, theaterID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Showtime{}
	for rows.Next() {
		st, err := scanShowtime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetShowtime loads one showtime.  ErrShowtimeNotFound is returned when the
// id is unknown.
func (r *CatalogRepo) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	q := `SELECT ` + showtimeColumns + `
` + showtimeJoins + `
LEFT JOIN movies m ON m.id = st.movie_id
WHERE st.id = ?`
	st, err := scanShowtime(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowtimeNotFound
		}
		return nil, err
	}
	return &st, nil
}
