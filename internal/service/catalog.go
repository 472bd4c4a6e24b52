package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/repository"
)

// CatalogStore is implemented by repository.CatalogRepo.
type CatalogStore interface {
	ListUpcoming(ctx context.Context, region string, after time.Time) ([]repository.BookableRow, error)
	ListTheaters(ctx context.Context, region, chain string) ([]model.Theater, error)
	ListShowtimes(ctx context.Context, movieID string, theaterID uint64, from, to time.Time) ([]model.Showtime, error)
	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
}

// Catalog answers read-only questions about movies, theaters and showtimes.
// Every read is bounded by a timeout; hitting it yields an empty result so
// the caller can render "nothing found" instead of hanging.
type Catalog struct {
	store   CatalogStore
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
}

// NewCatalog builds a Catalog.  Dates are interpreted in loc.
func NewCatalog(store CatalogStore, timeout time.Duration, loc *time.Location) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	return &Catalog{store: store, timeout: timeout, loc: loc, now: time.Now}
}

func (c *Catalog) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func timedOut(op string, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		log.Printf("catalog: %s timed out, returning empty result", op)
		return true
	}
	return false
}

// ListBookableMovies groups the upcoming showtimes of a region by movie, in
// order of each movie's first showtime.  An empty region means all regions.
func (c *Catalog) ListBookableMovies(ctx context.Context, region string) ([]model.BookableMovie, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	now := c.now()
	rows, err := c.store.ListUpcoming(ctx, region, now)
	if err != nil {
		if timedOut("list bookable movies", err) {
			return []model.BookableMovie{}, nil
		}
		return nil, err
	}

	today := now.In(c.loc).Format(time.DateOnly)
	out := []model.BookableMovie{}
	index := map[string]int{}
	for _, r := range rows {
		day := r.Showtime.StartTime.In(c.loc).Format(time.DateOnly)
		i, ok := index[r.Movie.ID]
		if !ok {
			i = len(out)
			index[r.Movie.ID] = i
			out = append(out, model.BookableMovie{
				Movie:            r.Movie,
				FirstShowDate:    day,
				IsNowPlaying:     r.Movie.ReleaseDate == "" || r.Movie.ReleaseDate <= today,
				TheaterShowtimes: map[uint64][]model.ShowtimeInfo{},
			})
		}
		m := &out[i]
		m.LastShowDate = day
		m.TotalShowtimes++
		m.TheaterShowtimes[r.Showtime.TheaterID] = append(m.TheaterShowtimes[r.Showtime.TheaterID], model.ShowtimeInfo{
			ShowtimeID:  r.Showtime.ID,
			TheaterName: r.Showtime.TheaterName,
			ScreenName:  r.Showtime.ScreenName,
			StartTime:   r.Showtime.StartTime,
			EndTime:     r.Showtime.EndTime,
		})
	}
	return out, nil
}

// ListTheaters returns theaters grouped by region, then chain.  Regions,
// chains and theaters are each sorted by name.
func (c *Catalog) ListTheaters(ctx context.Context, region, chain string) ([]model.RegionGroup, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	theaters, err := c.store.ListTheaters(ctx, region, chain)
	if err != nil {
		if timedOut("list theaters", err) {
			return []model.RegionGroup{}, nil
		}
		return nil, err
	}
	return GroupTheaters(theaters), nil
}

// GroupTheaters nests theaters as region -> chain -> theaters.
func GroupTheaters(theaters []model.Theater) []model.RegionGroup {
	byRegion := map[string]map[string][]model.Theater{}
	for _, t := range theaters {
		if byRegion[t.Region] == nil {
			byRegion[t.Region] = map[string][]model.Theater{}
		}
		byRegion[t.Region][t.Chain] = append(byRegion[t.Region][t.Chain], t)
	}
	out := make([]model.RegionGroup, 0, len(byRegion))
	for region, chains := range byRegion {
		g := model.RegionGroup{Region: region, Chains: make([]model.ChainGroup, 0, len(chains))}
		for chain, ts := range chains {
			sort.SliceStable(ts, func(i, j int) bool { return ts[i].Name < ts[j].Name })
			g.Chains = append(g.Chains, model.ChainGroup{Chain: chain, Theaters: ts})
		}
		sort.Slice(g.Chains, func(i, j int) bool { return g.Chains[i].Chain < g.Chains[j].Chain })
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// NormalizeMovieID accepts "123" or "tmdb_123".
func NormalizeMovieID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, model.MovieIDPrefix) {
		return id
	}
	return model.MovieIDPrefix + id
}

// ListShowtimes returns the showtimes of a movie at a theater on a local
// calendar date (YYYY-MM-DD; today when empty), earliest first.
func (c *Catalog) ListShowtimes(ctx context.Context, movieID string, theaterID uint64, date string) ([]model.Showtime, error) {
	from, to, err := c.dayRange(date)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	out, err := c.store.ListShowtimes(ctx, NormalizeMovieID(movieID), theaterID, from, to)
	if err != nil {
		if timedOut("list showtimes", err) {
			return []model.Showtime{}, nil
		}
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// dayRange converts a local date into the UTC half-open range [from, to).
func (c *Catalog) dayRange(date string) (time.Time, time.Time, error) {
	var day time.Time
	if date == "" {
		n := c.now().In(c.loc)
		day = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, c.loc)
	} else {
		d, err := time.ParseInLocation(time.DateOnly, date, c.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
		day = d
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}

// GetShowtime returns one showtime.  Unlike the list reads, a timeout here
// is an error: there is no meaningful empty value for a single showtime.
func (c *Catalog) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.store.GetShowtime(ctx, id)
}
