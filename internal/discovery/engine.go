// Package discovery finds the movies released in a calendar month that feature
// a user's favorite actors and that the user has not watched yet.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/castwatch/backend/internal/catalog"
	"github.com/castwatch/backend/internal/logging"
	"github.com/castwatch/backend/internal/models"
)

const (
	MinYear = 1881
	MaxYear = 2050

	// DefaultPageDelay keeps a single discovery walk under ten upstream requests per second.
	DefaultPageDelay = 100 * time.Millisecond

	dateLayout = "2006-01-02"
)

// ErrInvalidDateRange is returned when the requested year or month is out of range.
var ErrInvalidDateRange = errors.New("invalid year or month")

// MovieSearcher returns one page of catalog movies for a query.
type MovieSearcher interface {
	DiscoverMovies(ctx context.Context, q catalog.DiscoverQuery) ([]catalog.Entity, error)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine walks the catalog's discovery pages for a month.
type Engine struct {
	Catalog   MovieSearcher
	PageDelay time.Duration
	Sleep     SleepFunc
}

// NewEngine constructs an Engine. A negative delay disables the pause between pages.
func NewEngine(searcher MovieSearcher, pageDelay time.Duration) *Engine {
	if pageDelay < 0 {
		pageDelay = 0
	}
	return &Engine{Catalog: searcher, PageDelay: pageDelay, Sleep: sleepContext}
}

// MonthRange returns the first and last calendar day of the month, formatted as YYYY-MM-DD.
func MonthRange(year, month int) (string, string, error) {
	if year < MinYear || year > MaxYear || month < 1 || month > 12 {
		return "", "", fmt.Errorf("%w: %04d-%02d", ErrInvalidDateRange, year, month)
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(dateLayout), last.Format(dateLayout), nil
}

// UnwatchedMovies pages through every catalog movie released in the month
// whose cast includes any of the user's favorite actors, dropping the ones the
// user already watched. Upstream order is preserved. A failed page aborts the
// walk and nothing collected so far is returned.
func (e *Engine) UnwatchedMovies(ctx context.Context, user models.User, year, month int) ([]catalog.Entity, error) {
	from, to, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	if e.Catalog == nil {
		return nil, errors.New("discovery: catalog not configured")
	}

	ctx, span := logging.StartSpan(ctx, "discovery.unwatched_movies",
		slog.Int64("user_id", user.ID),
		slog.String("from", from),
		slog.String("to", to),
	)
	defer span.End()
	logger := logging.FromContext(ctx)

	sleep := e.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	cast := user.FavoriteActors.Slice()
	unwatched := make([]catalog.Entity, 0)
	page := 1
	for {
		movies, err := e.Catalog.DiscoverMovies(ctx, catalog.DiscoverQuery{
			From:    from,
			To:      to,
			Page:    page,
			CastIDs: cast,
		})
		if err != nil {
			err = fmt.Errorf("discover page %d: %w", page, err)
			span.Fail(err)
			return nil, err
		}

		for _, movie := range movies {
			if user.WatchedMovies.Has(movie.ID) {
				continue
			}
			unwatched = append(unwatched, movie)
		}

		page++
		if err := sleep(ctx, e.PageDelay); err != nil {
			err = fmt.Errorf("wait after page %d: %w", page-1, err)
			span.Fail(err)
			return nil, err
		}
		if len(movies) == 0 {
			break
		}
	}

	logger.Info("discovery finished",
		slog.Int("pages", page-1),
		slog.Int("favorite_actors", len(cast)),
		slog.Int("unwatched", len(unwatched)),
	)

	return unwatched, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
