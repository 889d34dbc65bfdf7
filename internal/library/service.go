// Package library implements the user-facing movie list operations:
// searching the catalog, importing a movie, rating, deleting and the
// ranked listing. Every error it returns is an *Error.
package library

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/franz/top-movies/internal/rank"
	"github.com/franz/top-movies/internal/report"
	"github.com/franz/top-movies/internal/store"
	"github.com/franz/top-movies/internal/tmdb"
	"github.com/franz/top-movies/internal/util"
)

const (
	MinRating = 0.0
	MaxRating = 10.0
)

// Provider is the movie catalog the service searches and imports from
type Provider interface {
	Search(ctx context.Context, query string) ([]tmdb.Candidate, error)
	Details(ctx context.Context, id string) (*tmdb.Details, error)
	ImageURL(posterPath string) string
}

// Options configure a Service
type Options struct {
	// PersistRanking writes changed rankings back to the store on every listing
	PersistRanking bool
	Events         *report.EventLogger
}

// Service ties the store, the catalog and the event log together
type Service struct {
	store    *store.Store
	provider Provider
	opts     Options
}

// New creates a Service. provider may be nil for commands that never reach the catalog.
func New(st *store.Store, provider Provider, opts Options) *Service {
	return &Service{store: st, provider: provider, opts: opts}
}

// List runs the ranking pass and returns every movie, best first
func (s *Service) List(ctx context.Context) ([]*store.Movie, error) {
	const op = "list"
	start := time.Now()

	var movies []*store.Movie
	var changed int

	if !s.opts.PersistRanking {
		var err error
		movies, err = s.store.ListByRating(ctx)
		if err != nil {
			return nil, s.fail(ctx, op, err)
		}
		changed = len(rank.Assign(movies))
	} else {
		err := s.store.Transaction(ctx, func(tx *store.Tx) error {
			var err error
			movies, err = tx.ListByRating(ctx)
			if err != nil {
				return err
			}

			changes := rank.Assign(movies)
			for _, c := range changes {
				if err := tx.SetRanking(ctx, c.MovieID, c.Ranking); err != nil {
					return err
				}
			}
			changed = len(changes)
			return nil
		})
		if err != nil {
			return nil, s.fail(ctx, op, err)
		}
	}

	s.opts.Events.LogRank(ctx, len(movies), changed, time.Since(start))
	if changed > 0 {
		util.DebugLog("Ranking pass: %d of %d movies moved", changed, len(movies))
	}

	return rank.BestFirst(movies), nil
}

// Get returns one stored movie
func (s *Service) Get(ctx context.Context, id int64) (*store.Movie, error) {
	m, err := s.store.GetMovie(ctx, id)
	if err != nil {
		return nil, classify("get", err)
	}
	return m, nil
}

// Search returns the catalog's candidates for a title, unfiltered
func (s *Service) Search(ctx context.Context, title string) ([]tmdb.Candidate, error) {
	const op = "search"

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError(op, "title", fmt.Errorf("title is required"))
	}

	start := time.Now()
	candidates, err := s.provider.Search(ctx, title)
	if err != nil {
		return nil, s.fail(ctx, op, &Error{Kind: KindProvider, Op: op, Err: err})
	}

	s.opts.Events.LogSearch(ctx, title, len(candidates), time.Since(start))
	return candidates, nil
}

// Import fetches a movie from the catalog by external id and stores it unrated.
// It returns the new local id.
func (s *Service) Import(ctx context.Context, externalID string) (int64, error) {
	const op = "import"

	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return 0, validationError(op, "id", fmt.Errorf("catalog id is required"))
	}

	details, err := s.provider.Details(ctx, externalID)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return 0, s.fail(ctx, op, err)
		}
		return 0, s.fail(ctx, op, &Error{Kind: KindProvider, Op: op, Err: err})
	}

	movie, err := ToMovie(details, s.provider.ImageURL)
	if err != nil {
		return 0, s.fail(ctx, op, fmt.Errorf("catalog movie %s: %w", externalID, err))
	}

	existing, err := s.store.GetMovieByTitleKey(ctx, movie.TitleKey)
	if err != nil {
		return 0, s.fail(ctx, op, err)
	}
	if existing != nil {
		return 0, s.duplicate(ctx, op, existing)
	}

	if err := s.store.InsertMovie(ctx, movie); err != nil {
		if KindOf(classify(op, err)) == KindDuplicate {
			// Lost a race with a concurrent import of the same title
			existing, lookupErr := s.store.GetMovieByTitleKey(ctx, movie.TitleKey)
			if lookupErr != nil {
				return 0, s.fail(ctx, op, fmt.Errorf("%w (lookup of conflicting title: %v)", err, lookupErr))
			}
			if existing != nil {
				return 0, s.duplicate(ctx, op, existing)
			}
		}
		return 0, s.fail(ctx, op, err)
	}

	s.opts.Events.LogImport(ctx, movie.ID, externalID, movie.Title)
	util.InfoLog("Imported %q (%d) as movie %d", movie.Title, movie.Year, movie.ID)

	return movie.ID, nil
}

// Edit sets the rating and review of a stored movie.
// ratingText must parse as a number in [MinRating, MaxRating].
func (s *Service) Edit(ctx context.Context, id int64, ratingText, reviewText string) error {
	const op = "edit"

	if _, err := s.store.GetMovie(ctx, id); err != nil {
		return s.fail(ctx, op, err)
	}

	rating, err := ParseRating(ratingText)
	if err != nil {
		return validationError(op, "rating", err)
	}

	review := strings.TrimSpace(reviewText)
	if utf8.RuneCountInString(review) > MaxFieldLength {
		return validationError(op, "review", ErrFieldTooLong)
	}

	if err := s.store.UpdateReview(ctx, id, rating, review); err != nil {
		return s.fail(ctx, op, err)
	}

	s.opts.Events.LogEdit(ctx, id, rating)
	return nil
}

// Delete removes a stored movie
func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "delete"

	movie, err := s.store.GetMovie(ctx, id)
	if err != nil {
		return s.fail(ctx, op, err)
	}

	if err := s.store.DeleteMovie(ctx, id); err != nil {
		return s.fail(ctx, op, err)
	}

	s.opts.Events.LogDelete(ctx, id, movie.Title)
	return nil
}

// ParseRating parses user-entered rating text
func ParseRating(text string) (float64, error) {
	rating, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(rating) || math.IsInf(rating, 0) {
		return 0, ErrInvalidRating
	}
	if rating < MinRating || rating > MaxRating {
		return 0, ErrRatingRange
	}
	return rating, nil
}

func (s *Service) duplicate(ctx context.Context, op string, existing *store.Movie) error {
	return s.fail(ctx, op, &Error{
		Kind:       KindDuplicate,
		Op:         op,
		Err:        fmt.Errorf("%q is already on the list: %w", existing.Title, util.ErrDuplicate),
		ExistingID: existing.ID,
	})
}

// fail classifies err and records everything but not-found in the event log
func (s *Service) fail(ctx context.Context, op string, err error) error {
	err = classify(op, err)
	if KindOf(err) != KindNotFound {
		s.opts.Events.LogError(ctx, op, err)
	}
	return err
}
