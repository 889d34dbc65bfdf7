package library

import (
	"errors"
	"fmt"

	"github.com/franz/top-movies/internal/tmdb"
	"github.com/franz/top-movies/internal/util"
)

// Kind classifies a failed library operation
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindDuplicate  Kind = "duplicate"
	KindProvider   Kind = "provider"
	KindStorage    Kind = "storage"
)

var (
	// ErrInvalidRating is returned when rating text does not parse as a number
	ErrInvalidRating = errors.New("rating must be a number")

	// ErrRatingRange is returned for ratings outside 0..10
	ErrRatingRange = fmt.Errorf("rating must be between %g and %g", MinRating, MaxRating)

	// ErrFieldTooLong is returned for review text over MaxFieldLength
	ErrFieldTooLong = fmt.Errorf("must be at most %d characters", MaxFieldLength)

	// ErrMissingField is returned when the catalog omits a field the record needs
	ErrMissingField = errors.New("catalog response is missing a required field")
)

// Error is the single error type returned by Service operations
type Error struct {
	Kind  Kind
	Op    string
	Field string // form field at fault, validation errors only
	Err   error

	// ExistingID is the stored movie a duplicate import collided with
	ExistingID int64
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindStorage for errors not produced by this package.
// A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindStorage
}

func validationError(op, field string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Err: err}
}

// classify wraps a store or provider error with the matching Kind
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var le *Error
	if errors.As(err, &le) {
		return err
	}

	kind := KindStorage
	switch {
	case errors.Is(err, util.ErrNotFound), errors.Is(err, tmdb.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, util.ErrDuplicate):
		kind = KindDuplicate
	case errors.Is(err, util.ErrMalformedResponse), errors.Is(err, ErrMissingField):
		kind = KindProvider
	default:
		var statusErr *tmdb.StatusError
		if errors.As(err, &statusErr) || util.IsRetryableError(err) {
			kind = KindProvider
		}
	}

	return &Error{Kind: kind, Op: op, Err: err}
}
