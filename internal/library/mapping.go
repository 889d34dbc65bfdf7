package library

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/franz/top-movies/internal/store"
	"github.com/franz/top-movies/internal/tmdb"
	"golang.org/x/text/unicode/norm"
)

// MaxFieldLength bounds every free-text column of a movie record, in characters
const MaxFieldLength = 250

// ToMovie maps a catalog details payload onto a new, unrated movie record.
// imageURL turns the poster path into an absolute URL.
func ToMovie(d *tmdb.Details, imageURL func(string) string) (*store.Movie, error) {
	if d == nil {
		return nil, ErrMissingField
	}

	title := deref(d.Title)
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title", ErrMissingField)
	}
	if d.ReleaseDate == nil || *d.ReleaseDate == "" {
		return nil, fmt.Errorf("%w: release_date", ErrMissingField)
	}
	if d.PosterPath == nil {
		return nil, fmt.Errorf("%w: poster_path", ErrMissingField)
	}
	if d.Overview == nil {
		return nil, fmt.Errorf("%w: overview", ErrMissingField)
	}

	year, err := ParseYear(*d.ReleaseDate)
	if err != nil {
		return nil, err
	}

	title = truncateRunes(strings.TrimSpace(title), MaxFieldLength)

	return &store.Movie{
		Title:       title,
		TitleKey:    TitleKey(title),
		Year:        year,
		Description: truncateRunes(*d.Overview, MaxFieldLength),
		ImgURL:      imageURL(*d.PosterPath),
	}, nil
}

// ParseYear returns the calendar year of a YYYY-MM-DD release date
func ParseYear(releaseDate string) (int, error) {
	first, _, _ := strings.Cut(strings.TrimSpace(releaseDate), "-")
	year, err := strconv.Atoi(first)
	if err != nil {
		return 0, fmt.Errorf("%w: release_date %q has no year", ErrMissingField, releaseDate)
	}
	return year, nil
}

// TitleKey normalizes a title for uniqueness checks: NFC with surrounding
// space trimmed and inner runs of whitespace collapsed. Case is kept, so
// "It" and "IT" are different movies.
func TitleKey(title string) string {
	return strings.Join(strings.Fields(norm.NFC.String(title)), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
