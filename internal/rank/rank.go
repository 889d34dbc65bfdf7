// Package rank derives list positions from ratings.
//
// Movies are put in ascending rating order (unrated first, ties by id) and
// the i-th of N receives ranking N-i, so the best-rated movie is ranked 1.
package rank

import (
	"sort"

	"github.com/franz/top-movies/internal/store"
)

// Change records a ranking that differs from what is stored
type Change struct {
	MovieID int64
	Ranking int
}

// Assign sorts movies into ascending rating order, sets Ranking on every
// movie and returns the movies whose ranking changed.
func Assign(movies []*store.Movie) []Change {
	SortByRating(movies)

	n := len(movies)
	var changes []Change

	for i, m := range movies {
		r := n - i
		if m.Ranking == nil || *m.Ranking != r {
			changes = append(changes, Change{MovieID: m.ID, Ranking: r})
		}
		m.Ranking = &r
	}

	return changes
}

// Less orders movies the way the store does: unrated first, then by rating, then by id
func Less(a, b *store.Movie) bool {
	if a.Rated() != b.Rated() {
		return !a.Rated()
	}
	if a.Rated() && *a.Rating != *b.Rating {
		return *a.Rating < *b.Rating
	}
	return a.ID < b.ID
}

// SortByRating sorts movies in place, lowest rated first
func SortByRating(movies []*store.Movie) {
	sort.SliceStable(movies, func(i, j int) bool {
		return Less(movies[i], movies[j])
	})
}

// BestFirst returns a copy of ranked movies ordered by ranking, 1 first
func BestFirst(movies []*store.Movie) []*store.Movie {
	out := make([]*store.Movie, len(movies))
	for i, m := range movies {
		out[len(movies)-1-i] = m
	}
	return out
}
