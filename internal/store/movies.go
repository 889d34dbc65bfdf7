package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franz/top-movies/internal/util"
	"github.com/lib/pq"
)

const movieColumns = `id, title, title_key, year, description, rating, ranking,
       COALESCE(review, ''), img_url, created_at`

// Unrated movies sort first so they land at the bottom of the ranking;
// ties fall back to insertion order.
const byRatingAsc = `ORDER BY rating IS NOT NULL, rating ASC, id ASC`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (*Movie, error) {
	m := &Movie{}
	var rating sql.NullFloat64
	var ranking sql.NullInt64

	err := row.Scan(
		&m.ID, &m.Title, &m.TitleKey, &m.Year, &m.Description, &rating, &ranking,
		&m.Review, &m.ImgURL, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rating.Valid {
		v := rating.Float64
		m.Rating = &v
	}
	if ranking.Valid {
		v := int(ranking.Int64)
		m.Ranking = &v
	}

	return m, nil
}

// InsertMovie inserts a new movie and sets its ID.
// A title that already exists yields an error wrapping util.ErrDuplicate.
func (s *Store) InsertMovie(ctx context.Context, m *Movie) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO movies (title, title_key, year, description, rating, review, img_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		m.Title, m.TitleKey, m.Year, m.Description,
		nullFloat(m.Rating), nullString(m.Review), m.ImgURL, m.CreatedAt,
	}

	var err error
	if s.driver == DriverPostgres {
		err = s.db.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&m.ID)
	} else {
		var result sql.Result
		result, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			m.ID, err = result.LastInsertId()
		}
	}

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("movie %q: %w", m.Title, util.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert movie: %w", err)
	}

	return nil
}

// GetMovie retrieves a movie by its local ID
func (s *Store) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+movieColumns+` FROM movies WHERE id = ?`), id)

	m, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("movie %d: %w", id, util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}

	return m, nil
}

// GetMovieByTitleKey retrieves a movie by its normalized title, or nil if none exists
func (s *Store) GetMovieByTitleKey(ctx context.Context, titleKey string) (*Movie, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+movieColumns+` FROM movies WHERE title_key = ?`), titleKey)

	m, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movie by title: %w", err)
	}

	return m, nil
}

// UpdateReview overwrites the rating and review of a movie
func (s *Store) UpdateReview(ctx context.Context, id int64, rating float64, review string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE movies SET rating = ?, review = ?
		WHERE id = ?
	`), rating, nullString(review), id)
	if err != nil {
		return fmt.Errorf("failed to update movie review: %w", err)
	}

	return expectAffected(result, id)
}

// DeleteMovie removes a movie by its local ID
func (s *Store) DeleteMovie(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM movies WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete movie: %w", err)
	}

	return expectAffected(result, id)
}

// CountMovies returns the number of stored movies
func (s *Store) CountMovies(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return count, nil
}

// ListByRating returns all movies in ascending rating order, unrated first
func (s *Store) ListByRating(ctx context.Context) ([]*Movie, error) {
	return listByRating(ctx, s.db)
}

// ListByRating is the transactional form of Store.ListByRating
func (t *Tx) ListByRating(ctx context.Context) ([]*Movie, error) {
	return listByRating(ctx, t.tx)
}

// SetRanking stores the derived ranking of one movie
func (t *Tx) SetRanking(ctx context.Context, id int64, ranking int) error {
	_, err := t.tx.ExecContext(ctx, t.store.rebind(`UPDATE movies SET ranking = ? WHERE id = ?`), ranking, id)
	if err != nil {
		return fmt.Errorf("failed to set ranking for movie %d: %w", id, err)
	}
	return nil
}

func listByRating(ctx context.Context, q queryer) ([]*Movie, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies `+byRatingAsc)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	var movies []*Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, m)
	}

	return movies, rows.Err()
}

func expectAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("movie %d: %w", id, util.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
