package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/franz/top-movies/internal/util"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "movies.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestMovie(t *testing.T, s *Store, title string) *Movie {
	t.Helper()

	m := &Movie{
		Title:       title,
		TitleKey:    title,
		Year:        1999,
		Description: "A movie about " + title,
		ImgURL:      "https://img/" + title + ".jpg",
	}
	if err := s.InsertMovie(context.Background(), m); err != nil {
		t.Fatalf("failed to insert %q: %v", title, err)
	}
	return m
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		driver  Driver
		dsn     string
		wantErr bool
	}{
		{uri: "sqlite:///movies.db", driver: DriverSQLite, dsn: sqliteDSN("movies.db")},
		{uri: "sqlite:////var/lib/movies.db", driver: DriverSQLite, dsn: sqliteDSN("/var/lib/movies.db")},
		{uri: "movies.db", driver: DriverSQLite, dsn: sqliteDSN("movies.db")},
		{uri: "postgres://u@localhost/movies", driver: DriverPostgres, dsn: "postgres://u@localhost/movies"},
		{uri: "postgresql://u@localhost/movies", driver: DriverPostgres, dsn: "postgresql://u@localhost/movies"},
		{uri: "", wantErr: true},
		{uri: "sqlite://", wantErr: true},
		{uri: "mysql://localhost/movies", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			driver, dsn, err := ParseURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if driver != tt.driver {
				t.Errorf("expected driver %s, got %s", tt.driver, driver)
			}
			if dsn != tt.dsn {
				t.Errorf("expected dsn %q, got %q", tt.dsn, dsn)
			}
		})
	}
}

func TestSQLitePath(t *testing.T) {
	tests := map[string]string{
		"sqlite:///movies.db":          "movies.db",
		"sqlite:////var/lib/movies.db": "/var/lib/movies.db",
		"movies.db":                    "movies.db",
		"postgres://u@localhost/db":    "",
	}

	for uri, want := range tests {
		if got := SQLitePath(uri); got != want {
			t.Errorf("SQLitePath(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	got := pg.rebind("UPDATE movies SET rating = ?, review = ? WHERE id = ?")
	want := "UPDATE movies SET rating = $1, review = $2 WHERE id = $3"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	lite := &Store{driver: DriverSQLite}
	if q := lite.rebind("WHERE id = ?"); q != "WHERE id = ?" {
		t.Errorf("sqlite query should be unchanged, got %q", q)
	}
}

func TestStoreOpenAndMigrate(t *testing.T) {
	s := openTestStore(t)

	version, err := s.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	var count int
	err = s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_movies_rating'").Scan(&count)
	if err != nil {
		t.Fatalf("failed to query index: %v", err)
	}
	if count != 1 {
		t.Error("expected idx_movies_rating to exist (schema v2)")
	}

	if err := s.CheckIntegrity(context.Background()); err != nil {
		t.Errorf("integrity check failed: %v", err)
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	insertTestMovie(t, s, "Heat")
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	count, err := s.CountMovies(context.Background())
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 movie after reopen, got %d", count)
	}
}

func TestMovieInsertAndRetrieve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := insertTestMovie(t, s, "Phone Booth")
	if m.ID == 0 {
		t.Fatal("expected movie ID to be set after insert")
	}

	got, err := s.GetMovie(ctx, m.ID)
	if err != nil {
		t.Fatalf("failed to get movie: %v", err)
	}
	if got.Title != "Phone Booth" || got.Year != 1999 {
		t.Errorf("unexpected movie: %+v", got)
	}
	if got.Rating != nil || got.Ranking != nil || got.Review != "" {
		t.Errorf("expected rating, ranking and review to be unset, got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	byKey, err := s.GetMovieByTitleKey(ctx, "Phone Booth")
	if err != nil {
		t.Fatalf("failed to get by title key: %v", err)
	}
	if byKey == nil || byKey.ID != m.ID {
		t.Errorf("expected lookup by title key to find movie %d, got %+v", m.ID, byKey)
	}

	missing, err := s.GetMovieByTitleKey(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown title key, got %+v, %v", missing, err)
	}
}

func TestInsertDuplicateTitle(t *testing.T) {
	s := openTestStore(t)
	insertTestMovie(t, s, "Avatar")

	dup := &Movie{Title: "Avatar", TitleKey: "avatar-2", Year: 2009, Description: "again", ImgURL: "x"}
	err := s.InsertMovie(context.Background(), dup)
	if !errors.Is(err, util.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetMovieNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetMovie(context.Background(), 42)
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateReview(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := insertTestMovie(t, s, "Drive")

	if err := s.UpdateReview(ctx, m.ID, 7.5, "Loved the soundtrack"); err != nil {
		t.Fatalf("failed to update review: %v", err)
	}

	got, err := s.GetMovie(ctx, m.ID)
	if err != nil {
		t.Fatalf("failed to get movie: %v", err)
	}
	if got.Rating == nil || *got.Rating != 7.5 {
		t.Errorf("expected rating 7.5, got %v", got.Rating)
	}
	if got.Review != "Loved the soundtrack" {
		t.Errorf("unexpected review %q", got.Review)
	}

	if err := s.UpdateReview(ctx, 999, 1, ""); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing movie, got %v", err)
	}
}

func TestDeleteMovie(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := insertTestMovie(t, s, "Alien")

	if err := s.DeleteMovie(ctx, m.ID+100); !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if count, _ := s.CountMovies(ctx); count != 1 {
		t.Errorf("expected count unchanged at 1, got %d", count)
	}

	if err := s.DeleteMovie(ctx, m.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if count, _ := s.CountMovies(ctx); count != 0 {
		t.Errorf("expected count 0 after delete, got %d", count)
	}
}

func TestListByRatingOrdersUnratedFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	high := insertTestMovie(t, s, "High")
	unrated := insertTestMovie(t, s, "Unrated")
	low := insertTestMovie(t, s, "Low")
	tieA := insertTestMovie(t, s, "TieA")
	tieB := insertTestMovie(t, s, "TieB")

	for id, r := range map[int64]float64{high.ID: 9, low.ID: 2, tieA.ID: 5, tieB.ID: 5} {
		if err := s.UpdateReview(ctx, id, r, ""); err != nil {
			t.Fatalf("failed to rate: %v", err)
		}
	}

	movies, err := s.ListByRating(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}

	want := []int64{unrated.ID, low.ID, tieA.ID, tieB.ID, high.ID}
	if len(movies) != len(want) {
		t.Fatalf("expected %d movies, got %d", len(want), len(movies))
	}
	for i, m := range movies {
		if m.ID != want[i] {
			t.Errorf("position %d: expected movie %d, got %d (%s)", i, want[i], m.ID, m.Title)
		}
	}
}

func TestTransactionSetRanking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m := insertTestMovie(t, s, "Arrival")

	err := s.Transaction(ctx, func(tx *Tx) error {
		return tx.SetRanking(ctx, m.ID, 1)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	got, _ := s.GetMovie(ctx, m.ID)
	if got.Ranking == nil || *got.Ranking != 1 {
		t.Errorf("expected ranking 1, got %v", got.Ranking)
	}

	// A failing callback must roll back its writes
	boom := errors.New("boom")
	err = s.Transaction(ctx, func(tx *Tx) error {
		if err := tx.SetRanking(ctx, m.ID, 7); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	got, _ = s.GetMovie(ctx, m.ID)
	if got.Ranking == nil || *got.Ranking != 1 {
		t.Errorf("expected ranking to stay 1 after rollback, got %v", got.Ranking)
	}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) FROM schema_version`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(currentSchemaVersion))

	s, err := OpenDB(db, DriverSQLite)
	if err != nil {
		t.Fatalf("failed to open mock store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return s, mock
}

func TestListByRatingPropagatesQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	boom := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectQuery("FROM movies ORDER BY rating IS NOT NULL").WillReturnError(boom)
	mock.ExpectRollback()

	err := s.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.ListByRating(ctx)
		return err
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateReviewPropagatesExecError(t *testing.T) {
	s, mock := newMockStore(t)

	boom := errors.New("database is locked")
	mock.ExpectExec("UPDATE movies SET rating").WithArgs(7.5, "ok", int64(3)).WillReturnError(boom)

	err := s.UpdateReview(context.Background(), 3, 7.5, "ok")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
