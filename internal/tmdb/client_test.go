package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/franz/top-movies/internal/util"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		APIKey:       "test-key",
		SearchURL:    srv.URL + "/search/movie",
		DetailsURL:   srv.URL + "/movie",
		ImageBaseURL: "https://img/",
		Retry:        &util.RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond},
	})
}

func TestSearchSendsQueryAndReturnsAllCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("expected api_key test-key, got %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "The Matrix" {
			t.Errorf("expected query 'The Matrix', got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"page":1,"results":[
			{"id":603,"title":"The Matrix","release_date":"1999-03-31","poster_path":"/m.jpg"},
			{"id":604,"title":"The Matrix Reloaded","release_date":"2003-05-15"},
			{"id":605,"title":"The Matrix Revolutions"}
		],"total_results":3}`))
	})

	results, err := client.Search(context.Background(), "  The Matrix ")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(results))
	}
	if results[0].ID != 603 || results[0].ReleaseDate != "1999-03-31" {
		t.Errorf("unexpected first candidate: %+v", results[0])
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Search(context.Background(), "   "); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestDetailsPathAndLanguage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("expected path /movie/603, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("language"); got != "en-US" {
			t.Errorf("expected language en-US, got %q", got)
		}
		w.Write([]byte(`{"id":603,"title":"The Matrix","release_date":"1999-03-31",
			"poster_path":"/abc.jpg","overview":"A hacker learns the truth."}`))
	})

	d, err := client.Details(context.Background(), "603")
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if d.Title == nil || *d.Title != "The Matrix" {
		t.Errorf("unexpected title %v", d.Title)
	}
	if d.PosterPath == nil || *d.PosterPath != "/abc.jpg" {
		t.Errorf("unexpected poster path %v", d.PosterPath)
	}
}

func TestDetailsMissingFieldsStayNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"title":"Untitled"}`))
	})

	d, err := client.Details(context.Background(), "1")
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if d.ReleaseDate != nil || d.Overview != nil {
		t.Errorf("expected missing fields to decode as nil, got %+v", d)
	}
}

func TestDetailsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_code":34}`, http.StatusNotFound)
	})

	_, err := client.Details(context.Background(), "999999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"results":[]}`))
	})

	results, err := client.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"status_message":"Invalid API key"}`, http.StatusUnauthorized)
	})

	_, err := client.Search(context.Background(), "anything")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestTransportErrorHidesAPIKey(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	util.SetLogger(zap.New(core))
	t.Cleanup(func() { util.SetLogger(nil) })

	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	client := NewClient(Config{
		APIKey:     "SUPERSECRETKEY",
		SearchURL:  endpoint + "/search",
		DetailsURL: endpoint + "/movie",
		Retry:      &util.RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
	})

	_, err := client.Search(context.Background(), "alien")
	if err == nil {
		t.Fatal("expected an error from a closed server")
	}
	if strings.Contains(err.Error(), "SUPERSECRETKEY") {
		t.Errorf("error leaks the api key: %v", err)
	}
	if !strings.Contains(err.Error(), "api_key=REDACTED") {
		t.Errorf("expected the redacted url in the error, got %v", err)
	}

	_, err = client.Details(context.Background(), "603")
	if err == nil || strings.Contains(err.Error(), "SUPERSECRETKEY") {
		t.Errorf("details error leaks the api key: %v", err)
	}

	for _, entry := range logs.All() {
		if strings.Contains(entry.Message, "SUPERSECRETKEY") {
			t.Errorf("log entry leaks the api key: %s", entry.Message)
		}
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://api.example/3/search/movie?api_key=k&query=heat")
	if strings.Contains(got, "api_key=k") || !strings.Contains(got, "query=heat") {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := redactURL("https://api.example/3/movie/1"); got != "https://api.example/3/movie/1" {
		t.Errorf("url without key should pass through, got %q", got)
	}
}

func TestMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	_, err := client.Details(context.Background(), "1")
	if !errors.Is(err, util.ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestJoinImageURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://img/", "/abc.jpg", "https://img/abc.jpg"},
		{"https://image.tmdb.org/t/p/w500", "/abc.jpg", "https://image.tmdb.org/t/p/w500/abc.jpg"},
		{"https://img/", "abc.jpg", "https://img/abc.jpg"},
	}

	for _, tt := range tests {
		if got := JoinImageURL(tt.base, tt.path); got != tt.want {
			t.Errorf("JoinImageURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}
