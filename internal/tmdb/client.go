package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/franz/top-movies/internal/util"
	"golang.org/x/time/rate"
)

const (
	// DefaultSearchURL is the TMDB movie search endpoint
	DefaultSearchURL = "https://api.themoviedb.org/3/search/movie"

	// DefaultDetailsURL is the TMDB movie details endpoint; the movie id is appended
	DefaultDetailsURL = "https://api.themoviedb.org/3/movie"

	// DefaultImageBaseURL is prefixed to poster paths
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"

	// UserAgent identifies this application to the catalog
	UserAgent = "top-movies/1.0 (https://github.com/franz/top-movies)"

	// DefaultRateLimit is the client-side request budget per second
	DefaultRateLimit = 4.0
)

// Config holds provider endpoints and credentials
type Config struct {
	APIKey       string
	SearchURL    string
	DetailsURL   string
	ImageBaseURL string
	Language     string
	Timeout      time.Duration
	RateLimit    float64 // requests per second; <= 0 disables limiting
	Retry        *util.RetryConfig
	HTTPClient   *http.Client // optional, overrides Timeout
}

// Client handles movie catalog API requests with rate limiting and retries
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new catalog API client
func NewClient(cfg Config) *Client {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.DetailsURL == "" {
		cfg.DetailsURL = DefaultDetailsURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = DefaultImageBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = util.DefaultRetryConfig()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// SearchResponse is the body of a search call
type SearchResponse struct {
	Page         int         `json:"page"`
	Results      []Candidate `json:"results"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
}

// Candidate is one search hit, passed to the user unmodified
type Candidate struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	PosterPath       string  `json:"poster_path,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	Popularity       float64 `json:"popularity,omitempty"`
	VoteAverage      float64 `json:"vote_average,omitempty"`
	VoteCount        int     `json:"vote_count,omitempty"`
}

// Details is the body of a details call.
// Pointer fields distinguish a missing key from an empty value.
type Details struct {
	ID          int64   `json:"id"`
	Title       *string `json:"title"`
	ReleaseDate *string `json:"release_date"`
	PosterPath  *string `json:"poster_path"`
	Overview    *string `json:"overview"`
	Runtime     int     `json:"runtime,omitempty"`
	Tagline     string  `json:"tagline,omitempty"`
	IMDbID      string  `json:"imdb_id,omitempty"`
}

// StatusError reports a non-200 response from the catalog
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, body)
}

// Retryable reports whether the catalog may succeed on a later attempt
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// ErrNotFound is returned when the catalog has no movie for an id
var ErrNotFound = errors.New("movie not found in catalog")

// Search searches the catalog by title and returns every candidate
func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("query", query)

	util.DebugLog("Catalog API: searching for '%s'", query)

	var result SearchResponse
	if err := c.getJSON(ctx, c.cfg.SearchURL, params, &result); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	util.DebugLog("Catalog: %d results for '%s'", len(result.Results), query)
	return result.Results, nil
}

// Details retrieves full movie details by catalog id
func (c *Client) Details(ctx context.Context, id string) (*Details, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("catalog id cannot be empty")
	}

	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("language", c.cfg.Language)

	endpoint := strings.TrimSuffix(c.cfg.DetailsURL, "/") + "/" + url.PathEscape(id)

	util.DebugLog("Catalog API: looking up movie %s", id)

	var details Details
	if err := c.getJSON(ctx, endpoint, params, &details); err != nil {
		return nil, fmt.Errorf("details %s: %w", id, err)
	}

	return &details, nil
}

// ImageURL joins the configured image base with a poster path
func (c *Client) ImageURL(posterPath string) string {
	return JoinImageURL(c.cfg.ImageBaseURL, posterPath)
}

// JoinImageURL concatenates base and path, collapsing a doubled slash at the seam
func JoinImageURL(base, path string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/") {
		return base + path[1:]
	}
	return base + path
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	return util.Retry(ctx, c.cfg.Retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.doGet(ctx, endpoint, params, out)
	}, "GET "+endpoint)
}

func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", redactError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w: %w", util.ErrMalformedResponse, err)
	}

	return nil
}

// redactError masks the api_key query parameter in transport errors,
// whose text otherwise carries the full request URL.
func redactError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: redactURL(ue.URL), Err: ue.Err}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable url]"
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
