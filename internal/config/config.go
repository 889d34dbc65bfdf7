// Package config loads the application settings once at startup.
//
// Precedence, highest first: command-line flag, TOPMOVIES_* environment
// variable, config file, default.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/franz/top-movies/internal/store"
	"github.com/franz/top-movies/internal/tmdb"
	"github.com/franz/top-movies/internal/util"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override
const EnvPrefix = "TOPMOVIES"

// Keys as they appear in config.json / config.yaml
const (
	KeyDatabaseURI      = "database_uri"
	KeySecretKey        = "secret_key"
	KeyAPIKey           = "moviedb_api_key"
	KeySearchURL        = "movie_db_search_url"
	KeyDetailsURL       = "movie_db_details_url"
	KeyImageURL         = "movie_db_img_url"
	KeyListen           = "listen"
	KeyEventLogDir      = "event_log_dir"
	KeyProviderTimeout  = "provider.timeout"
	KeyProviderRate     = "provider.rate_limit"
	KeyProviderAttempts = "provider.max_attempts"
	KeyRankingPersist   = "ranking.persist"
	KeyVerbose          = "verbose"
	KeyQuiet            = "quiet"
	KeyNoColor          = "no_color"
)

// Config is the full application configuration
type Config struct {
	DatabaseURI string
	SecretKey   string
	Listen      string
	EventLogDir string

	Provider ProviderConfig

	// PersistRanking writes the computed ranking back on every listing
	PersistRanking bool

	Verbose bool
	Quiet   bool
}

// ProviderConfig holds the movie catalog settings
type ProviderConfig struct {
	APIKey       string
	SearchURL    string
	DetailsURL   string
	ImageBaseURL string
	Timeout      time.Duration
	RateLimit    float64
	MaxAttempts  int
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabaseURI, "sqlite:///movies.db")
	v.SetDefault(KeySearchURL, tmdb.DefaultSearchURL)
	v.SetDefault(KeyDetailsURL, tmdb.DefaultDetailsURL)
	v.SetDefault(KeyImageURL, tmdb.DefaultImageBaseURL)
	v.SetDefault(KeyListen, ":5000")
	v.SetDefault(KeyEventLogDir, "artifacts")
	v.SetDefault(KeyProviderTimeout, 10*time.Second)
	v.SetDefault(KeyProviderRate, tmdb.DefaultRateLimit)
	v.SetDefault(KeyProviderAttempts, 3)
	v.SetDefault(KeyRankingPersist, true)
}

// BindEnv makes every key overridable as TOPMOVIES_<KEY>, with dots as underscores
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads a Config out of v. Defaults must already be registered.
func Load(v *viper.Viper) *Config {
	return &Config{
		DatabaseURI: v.GetString(KeyDatabaseURI),
		SecretKey:   v.GetString(KeySecretKey),
		Listen:      v.GetString(KeyListen),
		EventLogDir: v.GetString(KeyEventLogDir),
		Provider: ProviderConfig{
			APIKey:       v.GetString(KeyAPIKey),
			SearchURL:    v.GetString(KeySearchURL),
			DetailsURL:   v.GetString(KeyDetailsURL),
			ImageBaseURL: v.GetString(KeyImageURL),
			Timeout:      v.GetDuration(KeyProviderTimeout),
			RateLimit:    v.GetFloat64(KeyProviderRate),
			MaxAttempts:  v.GetInt(KeyProviderAttempts),
		},
		PersistRanking: v.GetBool(KeyRankingPersist),
		Verbose:        v.GetBool(KeyVerbose),
		Quiet:          v.GetBool(KeyQuiet),
	}
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if _, _, err := store.ParseURI(c.DatabaseURI); err != nil {
		return fmt.Errorf("%s: %w: %v", KeyDatabaseURI, util.ErrInvalidConfig, err)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("%s must be positive: %w", KeyProviderTimeout, util.ErrInvalidConfig)
	}
	if c.Provider.MaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1: %w", KeyProviderAttempts, util.ErrInvalidConfig)
	}
	return nil
}

// ValidateProvider checks the settings needed to reach the catalog
func (c *Config) ValidateProvider() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("%s is not set: %w", KeyAPIKey, util.ErrInvalidConfig)
	}
	for key, u := range map[string]string{
		KeySearchURL:  c.Provider.SearchURL,
		KeyDetailsURL: c.Provider.DetailsURL,
		KeyImageURL:   c.Provider.ImageBaseURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must be an http(s) URL, got %q: %w", key, u, util.ErrInvalidConfig)
		}
	}
	return nil
}

// ValidateServer checks the settings needed to serve the web app
func (c *Config) ValidateServer() error {
	if len(c.SecretKey) < 16 {
		return fmt.Errorf("%s must be at least 16 characters: %w", KeySecretKey, util.ErrInvalidConfig)
	}
	return c.ValidateProvider()
}

// TMDB returns the catalog client configuration
func (c *Config) TMDB() tmdb.Config {
	retry := util.DefaultRetryConfig()
	retry.MaxAttempts = c.Provider.MaxAttempts

	return tmdb.Config{
		APIKey:       c.Provider.APIKey,
		SearchURL:    c.Provider.SearchURL,
		DetailsURL:   c.Provider.DetailsURL,
		ImageBaseURL: c.Provider.ImageBaseURL,
		Timeout:      c.Provider.Timeout,
		RateLimit:    c.Provider.RateLimit,
		Retry:        retry,
	}
}
