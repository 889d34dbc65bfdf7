package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/top-movies/internal/config"
	"github.com/franz/top-movies/internal/store"
	"github.com/franz/top-movies/internal/tmdb"
	"github.com/franz/top-movies/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure topmovies can operate correctly.

This command checks:
- Configuration keys (API key, secret key, endpoints)
- SQLite version compatibility
- Database accessibility and integrity
- Event log directory permissions
- Movie database reachability (skip with --offline)

Use this command to troubleshoot issues before serving the app.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().Bool("offline", false, "Skip the movie database reachability check")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	offline, _ := cmd.Flags().GetBool("offline")

	util.InfoLog("=== Top Movies Doctor - System Diagnostics ===")

	cfg, err := loadConfig()
	if err != nil {
		util.ErrorLog("[✗] Configuration: %v", err)
		return fmt.Errorf("system diagnostics failed")
	}

	results := []checkResult{}
	results = append(results, checkConfig(cfg)...)
	results = append(results, checkSQLite())
	results = append(results, checkDatabase(cmd.Context(), cfg.DatabaseURI))
	results = append(results, checkEventLogDir(cfg.EventLogDir))
	if !offline {
		results = append(results, checkProvider(cmd.Context(), cfg))
	}

	util.InfoLog("=== Diagnostic Results ===")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.InfoLog("%s", line)
		}
	}

	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before serving the app.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed! Ready to serve.")
	}

	return nil
}

// checkConfig reports missing credentials
func checkConfig(cfg *config.Config) []checkResult {
	var results []checkResult

	if err := cfg.ValidateProvider(); err != nil {
		results = append(results, checkResult{name: "Movie database config", error: true, message: err.Error()})
	} else {
		results = append(results, checkResult{name: "Movie database config", message: cfg.Provider.SearchURL})
	}

	if len(cfg.SecretKey) < 16 {
		results = append(results, checkResult{
			name:    "Secret key",
			warning: true,
			message: "shorter than 16 characters ('serve' will refuse to start)",
		})
	} else {
		results = append(results, checkResult{name: "Secret key", message: "set"})
	}

	return results
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is pure Go, so there is no system library to find
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies the database is reachable and intact
func checkDatabase(ctx context.Context, uri string) checkResult {
	var size string
	if path := store.SQLitePath(uri); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return checkResult{
					name:    "Database",
					message: fmt.Sprintf("%s (will be created on first run)", path),
				}
			}
			return checkResult{
				name:    "Database",
				error:   true,
				message: fmt.Sprintf("cannot access %s: %v", path, err),
			}
		}
		if !info.Mode().IsRegular() {
			return checkResult{
				name:    "Database",
				error:   true,
				message: fmt.Sprintf("%s is not a regular file", path),
			}
		}
		size = humanize.Bytes(uint64(info.Size()))
	}

	db, err := store.Open(uri)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open: %v", err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(ctx); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	count, _ := db.CountMovies(ctx)
	msg := fmt.Sprintf("%s, %d movies", db.Driver(), count)
	if size != "" {
		msg = fmt.Sprintf("%s (%s, %d movies)", store.SQLitePath(uri), size, count)
	}

	return checkResult{name: "Database", message: msg}
}

// checkEventLogDir verifies the event log directory is writable
func checkEventLogDir(dir string) checkResult {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{
			name:    "Event log directory",
			warning: true,
			message: fmt.Sprintf("cannot create %s: %v (events will not be recorded)", dir, err),
		}
	}

	testFile := filepath.Join(dir, ".topmovies-write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return checkResult{
			name:    "Event log directory",
			warning: true,
			message: fmt.Sprintf("%s is not writable: %v", dir, err),
		}
	}
	os.Remove(testFile)

	return checkResult{name: "Event log directory", message: dir}
}

// checkProvider runs one search against the movie database
func checkProvider(ctx context.Context, cfg *config.Config) checkResult {
	if cfg.Provider.APIKey == "" {
		return checkResult{name: "Movie database", warning: true, message: "skipped, no API key"}
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	tc := cfg.TMDB()
	tc.Retry = util.NoRetry()

	start := time.Now()
	results, err := tmdb.NewClient(tc).Search(ctx, "Casablanca")
	if err != nil {
		return checkResult{
			name:    "Movie database",
			error:   true,
			message: fmt.Sprintf("search failed: %v", err),
		}
	}

	return checkResult{
		name:    "Movie database",
		message: fmt.Sprintf("reachable (%d results in %s)", len(results), time.Since(start).Round(time.Millisecond)),
	}
}
