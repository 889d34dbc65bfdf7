package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/franz/top-movies/internal/library"
	"github.com/franz/top-movies/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Bulk import movies from a list of titles",
	Long: `Import every title listed in a text file, one per line.

For each title the movie database is searched and the first result is
imported. Titles already on the list are skipped. Blank lines and lines
starting with # are ignored. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

type importStats struct {
	imported int
	skipped  int
	notFound int
	failed   int
}

func runImport(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open title list: %w", err)
		}
		defer f.Close()
		in = f
	}

	titles, err := readTitles(in)
	if err != nil {
		return err
	}
	if len(titles) == 0 {
		util.WarnLog("No titles found in %s", args[0])
		return nil
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	util.InfoLog("Importing %d titles...", len(titles))
	start := time.Now()

	stats := importTitles(cmd.Context(), a.lib, titles)

	util.SuccessLog("Imported %d, skipped %d duplicates, %d not found, %d failed in %s",
		stats.imported, stats.skipped, stats.notFound, stats.failed, time.Since(start).Round(time.Millisecond))

	if stats.failed > 0 {
		return fmt.Errorf("%d titles failed to import", stats.failed)
	}
	return nil
}

func importTitles(ctx context.Context, lib *library.Service, titles []string) importStats {
	var bar *progressbar.ProgressBar
	if util.StdoutIsTerminal() && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(titles),
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("movies"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	var stats importStats
	for _, title := range titles {
		if ctx.Err() != nil {
			break
		}

		switch err := importTitle(ctx, lib, title); library.KindOf(err) {
		case "":
			stats.imported++
		case library.KindDuplicate:
			stats.skipped++
			util.DebugLog("Skipping %q: already on the list", title)
		case library.KindNotFound:
			stats.notFound++
			util.WarnLog("No match for %q", title)
		default:
			stats.failed++
			util.ErrorLog("Failed to import %q: %v", title, err)
		}

		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}
	return stats
}

// importTitle imports the first search result for title
func importTitle(ctx context.Context, lib *library.Service, title string) error {
	candidates, err := lib.Search(ctx, title)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return &library.Error{Kind: library.KindNotFound, Op: "import", Err: fmt.Errorf("no catalog match for %q", title)}
	}

	_, err = lib.Import(ctx, strconv.FormatInt(candidates[0].ID, 10))
	return err
}

func readTitles(r io.Reader) ([]string, error) {
	var titles []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		titles = append(titles, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read title list: %w", err)
	}
	return titles, nil
}
