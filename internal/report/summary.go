package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/top-movies/internal/store"
)

// SummaryReport describes the ranked list and recent activity
type SummaryReport struct {
	GeneratedAt time.Time

	// List statistics
	Total         int
	Rated         int
	Unrated       int
	AverageRating float64
	Ranked        []*store.Movie // best first

	// Activity from the event log
	Imports   int
	Edits     int
	Deletes   int
	Errors    int
	TopErrors []ErrorSummary

	// Metadata
	DatabasePath string
	EventLogPath string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// GenerateSummaryReport builds a report from a best-first ranked list and an optional event log
func GenerateSummaryReport(ranked []*store.Movie, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
		Ranked:       ranked,
		Total:        len(ranked),
		TopErrors:    make([]ErrorSummary, 0),
	}

	var sum float64
	for _, m := range ranked {
		if m.Rated() {
			report.Rated++
			sum += *m.Rating
		} else {
			report.Unrated++
		}
	}
	if report.Rated > 0 {
		report.AverageRating = sum / float64(report.Rated)
	}

	if eventLogPath != "" {
		events, err := ReadEvents(eventLogPath)
		if err != nil {
			return nil, err
		}
		report.addActivity(events, 10)
	}

	return report, nil
}

func (r *SummaryReport) addActivity(events []Event, limit int) {
	errorCounts := make(map[string]int)

	for _, e := range events {
		switch e.Event {
		case EventImport:
			r.Imports++
		case EventEdit:
			r.Edits++
		case EventDelete:
			r.Deletes++
		case EventError:
			r.Errors++
			if e.Error != "" {
				errorCounts[e.Error]++
			}
		}
	}

	for msg, count := range errorCounts {
		r.TopErrors = append(r.TopErrors, ErrorSummary{Error: msg, Count: count})
	}

	sort.Slice(r.TopErrors, func(i, j int) bool {
		if r.TopErrors[i].Count != r.TopErrors[j].Count {
			return r.TopErrors[i].Count > r.TopErrors[j].Count
		}
		return r.TopErrors[i].Error < r.TopErrors[j].Error
	})

	if len(r.TopErrors) > limit {
		r.TopErrors = r.TopErrors[:limit]
	}
}

// RenderMarkdown formats the report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Top Movies - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Movies | %d |\n", report.Total))
	md.WriteString(fmt.Sprintf("| Rated | %d |\n", report.Rated))
	if report.Unrated > 0 {
		md.WriteString(fmt.Sprintf("| Awaiting a rating | %d |\n", report.Unrated))
	}
	if report.Rated > 0 {
		md.WriteString(fmt.Sprintf("| Average rating | %.1f |\n", report.AverageRating))
	}
	md.WriteString("\n")

	if len(report.Ranked) > 0 {
		md.WriteString("## Ranking\n\n")
		md.WriteString("| # | Title | Year | Rating | Added |\n")
		md.WriteString("|---|-------|------|--------|-------|\n")
		for _, m := range report.Ranked {
			rank := "-"
			if m.Ranking != nil {
				rank = fmt.Sprintf("%d", *m.Ranking)
			}
			rating := "unrated"
			if m.Rated() {
				rating = fmt.Sprintf("%.1f", *m.Rating)
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s |\n",
				rank, escapeCell(m.Title), m.Year, rating, humanize.Time(m.CreatedAt)))
		}
		md.WriteString("\n")
	}

	if report.Imports+report.Edits+report.Deletes+report.Errors > 0 {
		md.WriteString("## Activity\n\n")
		md.WriteString("| Event | Count |\n")
		md.WriteString("|-------|-------|\n")
		md.WriteString(fmt.Sprintf("| Imported | %d |\n", report.Imports))
		md.WriteString(fmt.Sprintf("| Rated / reviewed | %d |\n", report.Edits))
		md.WriteString(fmt.Sprintf("| Deleted | %d |\n", report.Deletes))
		if report.Errors > 0 {
			md.WriteString(fmt.Sprintf("| Errors | %d |\n", report.Errors))
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, e := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", e.Count, escapeCell(e.Error)))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by top-movies*\n")

	return md.String()
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// escapeCell keeps pipes in titles from breaking the table
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
