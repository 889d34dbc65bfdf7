package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventSearch EventType = "search"
	EventImport EventType = "import"
	EventEdit   EventType = "edit"
	EventDelete EventType = "delete"
	EventRank   EventType = "rank"
	EventError  EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents one change to, or query against, the movie list
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	RequestID  string            `json:"request_id,omitempty"`
	MovieID    int64             `json:"movie_id,omitempty"`
	ExternalID string            `json:"external_id,omitempty"`
	Title      string            `json:"title,omitempty"`
	Query      string            `json:"query,omitempty"`
	Rating     *float64          `json:"rating,omitempty"`
	Results    int               `json:"results,omitempty"`
	Changed    int               `json:"changed,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"`
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

type requestIDKey struct{}

// WithRequestID tags ctx so events logged with it carry the id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or ""
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Append so two processes started in the same second share a file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogSearch logs a catalog search
func (l *EventLogger) LogSearch(ctx context.Context, query string, results int, duration time.Duration) error {
	return l.Log(&Event{
		Level:     LevelDebug,
		Event:     EventSearch,
		RequestID: RequestID(ctx),
		Query:     query,
		Results:   results,
		Duration:  duration.Milliseconds(),
	})
}

// LogImport logs a movie imported from the catalog
func (l *EventLogger) LogImport(ctx context.Context, movieID int64, externalID, title string) error {
	return l.Log(&Event{
		Level:      LevelInfo,
		Event:      EventImport,
		RequestID:  RequestID(ctx),
		MovieID:    movieID,
		ExternalID: externalID,
		Title:      title,
	})
}

// LogEdit logs a rating/review change
func (l *EventLogger) LogEdit(ctx context.Context, movieID int64, rating float64) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventEdit,
		RequestID: RequestID(ctx),
		MovieID:   movieID,
		Rating:    &rating,
	})
}

// LogDelete logs a removed movie
func (l *EventLogger) LogDelete(ctx context.Context, movieID int64, title string) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventDelete,
		RequestID: RequestID(ctx),
		MovieID:   movieID,
		Title:     title,
	})
}

// LogRank logs a ranking pass; passes that changed nothing are debug-level
func (l *EventLogger) LogRank(ctx context.Context, total, changed int, duration time.Duration) error {
	level := LevelDebug
	if changed > 0 {
		level = LevelInfo
	}

	return l.Log(&Event{
		Level:     level,
		Event:     EventRank,
		RequestID: RequestID(ctx),
		Results:   total,
		Changed:   changed,
		Duration:  duration.Milliseconds(),
	})
}

// LogError logs a failed operation
func (l *EventLogger) LogError(ctx context.Context, op string, err error) error {
	return l.Log(&Event{
		Level:     LevelError,
		Event:     EventError,
		RequestID: RequestID(ctx),
		Error:     err.Error(),
		Extra: map[string]string{
			"op": op,
		},
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}

// ReadEvents loads every event from a JSONL file, skipping undecodable lines
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		events = append(events, e)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}
