// Package eventlog provides structured event tracking for the office
// simulation: every step, model decision, and issue activity is appended as
// one JSON line to daily rotated files.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType identifies the kind of a logged event.
type EventType string

const (
	EventStepStarted   EventType = "step_started"
	EventStepFinished  EventType = "step_finished"
	EventAbilityCall   EventType = "ability_call"
	EventIssueActivity EventType = "issue_activity"
	EventSelection     EventType = "selection"
)

// Event is one JSONL record.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Type      EventType      `json:"type"`
	TaskID    string         `json:"task_id,omitempty"`
	StepID    string         `json:"step_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	IssueID   int            `json:"issue_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, actor, message string) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Actor:     actor,
		Message:   message,
	}
}

// WithIssue attaches an issue id to the event.
func (e *Event) WithIssue(issueID int) *Event {
	e.IssueID = issueID
	return e
}

// WithStep attaches task and step ids to the event.
func (e *Event) WithStep(taskID, stepID string) *Event {
	e.TaskID = taskID
	e.StepID = stepID
	return e
}

// WithField attaches an extra structured field to the event.
func (e *Event) WithField(key string, value any) *Event {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// Writer appends events to daily rotated JSONL files.
type Writer struct {
	logDir      string
	currentFile *os.File
	currentDate string
	mu          sync.Mutex
}

// NewWriter creates an event log writer with daily rotation in logDir.
func NewWriter(logDir string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &Writer{logDir: logDir}
	if err := writer.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}
	return writer, nil
}

// Write appends one event to the current log file, rotating first if the day
// changed.
func (w *Writer) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if _, err := w.currentFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

func (w *Writer) rotateIfNeeded() error {
	newDate := time.Now().Format("2006-01-02")
	if w.currentFile == nil || w.currentDate != newDate {
		return w.rotate(newDate)
	}
	return nil
}

func (w *Writer) rotate(newDate string) error {
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current log file: %w", err)
		}
	}

	path := filepath.Join(w.logDir, fmt.Sprintf("events-%s.jsonl", newDate))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w.currentFile = file
	w.currentDate = newDate
	return nil
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile != nil {
		err := w.currentFile.Close()
		w.currentFile = nil
		if err != nil {
			return fmt.Errorf("failed to close event log file: %w", err)
		}
	}
	return nil
}

// CurrentLogFile returns the path of the currently active log file.
func (w *Writer) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return ""
	}
	return filepath.Join(w.logDir, fmt.Sprintf("events-%s.jsonl", w.currentDate))
}

// ReadEvents reads and parses events from a log file.
func ReadEvents(logFilePath string) ([]*Event, error) {
	data, err := os.ReadFile(logFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var events []*Event
	line := []byte{}
	decode := func(raw []byte) error {
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("failed to parse event: %w", err)
		}
		events = append(events, &event)
		return nil
	}
	for _, b := range data {
		if b == '\n' {
			if len(line) > 0 {
				if err := decode(line); err != nil {
					return nil, err
				}
				line = []byte{}
			}
			continue
		}
		line = append(line, b)
	}
	if len(line) > 0 {
		if err := decode(line); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// ListLogFiles returns all event log files in the log directory.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "events-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}
