// Package persistence provides the SQLite audit sink: an append-only
// record of steps, conversation messages, and produced activities. It is
// replay/debugging state only; orchestration decisions never read from it.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver

	"osgpt/pkg/logx"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS steps (
	id          TEXT PRIMARY KEY,
	task_id     TEXT NOT NULL,
	actor       TEXT NOT NULL,
	issue_id    INTEGER,
	stop_reason TEXT NOT NULL,
	output      TEXT NOT NULL,
	is_last     INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_steps_task ON steps(task_id, created_at);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	step_id    TEXT NOT NULL REFERENCES steps(id),
	role       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_step ON chat_messages(step_id, id);

CREATE TABLE IF NOT EXISTS step_activities (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	step_id    TEXT NOT NULL REFERENCES steps(id),
	issue_id   INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	actor      TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_issue ON step_activities(issue_id, id);
`

// StepRecord is one audit row for an executed step.
type StepRecord struct {
	ID         string
	TaskID     string
	Actor      string
	IssueID    int
	StopReason string
	Output     string
	IsLast     bool
	CreatedAt  time.Time
}

// ActivityRecord is one produced activity, flattened for audit.
type ActivityRecord struct {
	StepID    string
	IssueID   int
	Kind      string
	Actor     string
	Summary   string
	CreatedAt time.Time
}

// ChatRecord is one conversation message of a step.
type ChatRecord struct {
	StepID  string
	Role    string
	Name    string
	Content string
}

// Store is an audit sink over one SQLite file.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if needed) the database at path with WAL mode and
// applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("audit database ready: %s", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// NewStepID mints a step identifier.
func NewStepID() string { return uuid.NewString() }

// RecordStep appends one step row.
func (s *Store) RecordStep(ctx context.Context, rec *StepRecord) error {
	if rec.ID == "" {
		rec.ID = NewStepID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steps (id, task_id, actor, issue_id, stop_reason, output, is_last, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TaskID, rec.Actor, rec.IssueID, rec.StopReason, rec.Output, rec.IsLast, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording step %s: %w", rec.ID, err)
	}
	return nil
}

// RecordChat appends the conversation messages of a step.
func (s *Store) RecordChat(ctx context.Context, records []ChatRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting chat transaction: %w", err)
	}
	now := time.Now().UTC()
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (step_id, role, name, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			rec.StepID, rec.Role, rec.Name, rec.Content, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording chat message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chat messages: %w", err)
	}
	return nil
}

// RecordActivities appends the activities a step produced.
func (s *Store) RecordActivities(ctx context.Context, records []ActivityRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting activity transaction: %w", err)
	}
	for _, rec := range records {
		at := rec.CreatedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO step_activities (step_id, issue_id, kind, actor, summary, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.StepID, rec.IssueID, rec.Kind, rec.Actor, rec.Summary, at); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording activity: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing activities: %w", err)
	}
	return nil
}

// StepsForTask returns the steps of a task in execution order.
func (s *Store) StepsForTask(ctx context.Context, taskID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, actor, issue_id, stop_reason, output, is_last, created_at
		 FROM steps WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying steps for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.Actor, &rec.IssueID,
			&rec.StopReason, &rec.Output, &rec.IsLast, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning step row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActivitiesForIssue returns the audited activities of one issue in append
// order.
func (s *Store) ActivitiesForIssue(ctx context.Context, issueID int) ([]ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, issue_id, kind, actor, summary, created_at
		 FROM step_activities WHERE issue_id = ? ORDER BY id`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying activities for issue %d: %w", issueID, err)
	}
	defer rows.Close()

	var out []ActivityRecord
	for rows.Next() {
		var rec ActivityRecord
		if err := rows.Scan(&rec.StepID, &rec.IssueID, &rec.Kind, &rec.Actor, &rec.Summary, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
