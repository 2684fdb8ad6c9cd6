// Package selector picks the next worker and issue via a single model
// call, outside the chained-call loop.
package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"osgpt/pkg/gateway"
	"osgpt/pkg/logx"
	"osgpt/pkg/prompt"
	"osgpt/pkg/schema"
)

// TerminateToken is the reply that means no further work is needed.
const TerminateToken = "<TERMINATE>"

// ParseRetries bounds how often an unparseable selection is re-asked.
const ParseRetries = 3

// SelectionParseError reports that the model's selection output could not
// be parsed after the retry bound.
type SelectionParseError struct {
	Attempts int
	LastRaw  string
}

func (e *SelectionParseError) Error() string {
	return fmt.Sprintf("could not parse worker selection after %d attempts, last reply: %q", e.Attempts, e.LastRaw)
}

// Selection is the model's choice of who acts next and where.
type Selection struct {
	Worker *schema.User
	Issue  *schema.Issue
}

// Selector asks the model which member should act next.
type Selector struct {
	client  gateway.Client
	builder *prompt.Builder
	logger  *logx.Logger
}

// New creates a selector.
func New(client gateway.Client, builder *prompt.Builder, logger *logx.Logger) *Selector {
	return &Selector{client: client, builder: builder, logger: logger}
}

type selectionReply struct {
	NextPerson string `json:"next_person"`
	IssueID    int    `json:"issue_id"`
}

// Select returns the next worker and issue, or nil if the model terminated
// the step. Unparseable replies are re-asked up to ParseRetries times, then
// surface as *SelectionParseError.
func (s *Selector) Select(ctx context.Context, ws *schema.Workspace, project *schema.Project) (*Selection, error) {
	messages, err := s.builder.Selection(ws, project)
	if err != nil {
		return nil, fmt.Errorf("building selection prompt: %w", err)
	}

	var lastRaw string
	for attempt := 1; attempt <= ParseRetries; attempt++ {
		decision, err := s.client.Decide(ctx, gateway.NewRequest(messages, nil))
		if err != nil {
			return nil, fmt.Errorf("worker selection call failed: %w", err)
		}

		raw := strings.TrimSpace(decision.Text)
		lastRaw = raw
		if raw == TerminateToken {
			return nil, nil
		}

		selection, parseErr := s.parse(raw, project)
		if parseErr == nil {
			s.logger.Info("selected %s for issue #%d", selection.Worker.Name, selection.Issue.ID)
			return selection, nil
		}
		s.logger.Warn("selection reply not usable (attempt %d/%d): %v", attempt, ParseRetries, parseErr)

		messages = append(messages,
			gateway.AssistantMessage(raw),
			gateway.UserMessage("", fmt.Sprintf(
				"That reply was not usable: %v. Reply with exactly one JSON object of the form "+
					`{"next_person": "<member name>", "issue_id": <issue id>} or %s.`, parseErr, TerminateToken)),
		)
	}

	return nil, &SelectionParseError{Attempts: ParseRetries, LastRaw: lastRaw}
}

func (s *Selector) parse(raw string, project *schema.Project) (*Selection, error) {
	// Models wrap JSON in prose or fences; extract the first object.
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found")
	}

	var reply selectionReply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if reply.NextPerson == "" {
		return nil, fmt.Errorf("missing next_person")
	}
	if reply.IssueID == 0 {
		return nil, fmt.Errorf("missing issue_id")
	}

	worker, err := project.MemberByName(reply.NextPerson)
	if err != nil {
		return nil, err
	}
	issue, err := project.IssueByID(reply.IssueID)
	if err != nil {
		return nil, err
	}
	for _, blockerID := range issue.BlockedBy() {
		if blocker, err := project.IssueByID(blockerID); err == nil && blocker.Status() != schema.StatusClosed {
			return nil, fmt.Errorf("issue #%d is blocked by issue #%d, which is not closed yet", issue.ID, blockerID)
		}
	}
	return &Selection{Worker: worker, Issue: issue}, nil
}
