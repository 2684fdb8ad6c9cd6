package schema

import (
	"fmt"
)

// ErrInvalidTransition is returned by ChangeStatus when no registered
// transition covers the requested move.
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition: %s → %s", e.From, e.To)
}

// Transition is one permitted edge in the workflow graph.
type Transition struct {
	Name string
	From Status
	To   Status
}

// Workflow is the set of permitted status transitions. It is the sole
// mutation path for Issue.status.
type Workflow struct {
	transitions []Transition
}

// NewWorkflow builds a workflow from the given transitions.
func NewWorkflow(transitions ...Transition) *Workflow {
	return &Workflow{transitions: transitions}
}

// DefaultWorkflow returns the standard five-status lifecycle:
// Open→In Progress, In Progress→Resolved, Resolved→Reopened, and from
// Reopened either back to In Progress or on to Closed. Closed is the only
// terminal status and is reachable from Reopened alone, so closing an issue
// always passes through a review reopen first.
func DefaultWorkflow() *Workflow {
	return NewWorkflow(
		Transition{Name: "Start Progress", From: StatusOpen, To: StatusInProgress},
		Transition{Name: "Mark Resolved", From: StatusInProgress, To: StatusResolved},
		Transition{Name: "Reopen", From: StatusResolved, To: StatusReopened},
		Transition{Name: "Restart Progress", From: StatusReopened, To: StatusInProgress},
		Transition{Name: "Close", From: StatusReopened, To: StatusClosed},
	)
}

// Allows reports whether a transition from→to is registered.
func (w *Workflow) Allows(from, to Status) bool {
	for _, t := range w.transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// Transitions returns a copy of the workflow edges.
func (w *Workflow) Transitions() []Transition {
	out := make([]Transition, len(w.transitions))
	copy(out, w.transitions)
	return out
}

// ChangeStatus moves the issue to the requested status if a registered
// transition permits it, appending a StatusChange activity attributed to the
// acting user. On an unpermitted move it returns *ErrInvalidTransition and
// leaves the issue untouched.
func (w *Workflow) ChangeStatus(issue *Issue, actor *User, to Status) (*StatusChange, error) {
	from := issue.status
	if !w.Allows(from, to) {
		return nil, &ErrInvalidTransition{From: from, To: to}
	}
	change := &StatusChange{record: newRecord(actor), OldStatus: from, NewStatus: to}
	issue.status = to
	issue.AddActivity(change)
	return change, nil
}
