package orch

import (
	"context"
	"fmt"
	"strings"

	"osgpt/pkg/ability"
	"osgpt/pkg/config"
	"osgpt/pkg/eventlog"
	"osgpt/pkg/gateway"
	"osgpt/pkg/loop"
	"osgpt/pkg/metrics"
	"osgpt/pkg/persistence"
	"osgpt/pkg/schema"
)

// StepResult is what one orchestration step produced.
type StepResult struct {
	Output string
	IsLast bool
}

// ExecuteStep advances the simulation by one turn. When input is non-empty
// it is filed as a new issue from the operator before the dispatcher runs.
// IsLast reports whether every issue in the project is closed.
func (o *Orchestrator) ExecuteStep(ctx context.Context, taskID, input string) (*StepResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	stepID := persistence.NewStepID()
	_ = o.events.Write(eventlog.NewEvent(eventlog.EventStepStarted, "orchestrator", "step started").
		WithStep(taskID, stepID))

	if input = strings.TrimSpace(input); input != "" {
		issue := o.project.CreateIssue(input, schema.IssueTypeTask, o.operator)
		o.logger.Info("filed issue #%d from operator input", issue.ID)
		_ = o.events.Write(eventlog.NewEvent(eventlog.EventIssueActivity, o.operator.Name,
			fmt.Sprintf("filed issue #%d: %s", issue.ID, issue.Summary)).
			WithStep(taskID, stepID).WithIssue(issue.ID))
	}

	selection, err := o.selector.Select(ctx, o.ws, o.project)
	if err != nil {
		return nil, fmt.Errorf("selecting next worker: %w", err)
	}
	if selection == nil {
		out := "The dispatcher found no further work to hand out."
		o.finishStep(ctx, taskID, &persistence.StepRecord{
			ID: stepID, TaskID: taskID, Actor: "orchestrator",
			StopReason: "no_work", Output: out, IsLast: o.project.AllClosed(),
		}, input, nil)
		return &StepResult{Output: out, IsLast: o.project.AllClosed()}, nil
	}

	worker, issue := selection.Worker, selection.Issue
	_ = o.events.Write(eventlog.NewEvent(eventlog.EventSelection, worker.Name,
		fmt.Sprintf("selected for issue #%d", issue.ID)).
		WithStep(taskID, stepID).WithIssue(issue.ID))

	var output string
	var produced []schema.Activity
	stopReason := "status_advanced"

	switch issue.Status() {
	case schema.StatusOpen, schema.StatusReopened:
		output, produced, err = o.startWork(worker, issue)
	case schema.StatusInProgress:
		output, produced, stopReason, err = o.runTurn(ctx, taskID, stepID, worker, issue,
			fmt.Sprintf("Resolve issue #%d. Do the work with your abilities, then change the issue status to %q.",
				issue.ID, schema.StatusResolved), "")
	case schema.StatusResolved:
		output, produced, stopReason, err = o.review(ctx, taskID, stepID, issue)
	default:
		output = fmt.Sprintf("Issue #%d is already %s, nothing to do.", issue.ID, issue.Status())
		stopReason = "no_work"
	}
	if err != nil {
		return nil, err
	}

	isLast := o.project.AllClosed()
	record := &persistence.StepRecord{
		ID: stepID, TaskID: taskID, Actor: worker.Name, IssueID: issue.ID,
		StopReason: stopReason, Output: output, IsLast: isLast,
	}
	o.finishStep(ctx, taskID, record, input, produced)
	o.recorder.ObserveStep(worker.Name, stopReason)

	return &StepResult{Output: output, IsLast: isLast}, nil
}

// startWork moves an Open or Reopened issue to In Progress and assigns the
// worker. No model call is needed for this stage.
func (o *Orchestrator) startWork(worker *schema.User, issue *schema.Issue) (string, []schema.Activity, error) {
	change, err := o.project.Workflow.ChangeStatus(issue, worker, schema.StatusInProgress)
	if err != nil {
		return "", nil, fmt.Errorf("starting work on issue #%d: %w", issue.ID, err)
	}
	produced := []schema.Activity{change}

	if issue.Assignee == nil || issue.Assignee.Name != worker.Name {
		assignment := schema.NewAssignmentChange(worker, issue.Assignee, worker)
		issue.Assignee = worker
		issue.AddActivity(assignment)
		produced = append(produced, assignment)
	}

	o.logger.Info("%s started work on issue #%d", worker.Name, issue.ID)
	return fmt.Sprintf("%s picked up issue #%d and moved it to %s.",
		worker.Name, issue.ID, schema.StatusInProgress), produced, nil
}

// runTurn runs the chained-call loop for worker on issue. A non-empty policy
// overrides the actor's configured stopping policy for this turn.
func (o *Orchestrator) runTurn(ctx context.Context, taskID, stepID string, worker *schema.User, issue *schema.Issue, instruction string, policy loop.Policy) (string, []schema.Activity, string, error) {
	ac, ok := o.actors[worker.Name]
	if !ok {
		return "", nil, "", fmt.Errorf("no actor configured for %s", worker.Name)
	}
	registry, ok := o.registries[worker.Name]
	if !ok {
		return "", nil, "", fmt.Errorf("no abilities registered for %s", worker.Name)
	}

	client := gateway.Wrap(o.client, metrics.WithRecorder(o.recorder, o.tokens, worker.Name))
	logger := o.logger.WithActorID(ac.ID)
	run := loop.New(client, registry, o.builder, logger)

	actx := ability.Ctx{Agent: worker, Workspace: o.ws, Project: o.project, Issue: issue}
	cfg := loopConfig(ac, func(name string, success bool) {
		o.recorder.ObserveAbility(name, worker.Name, success)
		_ = o.events.Write(eventlog.NewEvent(eventlog.EventAbilityCall, worker.Name,
			fmt.Sprintf("dispatched %s", name)).
			WithStep(taskID, stepID).WithIssue(issue.ID).WithField("success", success))
	})
	if policy != "" {
		cfg.Policy = policy
	}
	result, err := run.Run(ctx, actx, instruction, cfg)
	if err != nil {
		return "", nil, "", fmt.Errorf("running turn for %s on issue #%d: %w", worker.Name, issue.ID, err)
	}
	if result.Err != nil {
		o.logger.Warn("turn for %s ended on model error: %v", worker.Name, result.Err)
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("%s worked on issue #%d (%d model calls, stopped: %s).",
		worker.Name, issue.ID, result.ModelCalls, result.Reason))
	for _, act := range result.Activities {
		lines = append(lines, "  "+act.String())
	}
	return strings.Join(lines, "\n"), result.Activities, string(result.Reason), nil
}

// review hands a resolved issue to the project leader. The workflow reaches
// Closed only through Reopened, so acceptance is a two-step status chain;
// the turn runs under the comment policy so the chain is not cut short, and
// the leader's verdict comment ends it.
func (o *Orchestrator) review(ctx context.Context, taskID, stepID string, issue *schema.Issue) (string, []schema.Activity, string, error) {
	leader := o.project.Leader()
	if leader == nil {
		return "", nil, "", fmt.Errorf("project %s has no leader to review issue #%d", o.project.Key, issue.ID)
	}
	return o.runTurn(ctx, taskID, stepID, leader, issue, fmt.Sprintf(
		"Issue #%d has been resolved. Review the work. To accept it, change the status to %q and "+
			"then to %q, and leave a short comment with your verdict. To send it back, change the "+
			"status to %q and add a comment explaining what is missing.",
		issue.ID, schema.StatusReopened, schema.StatusClosed, schema.StatusReopened), loop.PolicyComment)
}

func loopConfig(ac *config.ActorConfig, observer func(string, bool)) loop.Config {
	cfg := loop.DefaultConfig()
	cfg.MaxChainedCalls = ac.MaxChainedCalls
	cfg.ForceFunction = ac.ForceFunction
	if ac.StoppingPolicy != "" {
		cfg.Policy = loop.Policy(ac.StoppingPolicy)
	}
	cfg.Observer = observer
	return cfg
}

// finishStep writes the step to the audit sinks. Audit failures are logged,
// not fatal: they must never lose the in-memory progress of the step.
func (o *Orchestrator) finishStep(ctx context.Context, taskID string, record *persistence.StepRecord, input string, produced []schema.Activity) {
	if err := o.store.RecordStep(ctx, record); err != nil {
		o.logger.Error("recording step: %v", err)
	}

	chat := []persistence.ChatRecord{}
	if input != "" {
		chat = append(chat, persistence.ChatRecord{StepID: record.ID, Role: "user", Name: "Operator", Content: input})
	}
	chat = append(chat, persistence.ChatRecord{StepID: record.ID, Role: "assistant", Name: record.Actor, Content: record.Output})
	if err := o.store.RecordChat(ctx, chat); err != nil {
		o.logger.Error("recording chat: %v", err)
	}

	if len(produced) > 0 {
		records := make([]persistence.ActivityRecord, 0, len(produced))
		for _, act := range produced {
			records = append(records, persistence.ActivityRecord{
				StepID:    record.ID,
				IssueID:   record.IssueID,
				Kind:      string(act.Kind()),
				Actor:     act.Actor().Name,
				Summary:   act.String(),
				CreatedAt: act.OccurredAt(),
			})
			_ = o.events.Write(eventlog.NewEvent(eventlog.EventIssueActivity, act.Actor().Name, act.String()).
				WithStep(taskID, record.ID).WithIssue(record.IssueID).WithField("kind", string(act.Kind())))
		}
		if err := o.store.RecordActivities(ctx, records); err != nil {
			o.logger.Error("recording activities: %v", err)
		}
	}

	_ = o.events.Write(eventlog.NewEvent(eventlog.EventStepFinished, record.Actor, record.Output).
		WithStep(taskID, record.ID).WithIssue(record.IssueID).
		WithField("stop_reason", record.StopReason).WithField("is_last", record.IsLast))
}
