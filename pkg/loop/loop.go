// Package loop runs the chained function-calling conversation an agent has
// with the model while working on one issue. Termination is driven by
// observable state change, not by the model deciding to stop: the loop ends
// when an ability produces activities, when the model goes quiet, or at the
// call bound.
package loop

import (
	"context"
	"fmt"
	"strings"

	"osgpt/pkg/ability"
	"osgpt/pkg/gateway"
	"osgpt/pkg/logx"
	"osgpt/pkg/prompt"
	"osgpt/pkg/schema"
)

// Policy decides which produced activities end the loop.
type Policy string

const (
	// PolicyActivity stops on any non-empty set of produced activities.
	PolicyActivity Policy = "activity"
	// PolicyComment stops only when a produced activity is a Comment.
	PolicyComment Policy = "comment"
)

// StopReason says why a loop run ended.
type StopReason string

const (
	StopMaxCallsReached  StopReason = "max_calls_reached"
	StopActivityProduced StopReason = "activity_produced"
	StopEmptyReply       StopReason = "empty_reply"
	StopModelError       StopReason = "model_error"
)

// TerminationSentinel is the text reply an agent may emit to end its turn
// without further changes.
const TerminationSentinel = "<TERMINATE>"

// Config bounds one loop run. MaxChainedCalls is the hard ceiling on model
// invocations; ForceFunction rejects free-text replies with a corrective
// nudge instead of posting them as comments.
type Config struct {
	MaxChainedCalls int
	ForceFunction   bool
	Policy          Policy

	// Observer, when set, is told about every ability dispatch.
	Observer func(ability string, success bool)
}

// DefaultConfig is a sensible per-turn bound for most actors.
func DefaultConfig() Config {
	return Config{MaxChainedCalls: 10, ForceFunction: false, Policy: PolicyActivity}
}

// Result is the outcome of one loop run. Err is only set when Reason is
// StopModelError; activities produced before the failure are still
// returned, since they are already committed to the issue.
type Result struct {
	Activities []schema.Activity
	Reason     StopReason
	ModelCalls int
	Err        error
}

// Loop wires a model client, an ability registry, and the prompt builder
// into the chained-call state machine.
type Loop struct {
	client   gateway.Client
	registry *ability.Registry
	invoker  *ability.Invoker
	builder  *prompt.Builder
	logger   *logx.Logger
}

// New creates a loop.
func New(client gateway.Client, registry *ability.Registry, builder *prompt.Builder, logger *logx.Logger) *Loop {
	return &Loop{
		client:   client,
		registry: registry,
		invoker:  ability.NewInvoker(registry, logger),
		builder:  builder,
		logger:   logger,
	}
}

// Run executes one agent turn on the issue in actx. instruction is the
// task framing appended to the context ("Resolve this issue", "Review the
// resolution").
func (l *Loop) Run(ctx context.Context, actx ability.Ctx, instruction string, cfg Config) (*Result, error) {
	if cfg.MaxChainedCalls <= 0 {
		return nil, fmt.Errorf("max chained calls must be positive, got %d", cfg.MaxChainedCalls)
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyActivity
	}

	messages, err := l.builder.Build(actx.Agent, actx.Workspace, actx.Project, actx.Issue, instruction)
	if err != nil {
		return nil, fmt.Errorf("building prompt context: %w", err)
	}

	result := &Result{}
	specs := l.registry.Specs()
	var prevText string

	for result.ModelCalls < cfg.MaxChainedCalls {
		req := gateway.NewRequest(messages, specs)
		req.ForceFunction = cfg.ForceFunction

		decision, err := l.client.Decide(ctx, req)
		result.ModelCalls++
		if err != nil {
			l.logger.Error("model call failed on issue #%d: %v", actx.Issue.ID, err)
			result.Reason = StopModelError
			result.Err = err
			return result, nil
		}

		switch {
		case decision.IsFunctionCall():
			call := decision.Call
			messages = append(messages, gateway.AssistantMessage(fmt.Sprintf("Calling %s.", call.Name)))

			res := l.invoker.Invoke(actx, call.Name, ability.Args(call.Arguments))
			messages = append(messages, gateway.FunctionMessage(call.Name, res.Message))
			if cfg.Observer != nil {
				cfg.Observer(call.Name, res.Success)
			}

			if res.Success && len(res.Activities) > 0 {
				result.Activities = append(result.Activities, res.Activities...)
				if stopsOn(cfg.Policy, res.Activities) {
					result.Reason = StopActivityProduced
					return result, nil
				}
			}

		case decision.IsEmpty():
			result.Reason = StopEmptyReply
			return result, nil

		default:
			text := strings.TrimSpace(decision.Text)
			if text == TerminationSentinel || text == prevText {
				// A repeated reply means the model is spinning; treat it
				// like the sentinel and end the turn.
				if len(result.Activities) > 0 {
					result.Reason = StopActivityProduced
				} else {
					result.Reason = StopEmptyReply
				}
				return result, nil
			}
			prevText = text

			if cfg.ForceFunction {
				nudge, err := l.builder.FunctionsOnly()
				if err != nil {
					return nil, err
				}
				messages = append(messages, gateway.AssistantMessage(text), nudge)
			} else {
				comment := schema.NewComment(actx.Agent, text)
				actx.Issue.AddActivity(comment)
				result.Activities = append(result.Activities, comment)
				messages = append(messages, gateway.AssistantMessage(text))
			}
		}

		// The model's next decision must see the mutations this iteration
		// made to shared state.
		messages = append(messages, gateway.UserMessage("",
			"Current workspace state:\n\n"+actx.Workspace.Display()))
	}

	result.Reason = StopMaxCallsReached
	return result, nil
}

func stopsOn(policy Policy, activities []schema.Activity) bool {
	switch policy {
	case PolicyComment:
		for _, act := range activities {
			if act.Kind() == schema.KindComment {
				return true
			}
		}
		return false
	default:
		return len(activities) > 0
	}
}
