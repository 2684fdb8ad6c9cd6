package metrics

import (
	"context"
	"time"

	"osgpt/pkg/gateway"
	"osgpt/pkg/gateway/gwerrors"
)

type instrumentedClient struct {
	next     gateway.Client
	recorder *Recorder
	tokens   *TokenCounter
	actor    string
}

// WithRecorder returns gateway middleware that records request counts,
// durations, and estimated token usage for the given actor.
func WithRecorder(recorder *Recorder, tokens *TokenCounter, actor string) gateway.Middleware {
	return func(next gateway.Client) gateway.Client {
		return &instrumentedClient{next: next, recorder: recorder, tokens: tokens, actor: actor}
	}
}

func (c *instrumentedClient) ModelName() string { return c.next.ModelName() }

func (c *instrumentedClient) Decide(ctx context.Context, req gateway.Request) (gateway.Decision, error) {
	start := time.Now()
	decision, err := c.next.Decide(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.recorder.ObserveRequest(c.ModelName(), c.actor, 0, 0, false, gwerrors.TypeOf(err).String(), duration)
		return decision, err
	}

	prompt := 0
	for _, msg := range req.Messages {
		prompt += c.tokens.Count(msg.Content)
	}
	completion := c.tokens.Count(decision.Text)
	if decision.Call != nil {
		completion += c.tokens.Count(decision.Call.Name)
	}

	c.recorder.ObserveRequest(c.ModelName(), c.actor, prompt, completion, true, "", duration)
	return decision, nil
}
