package gateway

import "context"

type tunedClient struct {
	next        Client
	maxTokens   int
	temperature float32
	topP        float32
}

// WithTuning overrides the default sampling parameters on every request.
// Zero values keep whatever the request already carries.
func WithTuning(maxTokens int, temperature, topP float32) Middleware {
	return func(next Client) Client {
		return &tunedClient{next: next, maxTokens: maxTokens, temperature: temperature, topP: topP}
	}
}

func (c *tunedClient) ModelName() string { return c.next.ModelName() }

func (c *tunedClient) Decide(ctx context.Context, req Request) (Decision, error) {
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	if c.temperature > 0 {
		req.Temperature = c.temperature
	}
	if c.topP > 0 {
		req.TopP = c.topP
	}
	return c.next.Decide(ctx, req)
}
