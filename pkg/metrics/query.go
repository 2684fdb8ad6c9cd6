package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ActorUsage is aggregated model usage for one actor.
type ActorUsage struct {
	Actor            string `json:"actor"`
	Requests         int64  `json:"requests"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

// QueryService queries aggregated usage from a Prometheus server scraping the
// recorder's endpoint.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a query service against prometheusURL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}

// ActorUsage retrieves aggregated token usage for one actor.
func (q *QueryService) ActorUsage(ctx context.Context, actor string) (*ActorUsage, error) {
	usage := &ActorUsage{Actor: actor}

	requests, err := q.scalar(ctx, fmt.Sprintf(`sum(osgpt_model_requests_total{actor=%q})`, actor))
	if err != nil {
		return nil, err
	}
	usage.Requests = requests

	prompt, err := q.scalar(ctx, fmt.Sprintf(`sum(osgpt_model_tokens_total{actor=%q, type="prompt"})`, actor))
	if err != nil {
		return nil, err
	}
	usage.PromptTokens = prompt

	completion, err := q.scalar(ctx, fmt.Sprintf(`sum(osgpt_model_tokens_total{actor=%q, type="completion"})`, actor))
	if err != nil {
		return nil, err
	}
	usage.CompletionTokens = completion

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage, nil
}

// AllActors lists the actors that have recorded requests.
func (q *QueryService) AllActors(ctx context.Context) ([]string, error) {
	result, _, err := q.queryAPI.Query(ctx, `group by (actor) (osgpt_model_requests_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query actors: %w", err)
	}

	var actors []string
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			if actor, ok := sample.Metric["actor"]; ok {
				actors = append(actors, string(actor))
			}
		}
	}
	return actors, nil
}
