package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"osgpt/pkg/gateway/gwerrors"
)

// OpenAIClient implements Client on the OpenAI Responses API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a raw OpenAI client; retry and metrics wrap it at
// a higher level.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// ModelName implements Client.
func (o *OpenAIClient) ModelName() string { return o.model }

// Decide implements Client.
func (o *OpenAIClient) Decide(ctx context.Context, req Request) (Decision, error) {
	// The Responses API takes a single input string; fold the role-tagged
	// conversation into one transcript.
	var input string
	for _, msg := range flatten(req.Messages) {
		switch msg.Role {
		case RoleSystem:
			input += fmt.Sprintf("System: %s\n\n", msg.Content)
		case RoleAssistant:
			input += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		default:
			input += msg.Content + "\n\n"
		}
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(req.MaxTokens)),
		Temperature:     openai.Float(float64(req.Temperature)),
		TopP:            openai.Float(float64(req.TopP)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}

	if len(req.Functions) > 0 {
		tools := make([]responses.ToolUnionParam, len(req.Functions))
		for i := range req.Functions {
			fn := &req.Functions[i]
			properties := make(map[string]any, len(fn.InputSchema.Properties))
			for name, prop := range fn.InputSchema.Properties {
				propMap := map[string]any{"type": prop.Type, "description": prop.Description}
				if len(prop.Enum) > 0 {
					propMap["enum"] = prop.Enum
				}
				properties[name] = propMap
			}
			tools[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        fn.Name,
					Description: openai.String(fn.Description),
					Parameters: openai.FunctionParameters(map[string]any{
						"type":       "object",
						"properties": properties,
						"required":   fn.InputSchema.Required,
					}),
				},
			}
		}
		params.Tools = tools
		if req.ForceFunction {
			params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsRequired),
			}
		}
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return Decision{}, gwerrors.NewWithCause(classifyByMessage(err), err, "OpenAI Responses API failed")
	}
	if resp == nil {
		return Decision{}, gwerrors.New(gwerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	var decision Decision
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" || decision.Call != nil {
			continue
		}
		fc := item.AsFunctionCall()
		var args map[string]any
		if fc.Arguments != "" {
			if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
				continue
			}
		}
		decision.Call = &FunctionCall{ID: fc.ID, Name: fc.Name, Arguments: args}
	}
	if decision.Call == nil {
		decision.Text = resp.OutputText()
	}
	return decision, nil
}

// classifyByMessage maps a generic SDK error to a type via status-code
// extraction, shared by providers without structured errors.
func classifyByMessage(err error) gwerrors.ErrorType {
	switch statusCodeOf(err.Error()) {
	case 401, 403:
		return gwerrors.ErrorTypeAuth
	case 429:
		return gwerrors.ErrorTypeRateLimit
	case 400:
		return gwerrors.ErrorTypeBadPrompt
	case 500, 502, 503, 504:
		return gwerrors.ErrorTypeTransient
	default:
		return gwerrors.ErrorTypeUnknown
	}
}
