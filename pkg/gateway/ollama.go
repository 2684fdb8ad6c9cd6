package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"osgpt/pkg/ability"
	"osgpt/pkg/gateway/gwerrors"
)

// OllamaClient implements Client against a local Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates a client for the Ollama server at hostURL
// (e.g. "http://localhost:11434").
func NewOllamaClient(hostURL, model string) *OllamaClient {
	parsed, err := url.Parse(hostURL)
	if err != nil {
		parsed, _ = url.Parse("http://localhost:11434")
	}
	return &OllamaClient{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}
}

// ModelName implements Client.
func (o *OllamaClient) ModelName() string { return o.model }

// Decide implements Client.
func (o *OllamaClient) Decide(ctx context.Context, req Request) (Decision, error) {
	messages := make([]api.Message, 0, len(req.Messages))
	for _, msg := range flatten(req.Messages) {
		messages = append(messages, api.Message{Role: string(msg.Role), Content: msg.Content})
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"top_p":       req.TopP,
			"num_predict": req.MaxTokens,
		},
	}
	if len(req.Functions) > 0 {
		chatReq.Tools = convertFunctionsToOllama(req.Functions)
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return Decision{}, classifyOllamaError(err)
	}

	var decision Decision
	if len(response.Message.ToolCalls) > 0 {
		call := response.Message.ToolCalls[0]
		id := call.ID
		if id == "" {
			id = "call_0"
		}
		decision.Call = &FunctionCall{
			ID:        id,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments.ToMap(),
		}
	} else {
		decision.Text = response.Message.Content
	}
	return decision, nil
}

func convertFunctionsToOllama(functions []ability.FunctionSpec) api.Tools {
	tools := make(api.Tools, len(functions))
	for i := range functions {
		fn := &functions[i]
		properties := api.NewToolPropertiesMap()
		for name, prop := range fn.InputSchema.Properties {
			toolProp := api.ToolProperty{
				Type:        api.PropertyType{prop.Type},
				Description: prop.Description,
			}
			if len(prop.Enum) > 0 {
				enumVals := make([]any, len(prop.Enum))
				for j, v := range prop.Enum {
					enumVals[j] = v
				}
				toolProp.Enum = enumVals
			}
			properties.Set(name, toolProp)
		}
		tools[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       fn.InputSchema.Type,
					Properties: properties,
					Required:   fn.InputSchema.Required,
				},
			},
		}
	}
	return tools
}

func classifyOllamaError(err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return gwerrors.New(gwerrors.ErrorTypeTransient, fmt.Sprintf("Ollama server not reachable: %v", err))
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return gwerrors.New(gwerrors.ErrorTypeBadPrompt, fmt.Sprintf("Ollama model not found: %v", err))
	case strings.Contains(errStr, "context canceled"), strings.Contains(errStr, "timeout"):
		return gwerrors.New(gwerrors.ErrorTypeTransient, fmt.Sprintf("request interrupted: %v", err))
	default:
		return gwerrors.New(gwerrors.ErrorTypeUnknown, fmt.Sprintf("Ollama API error: %v", err))
	}
}
