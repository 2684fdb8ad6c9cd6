package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"osgpt/pkg/gateway/gwerrors"
)

// ClaudeClient implements Client on the Anthropic Messages API.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClient creates a raw Claude client; retry and metrics wrap it at
// a higher level.
func NewClaudeClient(apiKey, model string) *ClaudeClient {
	return &ClaudeClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// ModelName implements Client.
func (c *ClaudeClient) ModelName() string { return string(c.model) }

// alternate prepares messages for the Anthropic API: system messages are
// extracted to the system parameter, consecutive user-side messages are
// merged, and the result must alternate user/assistant ending on user.
func alternate(messages []Message) (system string, alternating []Message, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var pendingUser []string
	var merged []Message

	flushUser := func() {
		if len(pendingUser) > 0 {
			merged = append(merged, Message{Role: RoleUser, Content: strings.Join(pendingUser, "\n\n")})
			pendingUser = nil
		}
	}

	for _, msg := range flatten(messages) {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case RoleAssistant:
			flushUser()
			merged = append(merged, msg)
		default:
			pendingUser = append(pendingUser, msg.Content)
		}
	}
	flushUser()

	if len(merged) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}
	if merged[0].Role != RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got %s", merged[len(merged)-1].Role)
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Role == merged[i-1].Role {
			return "", nil, fmt.Errorf("alternation violation at index %d: consecutive %s messages", i, merged[i].Role)
		}
	}

	return strings.Join(systemParts, "\n\n"), merged, nil
}

// Decide implements Client.
func (c *ClaudeClient) Decide(ctx context.Context, req Request) (Decision, error) {
	system, alternating, err := alternate(req.Messages)
	if err != nil {
		return Decision{}, gwerrors.New(gwerrors.ErrorTypeBadPrompt, fmt.Sprintf("message alternation error: %v", err))
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for _, msg := range alternating {
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
		TopP:        anthropic.Float(float64(req.TopP)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}

	if len(req.Functions) > 0 {
		var tools []anthropic.ToolUnionParam
		for i := range req.Functions {
			fn := &req.Functions[i]
			props := make(map[string]any, len(fn.InputSchema.Properties))
			for name, prop := range fn.InputSchema.Properties {
				propMap := map[string]any{"type": prop.Type}
				if prop.Description != "" {
					propMap["description"] = prop.Description
				}
				if len(prop.Enum) > 0 {
					propMap["enum"] = prop.Enum
				}
				props[name] = propMap
			}
			schema := anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: props,
				Required:   fn.InputSchema.Required,
			}
			tools = append(tools, anthropic.ToolUnionParamOfTool(schema, fn.Name))
		}
		params.Tools = tools

		if req.ForceFunction {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		} else {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Decision{}, classifyClaudeError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return Decision{}, gwerrors.New(gwerrors.ErrorTypeEmptyResponse, "received empty response from Claude API")
	}

	var decision Decision
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			decision.Text += block.AsText().Text
		case "tool_use":
			if decision.Call != nil {
				continue // one call per decision; extras are dropped
			}
			toolUse := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(toolUse.Input, &args); err != nil {
				return Decision{}, gwerrors.NewWithCause(gwerrors.ErrorTypeUnknown, err, "failed to parse tool input")
			}
			decision.Call = &FunctionCall{ID: toolUse.ID, Name: toolUse.Name, Arguments: args}
		}
	}
	return decision, nil
}

func classifyClaudeError(err error) *gwerrors.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return gwerrors.NewWithCause(gwerrors.ErrorTypeTransient, err, "request interrupted")
	}

	errStr := err.Error()
	switch statusCodeOf(errStr) {
	case 401, 403:
		return gwerrors.NewWithStatus(gwerrors.ErrorTypeAuth, statusCodeOf(errStr), "authentication failed - check API key")
	case 429:
		return gwerrors.NewWithStatus(gwerrors.ErrorTypeRateLimit, 429, "rate limit exceeded")
	case 400:
		return gwerrors.NewWithStatus(gwerrors.ErrorTypeBadPrompt, 400, "bad request - check prompt format and parameters")
	case 500, 502, 503, 504:
		return gwerrors.NewWithStatus(gwerrors.ErrorTypeTransient, statusCodeOf(errStr), "server error")
	}

	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"),
		strings.Contains(lower, "network"), strings.Contains(errStr, "EOF"), strings.Contains(lower, "reset"):
		return gwerrors.NewWithCause(gwerrors.ErrorTypeTransient, err, "network or connection error")
	case strings.Contains(lower, "rate"), strings.Contains(lower, "quota"):
		return gwerrors.NewWithCause(gwerrors.ErrorTypeRateLimit, err, "rate limiting detected")
	case strings.Contains(lower, "auth"), strings.Contains(lower, "unauthorized"):
		return gwerrors.NewWithCause(gwerrors.ErrorTypeAuth, err, "authentication error")
	default:
		return gwerrors.NewWithCause(gwerrors.ErrorTypeUnknown, err, "unclassified error")
	}
}

// statusCodeOf extracts an HTTP status code from an SDK error string.
func statusCodeOf(errStr string) int {
	lower := strings.ToLower(errStr)
	for _, pattern := range []string{"status code: ", "status: ", "http ", "code "} {
		idx := strings.Index(lower, pattern)
		if idx == -1 {
			continue
		}
		rest := errStr[idx+len(pattern):]
		for _, code := range []string{"400", "401", "403", "429", "500", "502", "503", "504"} {
			if strings.HasPrefix(rest, code) {
				switch code {
				case "400":
					return 400
				case "401":
					return 401
				case "403":
					return 403
				case "429":
					return 429
				case "500":
					return 500
				case "502":
					return 502
				case "503":
					return 503
				case "504":
					return 504
				}
			}
		}
	}
	return 0
}
