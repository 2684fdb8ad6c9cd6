package gateway

import (
	"context"

	"google.golang.org/genai"

	"osgpt/pkg/ability"
	"osgpt/pkg/gateway/gwerrors"
)

// GeminiClient implements Client on the Google GenAI API.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiClient creates a raw Gemini client. The underlying SDK client
// needs a context, so it is created lazily on first use.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, model: model}
}

// ModelName implements Client.
func (g *GeminiClient) ModelName() string { return g.model }

// Decide implements Client.
func (g *GeminiClient) Decide(ctx context.Context, req Request) (Decision, error) {
	if g.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return Decision{}, gwerrors.NewWithCause(gwerrors.ErrorTypeTransient, err, "failed to create Gemini client")
		}
		g.client = client
	}

	var system string
	var contents []*genai.Content
	for _, msg := range flatten(req.Messages) {
		switch msg.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	temperature := req.Temperature
	topP := req.TopP
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		MaxOutputTokens: int32(req.MaxTokens), //nolint:gosec // token limits stay well under int32
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	if len(req.Functions) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: convertFunctionsToGemini(req.Functions)}}
		mode := genai.FunctionCallingConfigModeAuto
		if req.ForceFunction {
			mode = genai.FunctionCallingConfigModeAny
		}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return Decision{}, gwerrors.NewWithCause(classifyByMessage(err), err, "Gemini API call failed")
	}
	if result == nil {
		return Decision{}, gwerrors.New(gwerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	var decision Decision
	if calls := result.FunctionCalls(); len(calls) > 0 {
		call := calls[0]
		id := call.ID
		if id == "" {
			id = call.Name
		}
		decision.Call = &FunctionCall{ID: id, Name: call.Name, Arguments: call.Args}
	} else {
		decision.Text = result.Text()
	}
	return decision, nil
}

func convertFunctionsToGemini(functions []ability.FunctionSpec) []*genai.FunctionDeclaration {
	declarations := make([]*genai.FunctionDeclaration, len(functions))
	for i := range functions {
		fn := &functions[i]
		properties := make(map[string]*genai.Schema, len(fn.InputSchema.Properties))
		for name, prop := range fn.InputSchema.Properties {
			properties[name] = propertyToGeminiSchema(prop)
		}
		declarations[i] = &genai.FunctionDeclaration{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   fn.InputSchema.Required,
			},
		}
	}
	return declarations
}

func propertyToGeminiSchema(prop ability.Property) *genai.Schema {
	schema := &genai.Schema{Description: prop.Description}
	switch prop.Type {
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	default:
		schema.Type = genai.TypeString
	}
	if len(prop.Enum) > 0 {
		schema.Enum = prop.Enum
	}
	return schema
}
