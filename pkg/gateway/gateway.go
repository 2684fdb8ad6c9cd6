// Package gateway abstracts the LLM providers behind a single decision
// interface: given a conversation and a set of function specs, the model
// either replies with text or calls one function.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"osgpt/pkg/ability"
)

// Role tags who a conversation message is from.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleFunction carries the result of a function call back to the model.
	RoleFunction Role = "function"
)

// Message is one role-tagged conversation entry. Name identifies the
// speaker for user messages and the function for function results; it is
// folded into the content for providers without a native slot for it.
type Message struct {
	Role    Role
	Name    string
	Content string
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message attributed to a named speaker.
func UserMessage(name, content string) Message {
	return Message{Role: RoleUser, Name: name, Content: content}
}

// AssistantMessage builds an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// FunctionMessage builds a function-result message.
func FunctionMessage(name, content string) Message {
	return Message{Role: RoleFunction, Name: name, Content: content}
}

// FunctionCall is the model's request to invoke one ability.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Decision is the model's move for one turn: either a text reply or a
// function call, never both. When a provider returns both, the call wins.
type Decision struct {
	Text string
	Call *FunctionCall
}

// IsFunctionCall reports whether the decision is a function call.
func (d Decision) IsFunctionCall() bool { return d.Call != nil }

// IsEmpty reports whether the decision carries neither a call nor any
// non-whitespace text.
func (d Decision) IsEmpty() bool {
	return d.Call == nil && strings.TrimSpace(d.Text) == ""
}

// Near-deterministic generation keeps agent behavior reproducible across
// steps while leaving enough randomness to escape repetition loops.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.2
	DefaultTopP        = 0.3
)

// Request is one decision request to a model.
type Request struct {
	Messages  []Message
	Functions []ability.FunctionSpec
	// ForceFunction requires the model to call a function this turn.
	ForceFunction bool
	MaxTokens     int
	Temperature   float32
	TopP          float32
}

// NewRequest builds a request with the default generation parameters.
func NewRequest(messages []Message, functions []ability.FunctionSpec) Request {
	return Request{
		Messages:    messages,
		Functions:   functions,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// Client is one model provider.
type Client interface {
	// Decide asks the model for its next move in the conversation.
	Decide(ctx context.Context, req Request) (Decision, error)

	// ModelName identifies the underlying model.
	ModelName() string
}

// Middleware wraps a client with additional behavior.
type Middleware func(Client) Client

// Chain composes middlewares so the first listed is outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(client Client) Client {
		for i := len(middlewares) - 1; i >= 0; i-- {
			client = middlewares[i](client)
		}
		return client
	}
}

// Wrap applies middlewares to a client, first listed outermost.
func Wrap(client Client, middlewares ...Middleware) Client {
	return Chain(middlewares...)(client)
}

// flatten rewrites the conversation for providers that only understand
// system/user/assistant: function results become user messages prefixed
// with the function name, and named user messages get their speaker folded
// into the content.
func flatten(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleFunction:
			out = append(out, Message{
				Role:    RoleUser,
				Content: fmt.Sprintf("Function %s returned:\n%s", msg.Name, msg.Content),
			})
		case RoleUser:
			content := msg.Content
			if msg.Name != "" {
				content = fmt.Sprintf("%s: %s", msg.Name, msg.Content)
			}
			out = append(out, Message{Role: RoleUser, Content: content})
		default:
			out = append(out, Message{Role: msg.Role, Content: msg.Content})
		}
	}
	return out
}
