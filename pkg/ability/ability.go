// Package ability defines the function-calling surface agents use to act on
// the issue tracker: typed function specs for the model, a registry with
// registration-time schema checking, and an invoker that turns model calls
// into uniform results.
package ability

import (
	"fmt"
	"strconv"

	"osgpt/pkg/schema"
)

// Property describes a single parameter in a function's JSON schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// InputSchema is a JSON schema object for a function's parameters.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// FunctionSpec is what the model gateway advertises to the LLM for one
// ability.
type FunctionSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Param declares one model-facing parameter of an ability.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// Ctx carries the implicit arguments every handler receives alongside the
// model-supplied ones: the acting agent and where it is working.
type Ctx struct {
	Agent     *schema.User
	Workspace *schema.Workspace
	Project   *schema.Project
	Issue     *schema.Issue
}

// Args holds the model-supplied arguments for one call.
type Args map[string]any

// String returns the named argument as a string, tolerating values the
// model sent as other scalar types.
func (a Args) String(name string) (string, bool) {
	v, ok := a[name]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// Int returns the named argument as an int. Models routinely send numbers
// as JSON floats or quoted strings; both are accepted.
func (a Args) Int(name string) (int, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Handler executes one ability call. A returned error means the call
// failed; the invoker folds it into a failed Result rather than letting it
// escape.
type Handler func(ctx Ctx, args Args) (*Result, error)

// Ability binds a function spec to its handler. Accepts lists the argument
// names the handler actually reads; registration verifies it matches the
// declared parameters exactly.
type Ability struct {
	Name        string
	Description string
	Parameters  []Param
	Accepts     []string
	Handler     Handler
}

// Spec renders the model-facing function spec.
func (a *Ability) Spec() FunctionSpec {
	props := make(map[string]Property, len(a.Parameters))
	var required []string
	for _, p := range a.Parameters {
		props[p.Name] = Property{Type: p.Type, Description: p.Description, Enum: p.Enum}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return FunctionSpec{
		Name:        a.Name,
		Description: a.Description,
		InputSchema: InputSchema{Type: "object", Properties: props, Required: required},
	}
}
