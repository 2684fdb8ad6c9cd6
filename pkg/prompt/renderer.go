// Package prompt builds the conversation context agents see: an embedded
// template set for the fixed prose and a pure builder that turns tracker
// state into role-tagged messages.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// Template names a prompt template file.
type Template string

const (
	// SystemTemplate is the per-agent system prompt.
	SystemTemplate Template = "system.tpl.md"
	// TurnTemplate is the closing user message carrying the fresh project
	// snapshot for the current turn.
	TurnTemplate Template = "turn.tpl.md"
	// SelectorTemplate asks the model to pick the next worker.
	SelectorTemplate Template = "selector.tpl.md"
	// FunctionsOnlyTemplate is the corrective nudge when an agent must call
	// a function but replied with text.
	FunctionsOnlyTemplate Template = "functions_only.tpl.md"
)

// Renderer loads and renders the embedded prompt templates.
type Renderer struct {
	templates map[Template]*template.Template
}

// NewRenderer parses all embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[Template]*template.Template)}
	for _, name := range []Template{SystemTemplate, TurnTemplate, SelectorTemplate, FunctionsOnlyTemplate} {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render executes the named template with the given data.
func (r *Renderer) Render(name Template, data any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
