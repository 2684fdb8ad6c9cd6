package prompt

import (
	"fmt"

	"osgpt/pkg/gateway"
	"osgpt/pkg/schema"
)

// memberView is the roster entry shape the templates consume.
type memberView struct {
	Name           string
	Responsibility string
	IsLeader       bool
}

func memberViews(project *schema.Project) []memberView {
	members := project.Members()
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		responsibility := m.User.JobTitle
		if responsibility == "" {
			responsibility = string(m.User.Role)
		}
		out = append(out, memberView{Name: m.User.Name, Responsibility: responsibility, IsLeader: m.IsLeader})
	}
	return out
}

// Builder turns tracker state into the conversation an agent sees. It is
// pure: it reads the workspace and produces messages, never mutating
// either.
type Builder struct {
	renderer *Renderer
}

// NewBuilder creates a builder over the embedded templates.
func NewBuilder() (*Builder, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Builder{renderer: renderer}, nil
}

// Renderer exposes the underlying template renderer.
func (b *Builder) Renderer() *Renderer { return b.renderer }

// Build produces the full conversation for one agent turn on one issue:
// the agent's system prompt, the issue's activity log as role-tagged
// messages (the agent's own comments as assistant turns, everyone else's
// as named user turns), and a closing user message with a fresh snapshot
// of the whole project tree.
func (b *Builder) Build(agent *schema.User, ws *schema.Workspace, project *schema.Project, issue *schema.Issue, instruction string) ([]gateway.Message, error) {
	system, err := b.renderer.Render(SystemTemplate, map[string]any{
		"AgentName":      agent.Name,
		"Responsibility": agent.JobTitle,
		"ProjectName":    project.Name,
		"Members":        memberViews(project),
		"Transitions":    project.Workflow.Transitions(),
	})
	if err != nil {
		return nil, err
	}

	messages := []gateway.Message{gateway.SystemMessage(system)}
	for _, act := range issue.Activities() {
		messages = append(messages, activityMessage(agent, act))
	}

	turn, err := b.renderer.Render(TurnTemplate, map[string]any{
		"Tree":         ws.Display(),
		"IssueID":      issue.ID,
		"IssueSummary": issue.Summary,
		"IssueStatus":  issue.Status(),
		"Instruction":  instruction,
	})
	if err != nil {
		return nil, err
	}
	messages = append(messages, gateway.UserMessage("", turn))

	return messages, nil
}

// FunctionsOnly renders the corrective nudge sent when an agent that must
// call a function replied with plain text instead.
func (b *Builder) FunctionsOnly() (gateway.Message, error) {
	text, err := b.renderer.Render(FunctionsOnlyTemplate, nil)
	if err != nil {
		return gateway.Message{}, err
	}
	return gateway.UserMessage("", text), nil
}

// Selection renders the dispatcher prompt asking who should act next.
func (b *Builder) Selection(ws *schema.Workspace, project *schema.Project) ([]gateway.Message, error) {
	text, err := b.renderer.Render(SelectorTemplate, map[string]any{
		"ProjectName": project.Name,
		"Tree":        ws.Display(),
		"Members":     memberViews(project),
	})
	if err != nil {
		return nil, err
	}
	return []gateway.Message{gateway.UserMessage("", text)}, nil
}

// activityMessage maps one activity to a conversation message. The agent's
// own comments read back as its assistant turns; everything else arrives
// as user input attributed to the actor.
func activityMessage(agent *schema.User, act schema.Activity) gateway.Message {
	if comment, ok := act.(*schema.Comment); ok {
		if comment.Actor() != nil && comment.Actor().ID == agent.ID {
			return gateway.AssistantMessage(comment.Content)
		}
		return gateway.UserMessage(comment.Actor().Name, comment.Content)
	}
	actor := "someone"
	if act.Actor() != nil {
		actor = act.Actor().Name
	}
	return gateway.UserMessage("", fmt.Sprintf("[%s] %s", actor, act.String()))
}
