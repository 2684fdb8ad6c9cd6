package ability

import (
	"fmt"

	"osgpt/pkg/schema"
)

// Finish lets an agent declare its turn on the current issue done when no
// tracker change is needed. It posts a closing comment so the turn still
// produces a visible activity.
func Finish() *Ability {
	return &Ability{
		Name:        "finish",
		Description: "Declare your work on the current issue finished for now, with a short note on the outcome.",
		Parameters: []Param{
			{Name: "note", Type: "string", Description: "Short note on what was done or why no change was needed.", Required: true},
		},
		Accepts: []string{"note"},
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			note, ok := args.String("note")
			if !ok || note == "" {
				return nil, fmt.Errorf("note is required")
			}
			comment := schema.NewComment(ctx.Agent, note)
			ctx.Issue.AddActivity(comment)
			return OK(fmt.Sprintf("%s finished working on issue #%d.", ctx.Agent.Name, ctx.Issue.ID), comment), nil
		},
	}
}

// Builtin returns a registry preloaded with the standard ability set.
func Builtin() *Registry {
	r := NewRegistry()
	r.MustRegister(
		AddComment(),
		ChangeAssignee(),
		ChangeIssueStatus(),
		CreateIssue(),
		LinkIssues(),
		ReadFile(),
		WriteFile(),
		ListFiles(),
		Finish(),
	)
	return r
}
