package ability

import (
	"fmt"

	"osgpt/pkg/schema"
)

// AddComment posts a comment on the current issue.
func AddComment() *Ability {
	return &Ability{
		Name:        "add_comment",
		Description: "Add a comment to the current issue.",
		Parameters: []Param{
			{Name: "content", Type: "string", Description: "The comment text.", Required: true},
		},
		Accepts: []string{"content"},
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			content, ok := args.String("content")
			if !ok || content == "" {
				return nil, fmt.Errorf("content is required")
			}
			comment := schema.NewComment(ctx.Agent, content)
			ctx.Issue.AddActivity(comment)
			return OK(fmt.Sprintf("Comment added to issue #%d.", ctx.Issue.ID), comment), nil
		},
	}
}

// ChangeAssignee reassigns the current issue to another project member.
func ChangeAssignee() *Ability {
	return &Ability{
		Name:        "change_assignee",
		Description: "Assign the current issue to a project member by name.",
		Parameters: []Param{
			{Name: "assignee", Type: "string", Description: "Exact name of the new assignee.", Required: true},
		},
		Accepts: []string{"assignee"},
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			name, ok := args.String("assignee")
			if !ok || name == "" {
				return nil, fmt.Errorf("assignee is required")
			}
			member, err := ctx.Project.MemberByName(name)
			if err != nil {
				return nil, err
			}
			change := schema.NewAssignmentChange(ctx.Agent, ctx.Issue.Assignee, member)
			ctx.Issue.Assignee = member
			ctx.Issue.AddActivity(change)
			return OK(fmt.Sprintf("Issue #%d is now assigned to %s.", ctx.Issue.ID, member.Name), change), nil
		},
	}
}

// ChangeIssueStatus moves the current issue through the project workflow.
func ChangeIssueStatus() *Ability {
	return &Ability{
		Name:        "change_issue_status",
		Description: "Change the status of the current issue. Only transitions permitted by the workflow succeed.",
		Parameters: []Param{
			{
				Name: "status", Type: "string", Required: true,
				Description: "The target status.",
				Enum: []string{
					string(schema.StatusOpen), string(schema.StatusInProgress),
					string(schema.StatusResolved), string(schema.StatusReopened),
					string(schema.StatusClosed),
				},
			},
		},
		Accepts: []string{"status"},
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			raw, ok := args.String("status")
			if !ok || raw == "" {
				return nil, fmt.Errorf("status is required")
			}
			change, err := ctx.Project.Workflow.ChangeStatus(ctx.Issue, ctx.Agent, schema.Status(raw))
			if err != nil {
				return nil, err
			}
			return OK(fmt.Sprintf("Issue #%d moved from %s to %s.", ctx.Issue.ID, change.OldStatus, change.NewStatus), change), nil
		},
	}
}

// CreateIssue files a new issue in the current project.
func CreateIssue() *Ability {
	return &Ability{
		Name:        "create_issue",
		Description: "Create a new issue in the current project.",
		Parameters: []Param{
			{Name: "summary", Type: "string", Description: "One-line summary of the issue.", Required: true},
			{
				Name: "issue_type", Type: "string", Required: true,
				Description: "The kind of issue to create.",
				Enum: []string{
					string(schema.IssueTypeTask), string(schema.IssueTypeBug),
					string(schema.IssueTypeStory), string(schema.IssueTypeEpic),
					string(schema.IssueTypeSubtask),
				},
			},
			{Name: "description", Type: "string", Description: "Longer description of the issue."},
			{Name: "assignee", Type: "string", Description: "Exact name of a project member to assign the new issue to."},
			{Name: "parent_issue_id", Type: "integer", Description: "Id of an existing issue to file this one under."},
		},
		Accepts: []string{"summary", "issue_type", "description", "assignee", "parent_issue_id"},
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			summary, ok := args.String("summary")
			if !ok || summary == "" {
				return nil, fmt.Errorf("summary is required")
			}
			issueType, ok := args.String("issue_type")
			if !ok || issueType == "" {
				return nil, fmt.Errorf("issue_type is required")
			}

			var parent *schema.Issue
			if parentID, ok := args.Int("parent_issue_id"); ok {
				var err error
				parent, err = ctx.Project.IssueByID(parentID)
				if err != nil {
					return nil, err
				}
			}

			created := ctx.Project.CreateIssue(summary, schema.IssueType(issueType), ctx.Agent)
			if description, ok := args.String("description"); ok && description != "" {
				created.Description = description
			}
			if parent != nil {
				created.SetParent(parent)
			}
			if name, ok := args.String("assignee"); ok && name != "" {
				member, err := ctx.Project.MemberByName(name)
				if err != nil {
					return nil, err
				}
				created.AddActivity(schema.NewAssignmentChange(ctx.Agent, nil, member))
				created.Assignee = member
			}

			acts := created.Activities()
			return OK(fmt.Sprintf("Created issue #%d: %s.", created.ID, created.Summary), acts...), nil
		},
	}
}

// LinkIssues links the current issue to another issue in the project,
// recording the inverse edge on the target.
func LinkIssues() *Ability {
	return &Ability{
		Name:        "link_issues",
		Description: "Link the current issue to another issue in the project.",
		Parameters: []Param{
			{Name: "issue_id", Type: "integer", Description: "Id of the issue to link to.", Required: true},
			{
				Name: "link_type", Type: "string", Required: true,
				Description: "The relation from the current issue toward the target.",
				Enum: []string{
					string(schema.LinkBlocks), string(schema.LinkIsBlockedBy),
					string(schema.LinkClones), string(schema.LinkIsClonedBy),
					string(schema.LinkRelatesTo),
				},
			},
		},
		Accepts: []string{"issue_id", "link_type"},
		Handler: func(ctx Ctx, args Args) (*Result, error) {
			targetID, ok := args.Int("issue_id")
			if !ok {
				return nil, fmt.Errorf("issue_id is required")
			}
			if targetID == ctx.Issue.ID {
				return nil, fmt.Errorf("an issue cannot be linked to itself")
			}
			rawType, ok := args.String("link_type")
			if !ok || rawType == "" {
				return nil, fmt.Errorf("link_type is required")
			}
			target, err := ctx.Project.IssueByID(targetID)
			if err != nil {
				return nil, err
			}
			linkType := schema.LinkType(rawType)
			ctx.Issue.AddLink(ctx.Agent, schema.IssueLink{Type: linkType, TargetID: target.ID})
			target.AddLink(ctx.Agent, schema.IssueLink{Type: linkType.Inverse(), TargetID: ctx.Issue.ID})
			acts := ctx.Issue.Activities()
			last := acts[len(acts)-1]
			return OK(fmt.Sprintf("Issue #%d now %s issue #%d.", ctx.Issue.ID, linkType, target.ID), last), nil
		},
	}
}
