package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is a workflow position. Issues start Open; every move between
// statuses goes through Workflow.ChangeStatus.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusReopened   Status = "Reopened"
	StatusClosed     Status = "Closed"
)

// IssueType classifies the shape of work an issue tracks.
type IssueType string

const (
	IssueTypeTask    IssueType = "Task"
	IssueTypeBug     IssueType = "Bug"
	IssueTypeStory   IssueType = "Story"
	IssueTypeEpic    IssueType = "Epic"
	IssueTypeSubtask IssueType = "Subtask"
)

// LinkType names the directed relation a link asserts from the holding issue
// toward the target.
type LinkType string

const (
	LinkBlocks      LinkType = "blocks"
	LinkIsBlockedBy LinkType = "is blocked by"
	LinkClones      LinkType = "clones"
	LinkIsClonedBy  LinkType = "is cloned by"
	LinkRelatesTo   LinkType = "relates to"
)

// Inverse returns the link type stored on the other side of the relation.
func (t LinkType) Inverse() LinkType {
	switch t {
	case LinkBlocks:
		return LinkIsBlockedBy
	case LinkIsBlockedBy:
		return LinkBlocks
	case LinkClones:
		return LinkIsClonedBy
	case LinkIsClonedBy:
		return LinkClones
	default:
		return LinkRelatesTo
	}
}

// IssueLink is one directed edge to another issue in the same project.
type IssueLink struct {
	Type     LinkType
	TargetID int
}

// Issue is a tracked unit of work. The status field is unexported so that
// the only mutation path is Workflow.ChangeStatus, which validates the
// transition and appends the StatusChange activity.
type Issue struct {
	ID          int
	Summary     string
	Description string
	Type        IssueType
	Reporter    *User
	Assignee    *User
	Parent      *Issue
	CreatedAt   time.Time

	status     Status
	activities []Activity
	links      []IssueLink
	children   []*Issue
}

// NewIssue files an issue in Open status and records the creation activity.
func NewIssue(id int, summary string, issueType IssueType, reporter *User) *Issue {
	iss := &Issue{
		ID:        id,
		Summary:   summary,
		Type:      issueType,
		Reporter:  reporter,
		CreatedAt: time.Now().UTC(),
		status:    StatusOpen,
	}
	iss.AddActivity(NewIssueCreation(reporter))
	return iss
}

// Status returns the current workflow position.
func (i *Issue) Status() Status { return i.status }

// SetParent records parent as this issue's parent and adds this issue to the
// parent's children.
func (i *Issue) SetParent(parent *Issue) {
	i.Parent = parent
	parent.children = append(parent.children, i)
}

// Children returns a copy of the issue's sub-issues, in creation order.
func (i *Issue) Children() []*Issue {
	out := make([]*Issue, len(i.children))
	copy(out, i.children)
	return out
}

// AddActivity appends to the issue's append-only activity log.
func (i *Issue) AddActivity(a Activity) {
	i.activities = append(i.activities, a)
}

// Activities returns the log sorted by occurrence time, oldest first.
func (i *Issue) Activities() []Activity {
	out := make([]Activity, len(i.activities))
	copy(out, i.activities)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].OccurredAt().Before(out[b].OccurredAt())
	})
	return out
}

// Attachments returns the issue's current set of attached files: every file
// uploaded in a comment or upload activity and not since deleted. Later
// uploads with the same filename supersede earlier ones.
func (i *Issue) Attachments() []Attachment {
	byName := make(map[string]Attachment)
	order := []string{}
	put := func(att Attachment) {
		if _, seen := byName[att.Filename]; !seen {
			order = append(order, att.Filename)
		}
		byName[att.Filename] = att
	}
	for _, act := range i.Activities() {
		switch a := act.(type) {
		case *Comment:
			for _, att := range a.Attachments {
				put(att)
			}
		case *AttachmentUpload:
			put(a.Attachment)
		case *AttachmentUpdate:
			put(a.New)
		case *AttachmentDeletion:
			delete(byName, a.Attachment.Filename)
		}
	}
	out := make([]Attachment, 0, len(byName))
	for _, name := range order {
		if att, ok := byName[name]; ok {
			out = append(out, att)
		}
	}
	return out
}

// AddLink records a directed link on this issue.
func (i *Issue) AddLink(actor *User, link IssueLink) {
	i.links = append(i.links, link)
	i.AddActivity(NewIssueLinkCreation(actor, link))
}

// RemoveLink drops the first matching link, if present.
func (i *Issue) RemoveLink(actor *User, link IssueLink) bool {
	for idx, l := range i.links {
		if l == link {
			i.links = append(i.links[:idx], i.links[idx+1:]...)
			i.AddActivity(NewIssueLinkDeletion(actor, link))
			return true
		}
	}
	return false
}

// Links returns a copy of the issue's link edges.
func (i *Issue) Links() []IssueLink {
	out := make([]IssueLink, len(i.links))
	copy(out, i.links)
	return out
}

// BlockedBy returns the target ids of "is blocked by" links.
func (i *Issue) BlockedBy() []int {
	var ids []int
	for _, l := range i.links {
		if l.Type == LinkIsBlockedBy {
			ids = append(ids, l.TargetID)
		}
	}
	return ids
}

// String renders the issue header line used in serialized project trees.
func (i *Issue) String() string {
	assignee := "None"
	if i.Assignee != nil {
		assignee = i.Assignee.Name
	}
	return fmt.Sprintf("#%d %s (%s) [Status: %s, Assignee: %s]", i.ID, i.Summary, i.Type, i.status, assignee)
}

// Display renders the issue with its parent, sub-issues, and full activity
// log, one entry per indented line, activities oldest first.
func (i *Issue) Display() string {
	var b strings.Builder
	b.WriteString(i.String())
	if i.Parent != nil {
		b.WriteString("\n    Parent: ")
		b.WriteString(i.Parent.String())
	}
	for _, child := range i.children {
		b.WriteString("\n    Sub: ")
		b.WriteString(child.String())
	}
	for _, act := range i.Activities() {
		b.WriteString("\n    ")
		b.WriteString(act.String())
	}
	return b.String()
}
