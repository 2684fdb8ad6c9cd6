package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ProjectMember binds a user to a project, optionally as its leader.
type ProjectMember struct {
	User     *User
	IsLeader bool
}

// Project is a named collection of issues with a member roster and a single
// workflow governing every issue's lifecycle.
type Project struct {
	Key       string
	Name      string
	Workflow  *Workflow
	CreatedAt time.Time

	members []ProjectMember
	issues  []*Issue
}

// NewProject creates a project with the default workflow.
func NewProject(key, name string) *Project {
	return &Project{
		Key:       key,
		Name:      name,
		Workflow:  DefaultWorkflow(),
		CreatedAt: time.Now().UTC(),
	}
}

// AddMember adds a user to the roster. The first leader added becomes the
// project leader; later leader flags are kept as given.
func (p *Project) AddMember(u *User, isLeader bool) {
	p.members = append(p.members, ProjectMember{User: u, IsLeader: isLeader})
}

// Members returns a copy of the roster.
func (p *Project) Members() []ProjectMember {
	out := make([]ProjectMember, len(p.members))
	copy(out, p.members)
	return out
}

// Leader returns the project leader, or nil if none was designated.
func (p *Project) Leader() *User {
	for _, m := range p.members {
		if m.IsLeader {
			return m.User
		}
	}
	return nil
}

// MemberByName looks up a member by exact user name.
func (p *Project) MemberByName(name string) (*User, error) {
	for _, m := range p.members {
		if m.User.Name == name {
			return m.User, nil
		}
	}
	return nil, fmt.Errorf("no member named %q in project %s", name, p.Key)
}

// NextIssueID returns the id the next filed issue will receive. Ids are
// dense and 1-based; issues are never physically removed, so len+1 is
// stable.
func (p *Project) NextIssueID() int { return len(p.issues) + 1 }

// AddIssue appends an already-constructed issue to the project.
func (p *Project) AddIssue(iss *Issue) {
	p.issues = append(p.issues, iss)
}

// CreateIssue files a new issue with the next dense id.
func (p *Project) CreateIssue(summary string, issueType IssueType, reporter *User) *Issue {
	iss := NewIssue(p.NextIssueID(), summary, issueType, reporter)
	p.issues = append(p.issues, iss)
	return iss
}

// Issues returns the project's issues sorted by creation time, oldest
// first.
func (p *Project) Issues() []*Issue {
	out := make([]*Issue, len(p.issues))
	copy(out, p.issues)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// IssueByID looks up an issue by its dense id.
func (p *Project) IssueByID(id int) (*Issue, error) {
	for _, iss := range p.issues {
		if iss.ID == id {
			return iss, nil
		}
	}
	return nil, fmt.Errorf("no issue #%d in project %s", id, p.Key)
}

// IssuesAssignedTo returns the issues currently assigned to the user,
// oldest first.
func (p *Project) IssuesAssignedTo(u *User) []*Issue {
	var out []*Issue
	for _, iss := range p.Issues() {
		if iss.Assignee != nil && iss.Assignee.ID == u.ID {
			out = append(out, iss)
		}
	}
	return out
}

// AllClosed reports whether no issue in the project has a status other than
// Closed. An empty project therefore counts as done.
func (p *Project) AllClosed() bool {
	for _, iss := range p.issues {
		if iss.Status() != StatusClosed {
			return false
		}
	}
	return true
}

// Display renders the project and its full issue tree, issues ordered by
// creation time, each with its activity log.
func (p *Project) Display() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project %s: %s", p.Key, p.Name)
	for _, iss := range p.Issues() {
		b.WriteString("\n  ")
		b.WriteString(strings.ReplaceAll(iss.Display(), "\n", "\n  "))
	}
	return b.String()
}
