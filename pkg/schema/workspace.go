package schema

import (
	"fmt"
	"strings"
	"time"
)

// FileStore is the file surface a workspace exposes to its members. It is
// satisfied by storage.Dir; the entity layer never touches the filesystem
// directly.
type FileStore interface {
	ReadFile(name string) (string, error)
	WriteFile(name, content string) (Attachment, error)
	ListFiles() ([]Attachment, error)
}

// WorkspaceMember binds a user to a workspace.
type WorkspaceMember struct {
	User     *User
	JoinedAt time.Time
}

// Workspace is the top-level container: a member roster, the projects they
// work in, and a shared file store.
type Workspace struct {
	Name      string
	Files     FileStore
	CreatedAt time.Time

	members  []WorkspaceMember
	projects []*Project
}

// NewWorkspace creates a workspace around the given file store.
func NewWorkspace(name string, files FileStore) *Workspace {
	return &Workspace{Name: name, Files: files, CreatedAt: time.Now().UTC()}
}

// AddMember adds a user to the workspace roster.
func (w *Workspace) AddMember(u *User) {
	w.members = append(w.members, WorkspaceMember{User: u, JoinedAt: time.Now().UTC()})
}

// Members returns a copy of the roster.
func (w *Workspace) Members() []WorkspaceMember {
	out := make([]WorkspaceMember, len(w.members))
	copy(out, w.members)
	return out
}

// MemberByName looks up a workspace member by exact user name.
func (w *Workspace) MemberByName(name string) (*User, error) {
	for _, m := range w.members {
		if m.User.Name == name {
			return m.User, nil
		}
	}
	return nil, fmt.Errorf("no member named %q in workspace %s", name, w.Name)
}

// AddProject registers a project in the workspace.
func (w *Workspace) AddProject(p *Project) {
	w.projects = append(w.projects, p)
}

// Projects returns a copy of the project list.
func (w *Workspace) Projects() []*Project {
	out := make([]*Project, len(w.projects))
	copy(out, w.projects)
	return out
}

// ProjectByKey looks up a project by its key.
func (w *Workspace) ProjectByKey(key string) (*Project, error) {
	for _, p := range w.projects {
		if p.Key == key {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no project with key %q in workspace %s", key, w.Name)
}

// Display renders the workspace and every project tree beneath it.
func (w *Workspace) Display() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workspace: %s", w.Name)
	for _, p := range w.projects {
		b.WriteString("\n")
		b.WriteString(p.Display())
	}
	return b.String()
}
