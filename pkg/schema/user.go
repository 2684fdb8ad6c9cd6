// Package schema defines the workspace entity model: users, projects,
// issues, activities, attachments, and the status workflow.
package schema

// UserType distinguishes human operators from LLM-backed agents.
type UserType string

const (
	UserTypeHuman UserType = "Human"
	UserTypeAgent UserType = "Agent"
)

// Role is a user's role within a workspace.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
	RoleGuest  Role = "Guest"
)

// User is an immutable identity created at workspace setup. JobTitle is
// the user's function on the team ("Project Manager", "Engineer") and
// drives how agents are introduced to each other in prompts.
type User struct {
	ID       string
	Name     string
	JobTitle string
	Role     Role
	Type     UserType
}

func (u *User) String() string {
	return u.Name
}
