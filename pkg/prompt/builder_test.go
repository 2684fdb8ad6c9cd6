package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osgpt/pkg/gateway"
	"osgpt/pkg/schema"
)

type nilStore struct{}

func (nilStore) ReadFile(string) (string, error)              { return "", nil }
func (nilStore) WriteFile(string, string) (schema.Attachment, error) { return schema.Attachment{}, nil }
func (nilStore) ListFiles() ([]schema.Attachment, error)      { return nil, nil }

func fixture(t *testing.T) (*schema.Workspace, *schema.Project, *schema.Issue, *schema.User, *schema.User) {
	t.Helper()
	ws := schema.NewWorkspace("Acme", nilStore{})
	project := schema.NewProject("OS", "osGPT")
	ws.AddProject(project)

	pm := &schema.User{ID: "pm", Name: "Norman Osborn", JobTitle: "Project Manager", Role: schema.RoleAdmin, Type: schema.UserTypeAgent}
	eng := &schema.User{ID: "eng", Name: "Max Dillon", JobTitle: "Engineer", Role: schema.RoleMember, Type: schema.UserTypeAgent}
	for _, u := range []*schema.User{pm, eng} {
		ws.AddMember(u)
	}
	project.AddMember(pm, true)
	project.AddMember(eng, false)

	issue := project.CreateIssue("Write the weekly report", schema.IssueTypeTask, pm)
	issue.Assignee = eng
	return ws, project, issue, pm, eng
}

func TestBuildConversationShape(t *testing.T) {
	ws, project, issue, pm, eng := fixture(t)
	issue.AddActivity(schema.NewComment(pm, "Please draft the report."))
	issue.AddActivity(schema.NewComment(eng, "Starting now."))

	b, err := NewBuilder()
	require.NoError(t, err)

	messages, err := b.Build(eng, ws, project, issue, "Continue your work.")
	require.NoError(t, err)
	// system + issue creation + two comments + closing snapshot
	require.Len(t, messages, 5)

	assert.Equal(t, gateway.RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "Max Dillon")
	assert.Contains(t, messages[0].Content, "Engineer")
	assert.Contains(t, messages[0].Content, "Norman Osborn (Project Manager) (project leader)")
	assert.Contains(t, messages[0].Content, "Open → In Progress")

	// Issue creation shows up as an attributed user message.
	assert.Equal(t, gateway.RoleUser, messages[1].Role)
	assert.Contains(t, messages[1].Content, "created the Issue")

	// The other agent's comment is a named user turn.
	assert.Equal(t, gateway.RoleUser, messages[2].Role)
	assert.Equal(t, "Norman Osborn", messages[2].Name)
	assert.Equal(t, "Please draft the report.", messages[2].Content)

	// The agent's own comment reads back as its assistant turn.
	assert.Equal(t, gateway.RoleAssistant, messages[3].Role)
	assert.Equal(t, "Starting now.", messages[3].Content)

	// The closing message carries a fresh tree snapshot and instruction.
	last := messages[len(messages)-1]
	assert.Equal(t, gateway.RoleUser, last.Role)
	assert.Contains(t, last.Content, "Workspace: Acme")
	assert.Contains(t, last.Content, "#1 Write the weekly report")
	assert.Contains(t, last.Content, "Continue your work.")
}

func TestBuildIsPure(t *testing.T) {
	ws, project, issue, _, eng := fixture(t)
	before := len(issue.Activities())

	b, err := NewBuilder()
	require.NoError(t, err)
	_, err = b.Build(eng, ws, project, issue, "Continue.")
	require.NoError(t, err)

	assert.Equal(t, before, len(issue.Activities()), "building a prompt must not mutate the issue")
}

func TestSelectionPrompt(t *testing.T) {
	ws, project, _, _, _ := fixture(t)

	b, err := NewBuilder()
	require.NoError(t, err)
	messages, err := b.Selection(ws, project)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	content := messages[0].Content
	assert.Contains(t, content, `{"next_person": "<member name>", "issue_id": <issue id>}`)
	assert.Contains(t, content, "<TERMINATE>")
	assert.Contains(t, content, "Max Dillon")
}

func TestFunctionsOnlyNudge(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)
	msg, err := b.FunctionsOnly()
	require.NoError(t, err)
	assert.Equal(t, gateway.RoleUser, msg.Role)
	assert.Contains(t, msg.Content, "Use functions only.")
}
