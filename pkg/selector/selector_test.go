package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osgpt/pkg/gateway"
	"osgpt/pkg/logx"
	"osgpt/pkg/prompt"
	"osgpt/pkg/schema"
)

type nilStore struct{}

func (nilStore) ReadFile(string) (string, error)              { return "", nil }
func (nilStore) WriteFile(string, string) (schema.Attachment, error) { return schema.Attachment{}, nil }
func (nilStore) ListFiles() ([]schema.Attachment, error)      { return nil, nil }

func fixture(t *testing.T) (*schema.Workspace, *schema.Project) {
	t.Helper()
	ws := schema.NewWorkspace("Acme", nilStore{})
	project := schema.NewProject("OS", "osGPT")
	ws.AddProject(project)

	pm := &schema.User{ID: "pm", Name: "Norman Osborn", JobTitle: "Project Manager", Role: schema.RoleAdmin, Type: schema.UserTypeAgent}
	alice := &schema.User{ID: "alice", Name: "Alice", JobTitle: "Engineer", Role: schema.RoleMember, Type: schema.UserTypeAgent}
	ws.AddMember(pm)
	ws.AddMember(alice)
	project.AddMember(pm, true)
	project.AddMember(alice, false)

	for _, summary := range []string{"first", "second", "third"} {
		project.CreateIssue(summary, schema.IssueTypeTask, pm)
	}
	return ws, project
}

func newSelector(t *testing.T, client gateway.Client) *Selector {
	t.Helper()
	builder, err := prompt.NewBuilder()
	require.NoError(t, err)
	return New(client, builder, logx.NewLogger("test"))
}

func TestSelectParsesReply(t *testing.T) {
	ws, project := fixture(t)
	s := newSelector(t, gateway.NewMockClient(
		gateway.TextStep(`{"next_person": "Alice", "issue_id": 3}`),
	))

	selection, err := s.Select(context.Background(), ws, project)
	require.NoError(t, err)
	require.NotNil(t, selection)
	assert.Equal(t, "Alice", selection.Worker.Name)
	assert.Equal(t, 3, selection.Issue.ID)
}

func TestSelectToleratesSurroundingProse(t *testing.T) {
	ws, project := fixture(t)
	s := newSelector(t, gateway.NewMockClient(
		gateway.TextStep("Sure, here is my pick:\n```json\n{\"next_person\": \"Alice\", \"issue_id\": 1}\n```"),
	))

	selection, err := s.Select(context.Background(), ws, project)
	require.NoError(t, err)
	require.NotNil(t, selection)
	assert.Equal(t, 1, selection.Issue.ID)
}

func TestSelectTerminate(t *testing.T) {
	ws, project := fixture(t)
	s := newSelector(t, gateway.NewMockClient(gateway.TextStep("<TERMINATE>")))

	selection, err := s.Select(context.Background(), ws, project)
	require.NoError(t, err)
	assert.Nil(t, selection)
}

func TestSelectRetriesThenParses(t *testing.T) {
	ws, project := fixture(t)
	mock := gateway.NewMockClient(
		gateway.TextStep("I think Alice should go next."),
		gateway.TextStep(`{"next_person": "Alice", "issue_id": 2}`),
	)
	s := newSelector(t, mock)

	selection, err := s.Select(context.Background(), ws, project)
	require.NoError(t, err)
	require.NotNil(t, selection)
	assert.Equal(t, 2, selection.Issue.ID)
	assert.Equal(t, 2, mock.Calls())
}

func TestSelectParseErrorAfterRetries(t *testing.T) {
	ws, project := fixture(t)
	s := newSelector(t, gateway.NewMockClient(
		gateway.TextStep("nope"),
		gateway.TextStep("still nope"),
		gateway.TextStep("never"),
	))

	_, err := s.Select(context.Background(), ws, project)
	require.Error(t, err)
	var parseErr *SelectionParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ParseRetries, parseErr.Attempts)
	assert.Equal(t, "never", parseErr.LastRaw)
}

func TestSelectRejectsUnknownMemberOrIssue(t *testing.T) {
	ws, project := fixture(t)
	s := newSelector(t, gateway.NewMockClient(
		gateway.TextStep(`{"next_person": "Bob", "issue_id": 1}`),
		gateway.TextStep(`{"next_person": "Alice", "issue_id": 99}`),
		gateway.TextStep(`{"next_person": "Alice", "issue_id": 1}`),
	))

	selection, err := s.Select(context.Background(), ws, project)
	require.NoError(t, err, "bad member and bad issue id are re-asked, then the valid reply lands")
	require.NotNil(t, selection)
	assert.Equal(t, "Alice", selection.Worker.Name)
}

func TestSelectRejectsBlockedIssue(t *testing.T) {
	ws, project := fixture(t)
	pm, err := project.MemberByName("Norman Osborn")
	require.NoError(t, err)
	second, err := project.IssueByID(2)
	require.NoError(t, err)
	second.AddLink(pm, schema.IssueLink{Type: schema.LinkIsBlockedBy, TargetID: 1})

	s := newSelector(t, gateway.NewMockClient(
		gateway.TextStep(`{"next_person": "Alice", "issue_id": 2}`),
		gateway.TextStep(`{"next_person": "Alice", "issue_id": 1}`),
	))

	selection, err := s.Select(context.Background(), ws, project)
	require.NoError(t, err)
	require.NotNil(t, selection)
	assert.Equal(t, 1, selection.Issue.ID, "the blocker has to be worked first")
}
