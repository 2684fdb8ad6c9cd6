package ability

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osgpt/pkg/logx"
	"osgpt/pkg/schema"
)

type memStore struct {
	files map[string]string
}

func newMemStore() *memStore { return &memStore{files: make(map[string]string)} }

func (m *memStore) ReadFile(name string) (string, error) {
	content, ok := m.files[name]
	if !ok {
		return "", fmt.Errorf("file %q does not exist in the workspace", name)
	}
	return content, nil
}

func (m *memStore) WriteFile(name, content string) (schema.Attachment, error) {
	m.files[name] = content
	return schema.Attachment{URL: "mem://" + name, Filename: name, Filesize: int64(len(content))}, nil
}

func (m *memStore) ListFiles() ([]schema.Attachment, error) {
	var out []schema.Attachment
	for name, content := range m.files {
		out = append(out, schema.Attachment{URL: "mem://" + name, Filename: name, Filesize: int64(len(content))})
	}
	return out, nil
}

func testCtx(t *testing.T) Ctx {
	t.Helper()
	ws := schema.NewWorkspace("Acme", newMemStore())
	proj := schema.NewProject("OS", "osGPT")
	ws.AddProject(proj)

	pm := &schema.User{ID: "pm", Name: "Norman Osborn", Role: schema.RoleAdmin, Type: schema.UserTypeAgent}
	eng := &schema.User{ID: "eng", Name: "Max Dillon", Role: schema.RoleMember, Type: schema.UserTypeAgent}
	for _, u := range []*schema.User{pm, eng} {
		ws.AddMember(u)
	}
	proj.AddMember(pm, true)
	proj.AddMember(eng, false)

	iss := proj.CreateIssue("Write the report", schema.IssueTypeTask, pm)
	iss.Assignee = eng

	return Ctx{Agent: eng, Workspace: ws, Project: proj, Issue: iss}
}

func TestRegisterRejectsSchemaMismatch(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Ability{
		Name:       "broken",
		Parameters: []Param{{Name: "content", Type: "string", Required: true}},
		Accepts:    []string{"text"},
		Handler:    func(Ctx, Args) (*Result, error) { return OK("ok"), nil },
	})
	require.Error(t, err)

	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "broken", mismatch.Ability)
	assert.Equal(t, []string{"content"}, mismatch.Declared)
	assert.Equal(t, []string{"text"}, mismatch.Accepted)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(AddComment()))
	assert.Error(t, r.Register(AddComment()))
}

func TestSpecsPreserveRegistrationOrder(t *testing.T) {
	r := Builtin()
	specs := r.Specs()
	require.NotEmpty(t, specs)
	assert.Equal(t, "add_comment", specs[0].Name)
	assert.Equal(t, "object", specs[0].InputSchema.Type)
	assert.Equal(t, []string{"content"}, specs[0].InputSchema.Required)
}

func TestInvokeUnknownAbilityFailsSoftly(t *testing.T) {
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))
	res := inv.Invoke(testCtx(t), "launch_rockets", Args{})
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Unknown ability")
	assert.Contains(t, res.Message, "add_comment")
}

func TestInvokeRecoversFromPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Ability{
		Name:    "explode",
		Handler: func(Ctx, Args) (*Result, error) { panic("boom") },
	}))
	inv := NewInvoker(r, logx.NewLogger("test"))

	res := inv.Invoke(testCtx(t), "explode", Args{})
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "boom")
}

func TestAddComment(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "add_comment", Args{"content": "on it"})
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Activities, 1)
	assert.Equal(t, schema.KindComment, res.Activities[0].Kind())

	res = inv.Invoke(ctx, "add_comment", Args{})
	assert.False(t, res.Success)
}

func TestChangeAssignee(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "change_assignee", Args{"assignee": "Norman Osborn"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Norman Osborn", ctx.Issue.Assignee.Name)

	res = inv.Invoke(ctx, "change_assignee", Args{"assignee": "Nobody"})
	assert.False(t, res.Success)
	assert.Equal(t, "Norman Osborn", ctx.Issue.Assignee.Name)
}

func TestChangeIssueStatus(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "change_issue_status", Args{"status": "In Progress"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, schema.StatusInProgress, ctx.Issue.Status())

	res = inv.Invoke(ctx, "change_issue_status", Args{"status": "Closed"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "invalid status transition")
	assert.Equal(t, schema.StatusInProgress, ctx.Issue.Status())
}

func TestCreateIssue(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "create_issue", Args{"summary": "Follow-up task", "issue_type": "Task"})
	require.True(t, res.Success, res.Message)
	require.NotEmpty(t, res.Activities)

	created, err := ctx.Project.IssueByID(2)
	require.NoError(t, err)
	assert.Equal(t, "Follow-up task", created.Summary)
	assert.Equal(t, schema.StatusOpen, created.Status())
}

func TestLinkIssues(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "create_issue", Args{"summary": "Blocker", "issue_type": "Bug"})
	require.True(t, res.Success, res.Message)

	// Models often send ids as JSON numbers.
	res = inv.Invoke(ctx, "link_issues", Args{"issue_id": float64(2), "link_type": "is blocked by"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []int{2}, ctx.Issue.BlockedBy())

	target, err := ctx.Project.IssueByID(2)
	require.NoError(t, err)
	require.Len(t, target.Links(), 1)
	assert.Equal(t, schema.LinkBlocks, target.Links()[0].Type)

	res = inv.Invoke(ctx, "link_issues", Args{"issue_id": ctx.Issue.ID, "link_type": "blocks"})
	assert.False(t, res.Success)
}

func TestFileAbilities(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "read_file", Args{"filename": "missing.md"})
	assert.False(t, res.Success)

	res = inv.Invoke(ctx, "write_file", Args{"filename": "report.md", "content": "draft"})
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Activities, 1)
	assert.Equal(t, schema.KindAttachmentUpload, res.Activities[0].Kind())
	require.Len(t, res.Attachments, 1)

	// Second write to the same name records an update, not a fresh upload.
	res = inv.Invoke(ctx, "write_file", Args{"filename": "report.md", "content": "final"})
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Activities, 1)
	assert.Equal(t, schema.KindAttachmentUpdate, res.Activities[0].Kind())

	res = inv.Invoke(ctx, "read_file", Args{"filename": "report.md"})
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "final")

	res = inv.Invoke(ctx, "list_files", Args{})
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "report.md")
}

func TestFinish(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "finish", Args{"note": "nothing further needed"})
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Activities, 1)
	assert.Equal(t, schema.KindComment, res.Activities[0].Kind())
}

func TestCreateIssueWithDescriptionAndAssignee(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "create_issue", Args{
		"summary":     "Wire up the login form",
		"issue_type":  "Story",
		"description": "The form on main.html needs to POST to /login.",
		"assignee":    "Max Dillon",
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "create_issue", res.Ability)
	assert.Equal(t, "Story", res.Args["issue_type"])

	created, err := ctx.Project.IssueByID(2)
	require.NoError(t, err)
	assert.Equal(t, "The form on main.html needs to POST to /login.", created.Description)
	require.NotNil(t, created.Assignee)
	assert.Equal(t, "Max Dillon", created.Assignee.Name)

	kinds := make([]schema.ActivityKind, 0, 2)
	for _, act := range created.Activities() {
		kinds = append(kinds, act.Kind())
	}
	assert.Contains(t, kinds, schema.KindAssignmentChange)
}

func TestCreateIssueUnderParent(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	res := inv.Invoke(ctx, "create_issue", Args{
		"summary":         "Write the login handler",
		"issue_type":      "Subtask",
		"parent_issue_id": 1,
	})
	require.True(t, res.Success, res.Message)

	child, err := ctx.Project.IssueByID(2)
	require.NoError(t, err)
	require.NotNil(t, child.Parent)
	assert.Equal(t, 1, child.Parent.ID)

	parent, err := ctx.Project.IssueByID(1)
	require.NoError(t, err)
	require.Len(t, parent.Children(), 1)
	assert.Equal(t, child.ID, parent.Children()[0].ID)
	assert.Contains(t, child.Parent.Display(), "Sub: #2")

	res = inv.Invoke(ctx, "create_issue", Args{
		"summary":         "Orphan",
		"issue_type":      "Task",
		"parent_issue_id": 99,
	})
	assert.False(t, res.Success)
	assert.Equal(t, "create_issue", res.Ability, "failures echo the call too")
}

func TestReadFileTruncatesLongContent(t *testing.T) {
	ctx := testCtx(t)
	inv := NewInvoker(Builtin(), logx.NewLogger("test"))

	long := strings.Repeat("x", readLimit+500)
	_, err := ctx.Workspace.Files.WriteFile("big.txt", long)
	require.NoError(t, err)

	res := inv.Invoke(ctx, "read_file", Args{"filename": "big.txt"})
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "... (truncated)")
	assert.Less(t, len(res.Message), len(long))
}
