package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(name string) *User {
	return &User{ID: strings.ToLower(name), Name: name, Role: RoleMember, Type: UserTypeAgent}
}

func TestWorkflowHappyPath(t *testing.T) {
	wf := DefaultWorkflow()
	reporter := testUser("Norman Osborn")
	iss := NewIssue(1, "Ship the report", IssueTypeTask, reporter)

	for _, to := range []Status{StatusInProgress, StatusResolved, StatusReopened, StatusClosed} {
		change, err := wf.ChangeStatus(iss, reporter, to)
		require.NoError(t, err)
		assert.Equal(t, to, change.NewStatus)
		assert.Equal(t, to, iss.Status())
	}
}

func TestWorkflowClosesOnlyFromReopened(t *testing.T) {
	wf := DefaultWorkflow()
	actor := testUser("Norman Osborn")
	iss := NewIssue(1, "Close path", IssueTypeTask, actor)

	for _, to := range []Status{StatusInProgress, StatusResolved} {
		_, err := wf.ChangeStatus(iss, actor, to)
		require.NoError(t, err)
	}
	_, err := wf.ChangeStatus(iss, actor, StatusClosed)
	var invalid *ErrInvalidTransition
	require.True(t, errors.As(err, &invalid), "Resolved must not close directly")
	assert.Equal(t, StatusResolved, invalid.From)

	_, err = wf.ChangeStatus(iss, actor, StatusReopened)
	require.NoError(t, err)
	_, err = wf.ChangeStatus(iss, actor, StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, iss.Status())
}

func TestWorkflowRejectsUnregisteredTransition(t *testing.T) {
	wf := DefaultWorkflow()
	actor := testUser("Max Dillon")
	iss := NewIssue(1, "Fix login", IssueTypeBug, actor)

	_, err := wf.ChangeStatus(iss, actor, StatusClosed)
	require.Error(t, err)

	var invalid *ErrInvalidTransition
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, StatusOpen, invalid.From)
	assert.Equal(t, StatusClosed, invalid.To)
	assert.Equal(t, StatusOpen, iss.Status(), "failed transition must not move the issue")

	// No StatusChange activity may be recorded for the failed attempt.
	for _, act := range iss.Activities() {
		assert.NotEqual(t, KindStatusChange, act.Kind())
	}
}

func TestWorkflowReopenCycle(t *testing.T) {
	wf := DefaultWorkflow()
	actor := testUser("Norman Osborn")
	iss := NewIssue(1, "Review me", IssueTypeTask, actor)

	steps := []Status{StatusInProgress, StatusResolved, StatusReopened, StatusInProgress, StatusResolved, StatusReopened, StatusClosed}
	for _, to := range steps {
		_, err := wf.ChangeStatus(iss, actor, to)
		require.NoError(t, err)
	}
	assert.Equal(t, StatusClosed, iss.Status())
}

func TestActivitiesSortedByOccurrence(t *testing.T) {
	actor := testUser("Norman Osborn")
	iss := NewIssue(1, "Order check", IssueTypeTask, actor)

	late := NewComment(actor, "later")
	late.CreatedAt = time.Now().UTC().Add(time.Hour)
	early := NewComment(actor, "earlier")
	early.CreatedAt = time.Now().UTC().Add(-time.Hour)

	iss.AddActivity(late)
	iss.AddActivity(early)

	acts := iss.Activities()
	require.Len(t, acts, 3) // creation + two comments
	for i := 1; i < len(acts); i++ {
		assert.False(t, acts[i].OccurredAt().Before(acts[i-1].OccurredAt()))
	}
	assert.Equal(t, early, acts[0])
}

func TestAttachmentSupersedeAndDelete(t *testing.T) {
	actor := testUser("Max Dillon")
	iss := NewIssue(1, "File juggling", IssueTypeTask, actor)

	v1 := Attachment{URL: "file://report.md", Filename: "report.md", Filesize: 10, UploadedAt: time.Now().UTC()}
	v2 := Attachment{URL: "file://report.md", Filename: "report.md", Filesize: 25, UploadedAt: time.Now().UTC().Add(time.Minute)}
	other := Attachment{URL: "file://notes.md", Filename: "notes.md", Filesize: 5, UploadedAt: time.Now().UTC()}

	iss.AddActivity(NewAttachmentUpload(actor, v1))
	iss.AddActivity(NewComment(actor, "see attached", other))
	iss.AddActivity(NewAttachmentUpdate(actor, v1, v2))

	atts := iss.Attachments()
	require.Len(t, atts, 2)
	assert.Equal(t, int64(25), atts[0].Filesize, "later upload supersedes the earlier one")

	iss.AddActivity(NewAttachmentDeletion(actor, v2))
	atts = iss.Attachments()
	require.Len(t, atts, 1)
	assert.Equal(t, "notes.md", atts[0].Filename)
}

func TestAttachmentSameFile(t *testing.T) {
	a := Attachment{URL: "file://a.md", Filename: "a.md", Filesize: 3, UploadedAt: time.Now()}
	b := Attachment{URL: "file://a.md", Filename: "a.md", Filesize: 3, UploadedAt: time.Now().Add(time.Hour)}
	c := Attachment{URL: "file://a.md", Filename: "a.md", Filesize: 4}

	assert.True(t, a.SameFile(b), "upload time does not affect file identity")
	assert.False(t, a.SameFile(c))
}

func TestProjectDenseIssueIDs(t *testing.T) {
	p := NewProject("OS", "osGPT")
	reporter := testUser("Norman Osborn")

	first := p.CreateIssue("first", IssueTypeTask, reporter)
	second := p.CreateIssue("second", IssueTypeBug, reporter)

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, 3, p.NextIssueID())

	got, err := p.IssueByID(2)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = p.IssueByID(99)
	assert.Error(t, err)
}

func TestProjectAllClosed(t *testing.T) {
	p := NewProject("OS", "osGPT")
	assert.True(t, p.AllClosed(), "a project with no issues has nothing left to close")

	reporter := testUser("Norman Osborn")
	iss := p.CreateIssue("only", IssueTypeTask, reporter)
	assert.False(t, p.AllClosed())

	for _, to := range []Status{StatusInProgress, StatusResolved, StatusReopened, StatusClosed} {
		_, err := p.Workflow.ChangeStatus(iss, reporter, to)
		require.NoError(t, err)
	}
	assert.True(t, p.AllClosed())
}

func TestProjectLeaderAndMembers(t *testing.T) {
	p := NewProject("OS", "osGPT")
	pm := testUser("Norman Osborn")
	eng := testUser("Max Dillon")
	p.AddMember(pm, true)
	p.AddMember(eng, false)

	assert.Equal(t, pm, p.Leader())

	got, err := p.MemberByName("Max Dillon")
	require.NoError(t, err)
	assert.Equal(t, eng, got)

	_, err = p.MemberByName("Nobody")
	assert.Error(t, err)
}

func TestIssueLinks(t *testing.T) {
	actor := testUser("Norman Osborn")
	iss := NewIssue(2, "blocked one", IssueTypeTask, actor)

	link := IssueLink{Type: LinkIsBlockedBy, TargetID: 1}
	iss.AddLink(actor, link)
	assert.Equal(t, []int{1}, iss.BlockedBy())
	assert.Equal(t, LinkBlocks, link.Type.Inverse())

	assert.True(t, iss.RemoveLink(actor, link))
	assert.Empty(t, iss.BlockedBy())
	assert.False(t, iss.RemoveLink(actor, link))
}

func TestDisplayRendersTree(t *testing.T) {
	store := stubStore{}
	ws := NewWorkspace("Acme", store)
	p := NewProject("OS", "osGPT")
	ws.AddProject(p)

	reporter := testUser("Norman Osborn")
	ws.AddMember(reporter)
	p.AddMember(reporter, true)

	iss := p.CreateIssue("Write the report", IssueTypeTask, reporter)
	iss.Assignee = testUser("Max Dillon")
	iss.AddActivity(NewComment(reporter, "please start"))

	out := ws.Display()
	assert.Contains(t, out, "Workspace: Acme")
	assert.Contains(t, out, "Project OS: osGPT")
	assert.Contains(t, out, "#1 Write the report (Task) [Status: Open, Assignee: Max Dillon]")
	assert.Contains(t, out, "added a Comment: 'please start'")
}

type stubStore struct{}

func (stubStore) ReadFile(string) (string, error)          { return "", nil }
func (stubStore) WriteFile(string, string) (Attachment, error) { return Attachment{}, nil }
func (stubStore) ListFiles() ([]Attachment, error)         { return nil, nil }
