package schema

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ActivityKind tags the closed set of activity variants.
type ActivityKind string

const (
	KindComment            ActivityKind = "Comment"
	KindAttachmentUpload   ActivityKind = "Attachment Upload"
	KindAttachmentUpdate   ActivityKind = "Attachment Update"
	KindAttachmentDeletion ActivityKind = "Attachment Deletion"
	KindAssignmentChange   ActivityKind = "Assignment Change"
	KindStatusChange       ActivityKind = "Status Change"
	KindIssueCreation      ActivityKind = "Issue Creation"
	KindIssueDeletion      ActivityKind = "Issue Deletion"
	KindIssueLinkCreation  ActivityKind = "Issue Link Creation"
	KindIssueLinkDeletion  ActivityKind = "Issue Link Deletion"
)

// Activity is an immutable, timestamped record of something that happened to
// an issue. Implementations form a closed tagged union; orchestration code
// switches on Kind, never on concrete types it does not know.
type Activity interface {
	Kind() ActivityKind
	OccurredAt() time.Time
	Actor() *User
	String() string
}

// record carries the fields shared by every activity variant.
type record struct {
	CreatedBy *User
	CreatedAt time.Time
}

func (r record) OccurredAt() time.Time { return r.CreatedAt }
func (r record) Actor() *User          { return r.CreatedBy }

func newRecord(actor *User) record {
	return record{CreatedBy: actor, CreatedAt: time.Now().UTC()}
}

// Comment is free-text commentary, optionally carrying attachments.
type Comment struct {
	record
	Content     string
	Attachments []Attachment
}

// NewComment creates a comment stamped with the current time.
func NewComment(actor *User, content string, attachments ...Attachment) *Comment {
	return &Comment{record: newRecord(actor), Content: content, Attachments: attachments}
}

func (c *Comment) Kind() ActivityKind { return KindComment }
func (c *Comment) String() string {
	return fmt.Sprintf("%s added a Comment: '%s'. %s", c.CreatedBy.Name, c.Content, humanize.Time(c.CreatedAt))
}

// AttachmentUpload records a file newly attached to an issue.
type AttachmentUpload struct {
	record
	Attachment Attachment
}

func NewAttachmentUpload(actor *User, att Attachment) *AttachmentUpload {
	return &AttachmentUpload{record: newRecord(actor), Attachment: att}
}

func (a *AttachmentUpload) Kind() ActivityKind { return KindAttachmentUpload }
func (a *AttachmentUpload) String() string {
	return fmt.Sprintf("%s added an Attachment: '%s'. %s", a.CreatedBy.Name, a.Attachment.Filename, humanize.Time(a.CreatedAt))
}

// AttachmentUpdate records a file replacing an existing attachment with the
// same filename.
type AttachmentUpdate struct {
	record
	Old Attachment
	New Attachment
}

func NewAttachmentUpdate(actor *User, oldAtt, newAtt Attachment) *AttachmentUpdate {
	return &AttachmentUpdate{record: newRecord(actor), Old: oldAtt, New: newAtt}
}

func (a *AttachmentUpdate) Kind() ActivityKind { return KindAttachmentUpdate }
func (a *AttachmentUpdate) String() string {
	return fmt.Sprintf("%s updated the Attachment '%s'. %s", a.CreatedBy.Name, a.New.Filename, humanize.Time(a.CreatedAt))
}

// AttachmentDeletion records an attachment removed from an issue.
type AttachmentDeletion struct {
	record
	Attachment Attachment
}

func NewAttachmentDeletion(actor *User, att Attachment) *AttachmentDeletion {
	return &AttachmentDeletion{record: newRecord(actor), Attachment: att}
}

func (a *AttachmentDeletion) Kind() ActivityKind { return KindAttachmentDeletion }
func (a *AttachmentDeletion) String() string {
	return fmt.Sprintf("%s deleted the Attachment '%s'. %s", a.CreatedBy.Name, a.Attachment.Filename, humanize.Time(a.CreatedAt))
}

// AssignmentChange records a change of assignee.
type AssignmentChange struct {
	record
	OldAssignee *User
	NewAssignee *User
}

func NewAssignmentChange(actor, oldAssignee, newAssignee *User) *AssignmentChange {
	return &AssignmentChange{record: newRecord(actor), OldAssignee: oldAssignee, NewAssignee: newAssignee}
}

func (a *AssignmentChange) Kind() ActivityKind { return KindAssignmentChange }
func (a *AssignmentChange) String() string {
	oldName := "None"
	if a.OldAssignee != nil {
		oldName = a.OldAssignee.Name
	}
	return fmt.Sprintf("%s changed the Assignee from %s to %s. %s", a.CreatedBy.Name, oldName, a.NewAssignee.Name, humanize.Time(a.CreatedAt))
}

// StatusChange records a workflow transition. Instances are only created by
// Workflow.ChangeStatus; abilities never construct one directly.
type StatusChange struct {
	record
	OldStatus Status
	NewStatus Status
}

func (s *StatusChange) Kind() ActivityKind { return KindStatusChange }
func (s *StatusChange) String() string {
	return fmt.Sprintf("%s changed the Status %s → %s. %s", s.CreatedBy.Name, s.OldStatus, s.NewStatus, humanize.Time(s.CreatedAt))
}

// IssueCreation records the filing of an issue.
type IssueCreation struct {
	record
}

func NewIssueCreation(actor *User) *IssueCreation {
	return &IssueCreation{record: newRecord(actor)}
}

func (i *IssueCreation) Kind() ActivityKind { return KindIssueCreation }
func (i *IssueCreation) String() string {
	return fmt.Sprintf("%s created the Issue. %s", i.CreatedBy.Name, humanize.Time(i.CreatedAt))
}

// IssueDeletion records a logical deletion. Issues are never physically
// removed; this marks the event in the log.
type IssueDeletion struct {
	record
}

func NewIssueDeletion(actor *User) *IssueDeletion {
	return &IssueDeletion{record: newRecord(actor)}
}

func (i *IssueDeletion) Kind() ActivityKind { return KindIssueDeletion }
func (i *IssueDeletion) String() string {
	return fmt.Sprintf("%s deleted the Issue. %s", i.CreatedBy.Name, humanize.Time(i.CreatedAt))
}

// IssueLinkCreation records a typed link added between two issues.
type IssueLinkCreation struct {
	record
	Link IssueLink
}

func NewIssueLinkCreation(actor *User, link IssueLink) *IssueLinkCreation {
	return &IssueLinkCreation{record: newRecord(actor), Link: link}
}

func (i *IssueLinkCreation) Kind() ActivityKind { return KindIssueLinkCreation }
func (i *IssueLinkCreation) String() string {
	return fmt.Sprintf("%s linked this issue (%s #%d). %s", i.CreatedBy.Name, i.Link.Type, i.Link.TargetID, humanize.Time(i.CreatedAt))
}

// IssueLinkDeletion records a link removed between two issues.
type IssueLinkDeletion struct {
	record
	Link IssueLink
}

func NewIssueLinkDeletion(actor *User, link IssueLink) *IssueLinkDeletion {
	return &IssueLinkDeletion{record: newRecord(actor), Link: link}
}

func (i *IssueLinkDeletion) Kind() ActivityKind { return KindIssueLinkDeletion }
func (i *IssueLinkDeletion) String() string {
	return fmt.Sprintf("%s removed a link (%s #%d). %s", i.CreatedBy.Name, i.Link.Type, i.Link.TargetID, humanize.Time(i.CreatedAt))
}
