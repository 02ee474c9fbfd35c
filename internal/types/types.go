// Package types defines the entity graph produced by an export.
package types

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/steveyegge/trackport/internal/attachments"
	"github.com/steveyegge/trackport/internal/lazytext"
	"github.com/steveyegge/trackport/internal/source"
)

// User is a person referenced by the project
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Task is an exported task. Identity and order are (CreatedAt, ID).
type Task struct {
	ID              string
	CreatedAt       time.Time
	Name            string
	Section         *Task // Section title task this task is grouped under, if any
	Description     lazytext.Text
	Comments        []*Comment
	Attachments     []*Attachment
	NumberInProject int
	Record          *source.TaskRecord
}

// Compare orders tasks by creation time, then id.
func (t *Task) Compare(o *Task) int {
	return compareKey(t.CreatedAt, t.ID, o.CreatedAt, o.ID)
}

// IsSectionTitle reports whether a task title ends in the section suffix.
// An empty suffix never matches.
func IsSectionTitle(name, suffix string) bool {
	return suffix != "" && strings.HasSuffix(name, suffix)
}

// CommentKind categorizes story records
type CommentKind string

// Comment kinds understood by the export. Anything else is KindUnrecognized
// and keeps its raw text.
const (
	KindCommentAdded    CommentKind = "comment_added"
	KindAttachmentAdded CommentKind = "attachment_added"
	KindNotesChanged    CommentKind = "notes_changed"
	KindUnrecognized    CommentKind = "unrecognized"
)

// KindOf maps a source subtype onto a CommentKind.
func KindOf(subtype string) CommentKind {
	switch k := CommentKind(subtype); k {
	case KindCommentAdded, KindAttachmentAdded, KindNotesChanged:
		return k
	}
	return KindUnrecognized
}

// Comment is a story on a task. Only KindCommentAdded comments have a
// transduced Text; the others keep Raw.
type Comment struct {
	ID           string
	CreatedAt    time.Time
	Kind         CommentKind
	Subtype      string // source subtype, preserved for unrecognized kinds
	Text         lazytext.Text
	Raw          string
	AuthorID     string
	Edited       bool
	NumberInTask int
	Record       *source.StoryRecord
}

// Body returns the transduced text, or the raw text for kinds that are not
// transduced.
func (c *Comment) Body() lazytext.Text {
	if c.Kind == KindCommentAdded {
		return c.Text
	}
	return lazytext.Of(c.Raw)
}

// Compare orders comments by creation time, then id.
func (c *Comment) Compare(o *Comment) int {
	return compareKey(c.CreatedAt, c.ID, o.CreatedAt, o.ID)
}

// Attachment is a file or link attached to a task.
type Attachment struct {
	ID           string
	CreatedAt    time.Time
	Name         string
	Host         string
	ViewURL      string
	DownloadURL  string
	Creator      *User // nil until an attachment-added event names it
	DownloadPath string
	Download     *attachments.Future
	NumberInTask int
}

// Compare orders attachments by creation time, then id.
func (a *Attachment) Compare(o *Attachment) int {
	return compareKey(a.CreatedAt, a.ID, o.CreatedAt, o.ID)
}

// IsLinkOnly reports whether the attachment is hosted elsewhere and has no
// local copy.
func (a *Attachment) IsLinkOnly() bool {
	return a.DownloadPath == "" && a.ViewURL != ""
}

func compareKey(at time.Time, aid string, bt time.Time, bid string) int {
	if c := at.Compare(bt); c != 0 {
		return c
	}
	return cmp.Compare(aid, bid)
}

// SortTasks sorts tasks in place by (CreatedAt, ID).
func SortTasks(tasks []*Task) {
	slices.SortFunc(tasks, (*Task).Compare)
}
