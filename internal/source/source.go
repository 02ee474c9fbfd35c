// Package source describes the records fetched from the source tracker.
//
// The export does not talk to the tracker's API directly. It consumes a
// Source, which yields already-materialized records in the order the tracker
// returned them. Snapshot is the file-backed implementation used by the CLI.
package source

import (
	"context"
	"time"
)

// Ref is a compact reference to another entity (user or task).
type Ref struct {
	ID    string `yaml:"gid" json:"gid"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
}

// Like records that a user liked a task or story.
type Like struct {
	User Ref `yaml:"user" json:"user"`
}

// ProjectRecord identifies the exported project and its workspace.
type ProjectRecord struct {
	ID          string `yaml:"gid" json:"gid"`
	Name        string `yaml:"name" json:"name"`
	WorkspaceID string `yaml:"workspace" json:"workspace"`
}

// UserRecord is a workspace member.
type UserRecord struct {
	ID    string `yaml:"gid" json:"gid"`
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}

// TaskRecord is a task as returned by the tracker.
type TaskRecord struct {
	ID          string     `yaml:"gid" json:"gid"`
	Name        string     `yaml:"name" json:"name"`
	HTMLNotes   string     `yaml:"html_notes,omitempty" json:"html_notes,omitempty"`
	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	ModifiedAt  *time.Time `yaml:"modified_at,omitempty" json:"modified_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	DueAt       *time.Time `yaml:"due_at,omitempty" json:"due_at,omitempty"`
	DueOn       string     `yaml:"due_on,omitempty" json:"due_on,omitempty"`
	Parent      *Ref       `yaml:"parent,omitempty" json:"parent,omitempty"`
	CreatedBy   *Ref       `yaml:"created_by,omitempty" json:"created_by,omitempty"`
	Assignee    *Ref       `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	Followers   []Ref      `yaml:"followers,omitempty" json:"followers,omitempty"`
	Likes       []Like     `yaml:"likes,omitempty" json:"likes,omitempty"`
	Tags        []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// StoryRecord is an activity entry on a task: a comment or a system event.
type StoryRecord struct {
	ID        string    `yaml:"gid" json:"gid"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	CreatedBy *Ref      `yaml:"created_by,omitempty" json:"created_by,omitempty"`
	Subtype   string    `yaml:"resource_subtype" json:"resource_subtype"`
	Text      string    `yaml:"text,omitempty" json:"text,omitempty"`
	HTMLText  string    `yaml:"html_text,omitempty" json:"html_text,omitempty"`
	IsEdited  bool      `yaml:"is_edited,omitempty" json:"is_edited,omitempty"`
	Likes     []Like    `yaml:"likes,omitempty" json:"likes,omitempty"`
}

// AttachmentRecord is a file attached to a task. DownloadURL is empty for
// attachments hosted externally; those only have a ViewURL.
type AttachmentRecord struct {
	ID          string    `yaml:"gid" json:"gid"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	Name        string    `yaml:"name" json:"name"`
	Host        string    `yaml:"host,omitempty" json:"host,omitempty"`
	DownloadURL string    `yaml:"download_url,omitempty" json:"download_url,omitempty"`
	ViewURL     string    `yaml:"view_url,omitempty" json:"view_url,omitempty"`
}

// Source yields tracker records. Record slices are returned in the
// tracker's order; callers must not rely on them being sorted.
type Source interface {
	Project(ctx context.Context, projectID string) (*ProjectRecord, error)
	Users(ctx context.Context, workspaceID string) ([]UserRecord, error)
	Tasks(ctx context.Context, projectID string) ([]TaskRecord, error)
	Subtasks(ctx context.Context, taskID string) ([]TaskRecord, error)
	Stories(ctx context.Context, taskID string) ([]StoryRecord, error)
	Attachments(ctx context.Context, taskID string) ([]AttachmentRecord, error)
}
