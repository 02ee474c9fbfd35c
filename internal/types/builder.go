package types

import (
	"slices"

	"github.com/steveyegge/trackport/internal/lazytext"
	"github.com/steveyegge/trackport/internal/source"
)

// TaskBuilder collects a task's comments and attachments during traversal.
// Per-task sequence numbers are only assigned by Freeze, once every child
// is known.
//
// The *Task returned by Task is stable from construction on, so it can be
// recorded in occurrence maps before the task is frozen.
type TaskBuilder struct {
	task        *Task
	comments    []*Comment
	attachments []*Attachment
	frozen      bool
}

// NewTaskBuilder starts a task from its record. section may be nil.
func NewTaskBuilder(rec *source.TaskRecord, section *Task) *TaskBuilder {
	return &TaskBuilder{task: &Task{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Name:      rec.Name,
		Section:   section,
		Record:    rec,
	}}
}

// Task returns the task under construction.
func (b *TaskBuilder) Task() *Task { return b.task }

// SetDescription sets the transduced description.
func (b *TaskBuilder) SetDescription(text lazytext.Text) {
	b.mustBeOpen()
	b.task.Description = text
}

// AddComment appends a comment. Order does not matter.
func (b *TaskBuilder) AddComment(c *Comment) {
	b.mustBeOpen()
	b.comments = append(b.comments, c)
}

// AddAttachment appends an attachment. Order does not matter.
func (b *TaskBuilder) AddAttachment(a *Attachment) {
	b.mustBeOpen()
	b.attachments = append(b.attachments, a)
}

// Freeze sorts children by (CreatedAt, ID), drops exact duplicates, assigns
// dense 1..N numbers and returns the finished task. The builder cannot be
// used afterwards.
func (b *TaskBuilder) Freeze() *Task {
	b.mustBeOpen()
	b.frozen = true

	slices.SortStableFunc(b.comments, (*Comment).Compare)
	b.comments = slices.CompactFunc(b.comments, func(x, y *Comment) bool { return x.Compare(y) == 0 })
	for i, c := range b.comments {
		c.NumberInTask = i + 1
	}

	slices.SortStableFunc(b.attachments, (*Attachment).Compare)
	b.attachments = slices.CompactFunc(b.attachments, func(x, y *Attachment) bool { return x.Compare(y) == 0 })
	for i, a := range b.attachments {
		a.NumberInTask = i + 1
	}

	b.task.Comments = b.comments
	b.task.Attachments = b.attachments
	return b.task
}

func (b *TaskBuilder) mustBeOpen() {
	if b.frozen {
		panic("types: task " + b.task.ID + " modified after Freeze")
	}
}
