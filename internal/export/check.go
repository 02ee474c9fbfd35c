package export

import (
	"fmt"

	"github.com/steveyegge/trackport/internal/types"
)

// ReferencingTask identifies a task in a warning.
type ReferencingTask struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	SourceID string `json:"source_id" yaml:"source_id" toml:"source_id"`
}

// MissingID is a referenced id with no matching entity.
type MissingID struct {
	ID               string            `json:"id" yaml:"id" toml:"id"`
	ReferencingTasks []ReferencingTask `json:"referencing_tasks" yaml:"referencing_tasks" toml:"referencing_tasks"`
}

// IncompleteAttachments lists the attachments of one task whose creator
// could not be determined.
type IncompleteAttachments struct {
	TaskNumber  int      `json:"task_number" yaml:"task_number" toml:"task_number"`
	TaskID      string   `json:"task_id" yaml:"task_id" toml:"task_id"`
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Attachments []string `json:"attachments_without_creator" yaml:"attachments_without_creator" toml:"attachments_without_creator"`
}

// Warnings is the report produced once the graph is frozen. None of these
// stop an export; they are meant for human review.
type Warnings struct {
	MissingTasks                   []MissingID             `json:"missing_tasks" yaml:"missing_tasks" toml:"missing_tasks"`
	MissingUsers                   []MissingID             `json:"missing_users" yaml:"missing_users" toml:"missing_users"`
	TasksWithIncompleteAttachments []IncompleteAttachments `json:"tasks_with_incomplete_attachments" yaml:"tasks_with_incomplete_attachments" toml:"tasks_with_incomplete_attachments"`
}

// Count returns the total number of warning entries.
func (w *Warnings) Count() int {
	if w == nil {
		return 0
	}
	return len(w.MissingTasks) + len(w.MissingUsers) + len(w.TasksWithIncompleteAttachments)
}

// CheckReferences returns one entry per referenced id for which present is
// false, sorted by id, each listing every referencing task in task order.
func CheckReferences(occ *types.OccurrenceMap, present func(id string) bool) []MissingID {
	dangling := occ.Without(present)
	out := make([]MissingID, 0, dangling.Len())
	for _, id := range dangling.Keys() {
		m := MissingID{ID: id}
		for _, t := range dangling.Tasks(id) {
			m.ReferencingTasks = append(m.ReferencingTasks, ReferencingTask{Name: t.Name, SourceID: t.ID})
		}
		out = append(out, m)
	}
	return out
}

// CheckAttachmentCreators reports, per task, the attachments that never got
// a creator. Tasks without such attachments are omitted.
func CheckAttachmentCreators(tasks []*types.Task) []IncompleteAttachments {
	var out []IncompleteAttachments
	for _, t := range tasks {
		var names []string
		for _, a := range t.Attachments {
			if a.Creator == nil {
				names = append(names, a.Name)
			}
		}
		if len(names) > 0 {
			out = append(out, IncompleteAttachments{
				TaskNumber:  t.NumberInProject,
				TaskID:      t.ID,
				Name:        t.Name,
				Attachments: names,
			})
		}
	}
	return out
}

// finish freezes the graph: tasks are sorted and numbered, the email map is
// derived and the consistency checks run.
func (b *builder) finish(projectID string) *Result {
	sorted := make([]*types.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		sorted = append(sorted, t)
	}
	types.SortTasks(sorted)
	for i, t := range sorted {
		t.NumberInProject = b.opts.StartNumber + i
	}

	hasTask := func(id string) bool { _, ok := b.tasks[id]; return ok }
	hasUser := func(id string) bool { _, ok := b.users[id]; return ok }

	emails := types.NewOccurrenceMap()
	known := b.userOcc.Filter(hasUser)
	for _, id := range known.Keys() {
		u := b.users[id]
		if u == nil {
			panic(fmt.Sprintf("export: referenced user %s missing from user map after filtering", id))
		}
		if u.Email == "" {
			b.log.Warn("referenced user has no email", "user", id)
			continue
		}
		for _, t := range known.Tasks(id) {
			emails.Add(u.Email, t)
		}
	}

	return &Result{
		ProjectID:        projectID,
		AttachmentsDir:   b.base,
		Tasks:            sorted,
		TaskByID:         b.tasks,
		UserByID:         b.users,
		TaskOccurrences:  b.taskOcc,
		UserOccurrences:  b.userOcc,
		EmailOccurrences: emails,
		Warnings: &Warnings{
			MissingTasks:                   CheckReferences(b.taskOcc, hasTask),
			MissingUsers:                   CheckReferences(b.userOcc, hasUser),
			TasksWithIncompleteAttachments: CheckAttachmentCreators(sorted),
		},
		Downloads: b.downloads,
	}
}
