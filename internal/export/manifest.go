package export

import (
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/trackport/internal/attachments"
	"github.com/steveyegge/trackport/internal/output"
)

// ManifestName is the base name of the manifest file.
const ManifestName = "manifest"

// Manifest summarizes one export run.
type Manifest struct {
	RunID            string               `json:"run_id" yaml:"run_id" toml:"run_id"`
	ExportedAt       time.Time            `json:"exported_at" yaml:"exported_at" toml:"exported_at"`
	ProjectID        string               `json:"project_id" yaml:"project_id" toml:"project_id"`
	Tasks            int                  `json:"tasks" yaml:"tasks" toml:"tasks"`
	Comments         int                  `json:"comments" yaml:"comments" toml:"comments"`
	Attachments      int                  `json:"attachments" yaml:"attachments" toml:"attachments"`
	Users            int                  `json:"users" yaml:"users" toml:"users"`
	MissingTasks     int                  `json:"missing_tasks" yaml:"missing_tasks" toml:"missing_tasks"`
	MissingUsers     int                  `json:"missing_users" yaml:"missing_users" toml:"missing_users"`
	Incomplete       int                  `json:"tasks_with_incomplete_attachments" yaml:"tasks_with_incomplete_attachments" toml:"tasks_with_incomplete_attachments"`
	Downloads        []attachments.Result `json:"downloads,omitempty" yaml:"downloads,omitempty" toml:"downloads,omitempty"`
	DownloadFailures int                  `json:"download_failures" yaml:"download_failures" toml:"download_failures"`
	Complete         bool                 `json:"complete" yaml:"complete" toml:"complete"`
}

// NewManifest summarizes res. downloads are the joined download results and
// failures the number of failed downloads.
func NewManifest(res *Result, downloads []attachments.Result, failures int) *Manifest {
	m := &Manifest{
		RunID:            uuid.NewString(),
		ExportedAt:       time.Now().UTC(),
		ProjectID:        res.ProjectID,
		Tasks:            len(res.Tasks),
		Users:            len(res.UserByID),
		MissingTasks:     len(res.Warnings.MissingTasks),
		MissingUsers:     len(res.Warnings.MissingUsers),
		Incomplete:       len(res.Warnings.TasksWithIncompleteAttachments),
		DownloadFailures: failures,
	}
	for _, t := range res.Tasks {
		m.Comments += len(t.Comments)
		m.Attachments += len(t.Attachments)
	}
	for _, d := range downloads {
		if d.Digest != "" {
			m.Downloads = append(m.Downloads, d)
		}
	}
	m.Complete = failures == 0 && res.Warnings.Count() == 0
	return m
}

// WriteManifest writes m to dir atomically and returns the file path.
func WriteManifest(dir string, m *Manifest, f output.Format) (string, error) {
	return output.Write(dir, ManifestName, m, f)
}
