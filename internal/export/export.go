// Package export builds the entity graph of a source project.
//
// Export walks the project's tasks depth-first, top-down, and produces frozen
// tasks with transduced descriptions and comments, numbered attachments and
// per-project task numbers. Every reference to a task or user is recorded in
// an occurrence map so that dangling references can be reported instead of
// silently lost.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/trackport/internal/attachments"
	"github.com/steveyegge/trackport/internal/markup"
	"github.com/steveyegge/trackport/internal/source"
	"github.com/steveyegge/trackport/internal/telemetry"
	"github.com/steveyegge/trackport/internal/types"
)

const scopeName = "github.com/steveyegge/trackport/export"

// Options control an export.
type Options struct {
	// StartNumber is the NumberInProject of the oldest task. Defaults to 1.
	StartNumber int
	// SectionSuffix marks top-level tasks that name a section. Defaults to ":".
	SectionSuffix string
	// CreatedSince skips tasks (and their subtasks) created before it.
	CreatedSince *time.Time
	// Marker names the link attributes identifying entity references.
	Marker markup.Marker
}

func (o Options) withDefaults() Options {
	if o.StartNumber == 0 {
		o.StartNumber = 1
	}
	if o.SectionSuffix == "" {
		o.SectionSuffix = ":"
	}
	if o.Marker.TypeAttr == "" {
		o.Marker = markup.DefaultMarker
	}
	return o
}

// Exporter reads a project from a Source.
type Exporter struct {
	Source source.Source
	// Downloader fetches attachments with a download URL. When nil,
	// attachments are recorded without a local copy.
	Downloader *attachments.Downloader
	Logger     *slog.Logger
}

// Result is the frozen entity graph.
type Result struct {
	ProjectID      string
	AttachmentsDir string

	// Tasks in (CreatedAt, ID) order, numbered from Options.StartNumber.
	Tasks    []*types.Task
	TaskByID map[string]*types.Task
	UserByID map[string]*types.User

	// TaskOccurrences and UserOccurrences hold every recorded reference,
	// including dangling ones.
	TaskOccurrences *types.OccurrenceMap
	UserOccurrences *types.OccurrenceMap
	// EmailOccurrences maps the email of every referenced, known user to the
	// referencing tasks.
	EmailOccurrences *types.OccurrenceMap

	Warnings *Warnings

	// Downloads are the pending attachment transfers, in scheduling order.
	Downloads []*attachments.Future
}

// Export builds the graph of projectID. Attachment files are placed under
// attachmentsDir. Downloads are scheduled but not awaited; callers join
// Result.Downloads before finalizing output.
func (e *Exporter) Export(ctx context.Context, projectID, attachmentsDir string, opts Options) (_ *Result, err error) {
	if e.Source == nil {
		return nil, errors.New("export: no source configured")
	}
	opts = opts.withDefaults()
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, span := telemetry.Start(ctx, scopeName, "export.project", attribute.String("project.id", projectID))
	defer func() { telemetry.End(span, err) }()

	b := newBuilder(e, opts, log, attachmentsDir)

	project, err := e.Source.Project(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	// Rich-text user references carry only an id, so load every workspace
	// user up front.
	users, err := e.Source.Users(ctx, project.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for _, u := range users {
		b.users[u.ID] = &types.User{ID: u.ID, Name: u.Name, Email: u.Email}
	}

	top, err := e.Source.Tasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if err := b.processTasks(ctx, top, 0); err != nil {
		return nil, err
	}

	res := b.finish(projectID)
	recordCounts(ctx, res)
	log.Info("export finished",
		"project", projectID,
		"tasks", len(res.Tasks),
		"users", len(res.UserByID),
		"downloads", len(res.Downloads),
		"warnings", res.Warnings.Count())
	return res, nil
}

func recordCounts(ctx context.Context, res *Result) {
	m := telemetry.Meter(scopeName)
	tasks, _ := m.Int64Counter("trackport.export.tasks",
		metric.WithDescription("Tasks exported"),
	)
	warnings, _ := m.Int64Counter("trackport.export.warnings",
		metric.WithDescription("Export warnings by kind"),
	)
	tasks.Add(ctx, int64(len(res.Tasks)))
	w := res.Warnings
	warnings.Add(ctx, int64(len(w.MissingTasks)), metric.WithAttributes(attribute.String("kind", "missing_task")))
	warnings.Add(ctx, int64(len(w.MissingUsers)), metric.WithAttributes(attribute.String("kind", "missing_user")))
	warnings.Add(ctx, int64(len(w.TasksWithIncompleteAttachments)),
		metric.WithAttributes(attribute.String("kind", "incomplete_attachments")))
}
