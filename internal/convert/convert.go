// Package convert turns an exported entity graph into the target tracker's
// import payload: issues, links, attachments and tags.
package convert

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/trackport/internal/export"
	"github.com/steveyegge/trackport/internal/resolver"
	"github.com/steveyegge/trackport/internal/telemetry"
	"github.com/steveyegge/trackport/internal/types"
)

const scopeName = "github.com/steveyegge/trackport/convert"

// Markers added to converted text.
const (
	NoSummary         = "(no summary)"
	AttachedLinksHead = "\n\n***\n\n## Attached Links\n"
	EditedFooter      = "\n\n***\n\n[edited]"
)

// Link type names.
const (
	LinkSubtask = "Subtask"
	LinkSection = "Section"
)

// estimatePattern matches a trailing "[N]" hour estimate in a task name.
var estimatePattern = regexp.MustCompile(`\s*\[(\d+)]\s*$`)

// Options control a conversion.
type Options struct {
	// Estimates strips a trailing "[N]" from task names and records N hours
	// as the issue's estimation.
	Estimates bool
	// Workers bounds parallel text resolution. Defaults to GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// Convert builds the payload for res. Text is resolved through rc.
func Convert(ctx context.Context, res *export.Result, rc *resolver.Context, opts Options) (_ *Payload, err error) {
	ctx, span := telemetry.Start(ctx, scopeName, "convert.project",
		attribute.String("project.id", res.ProjectID),
		attribute.Int("tasks", len(res.Tasks)),
	)
	defer func() { telemetry.End(span, err) }()

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	issues := make([]Issue, len(res.Tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, t := range res.Tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			issues[i] = convertTask(t, res, rc, opts, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = &export.Warnings{}
	}
	p := &Payload{
		Issues:         Issues{Issue: issues},
		Links:          Links{Link: collectLinks(res, rc)},
		Attachments:    Attachments{Attachment: collectAttachments(res, rc, log)},
		Tags:           TagsForIssues{Issues: collectTags(res, rc)},
		ExportWarnings: warnings,
		ConversionWarnings: ConversionWarnings{
			MissingLoginMapping: resolver.MissingLogins(res, rc.Mapping()),
		},
		Settings: Settings{Project: res.ProjectID, ProjectPrefix: rc.Prefix()},
	}
	log.Info("conversion finished",
		"issues", len(p.Issues.Issue),
		"links", len(p.Links.Link),
		"attachments", len(p.Attachments.Attachment),
		"missing_logins", len(p.ConversionWarnings.MissingLoginMapping))
	return p, nil
}

// SplitEstimate removes a trailing "[N]" from name and returns the rest with
// N hours in minutes. ok is false when name has no estimate.
func SplitEstimate(name string) (rest string, minutes int64, ok bool) {
	m := estimatePattern.FindStringSubmatchIndex(name)
	if m == nil {
		return name, 0, false
	}
	hours, err := strconv.ParseInt(name[m[2]:m[3]], 10, 64)
	if err != nil || hours > (1<<62)/60 {
		return name, 0, false
	}
	return name[:m[0]], hours * 60, true
}

type issueBuilder struct {
	issue Issue
}

func (b *issueBuilder) set(name string, values ...string) {
	if len(values) == 0 {
		return
	}
	b.issue.Fields = append(b.issue.Fields, Field{Name: name, Values: values})
}

func (b *issueBuilder) setTime(name string, t *time.Time) {
	if t != nil {
		b.set(name, millis(*t))
	}
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func convertTask(t *types.Task, res *export.Result, rc *resolver.Context, opts Options, log *slog.Logger) Issue {
	rec := t.Record
	var b issueBuilder

	var updater string
	for _, c := range t.Comments {
		switch c.Kind {
		case types.KindNotesChanged:
			updater = rc.UserLogin(res.UserByID[c.AuthorID])
		case types.KindCommentAdded:
			b.issue.Comments = append(b.issue.Comments, convertComment(c, res, rc))
		}
	}

	name := t.Name
	var estimate string
	if opts.Estimates {
		if rest, minutes, ok := SplitEstimate(name); ok {
			name = rest
			estimate = strconv.FormatInt(minutes, 10)
		}
	}
	if name == "" {
		name = NoSummary
	}

	b.set("numberInProject", strconv.Itoa(t.NumberInProject))
	b.set("summary", name)
	b.set("description", description(t, rc))
	b.set("markdown", "true")
	b.set("created", millis(t.CreatedAt))
	if rec != nil {
		b.setTime("updated", rec.ModifiedAt)
	}
	if updater != "" {
		b.set("updaterName", updater)
	}
	if rec == nil {
		log.Warn("task has no source record", "task", t.ID)
		return b.issue
	}
	b.setTime("resolved", rec.CompletedAt)
	if rec.CreatedBy != nil {
		b.set("reporterName", rc.Login(userEmail(res, rec.CreatedBy.ID, rec.CreatedBy.Email)))
	}
	var voters, watchers []string
	for _, l := range rec.Likes {
		voters = append(voters, rc.Login(userEmail(res, l.User.ID, l.User.Email)))
	}
	for _, f := range rec.Followers {
		watchers = append(watchers, rc.Login(userEmail(res, f.ID, f.Email)))
	}
	b.set("voterName", voters...)
	b.set("watcherName", watchers...)

	if rec.Assignee != nil && rec.Assignee.ID != "" {
		b.set("Assignee", rc.Login(userEmail(res, rec.Assignee.ID, rec.Assignee.Email)))
	}
	switch {
	case rec.DueAt != nil:
		b.setTime("Due Date", rec.DueAt)
	case rec.DueOn != "":
		b.set("Due Date", rec.DueOn)
	}
	if estimate != "" {
		b.set("Estimation", estimate)
	}
	if rec.CompletedAt != nil {
		b.set("State", "Done")
	}
	return b.issue
}

// userEmail prefers the email of the exported user over the one embedded in
// the reference, which the source may omit.
func userEmail(res *export.Result, id, fallback string) string {
	if u, ok := res.UserByID[id]; ok && u.Email != "" {
		return u.Email
	}
	return fallback
}

func convertComment(c *types.Comment, res *export.Result, rc *resolver.Context) Comment {
	text := rc.Resolve(c.Body())
	if c.Edited {
		text += EditedFooter
	}
	out := Comment{
		Created:  c.CreatedAt.UnixMilli(),
		Text:     text,
		Markdown: true,
	}
	if c.AuthorID != "" {
		out.Author = rc.UserLogin(res.UserByID[c.AuthorID])
	}
	return out
}

// description resolves the task description and lists attachments that
// only exist as external links.
func description(t *types.Task, rc *resolver.Context) string {
	var sb strings.Builder
	sb.WriteString(rc.Resolve(t.Description))
	first := true
	for _, a := range t.Attachments {
		if !a.IsLinkOnly() {
			continue
		}
		if first {
			sb.WriteString(AttachedLinksHead)
			first = false
		}
		sb.WriteString("- [")
		sb.WriteString(a.Name)
		sb.WriteString(" @ ")
		sb.WriteString(a.Host)
		sb.WriteString("](")
		sb.WriteString(a.ViewURL)
		sb.WriteString(")\n")
	}
	return sb.String()
}

func collectLinks(res *export.Result, rc *resolver.Context) []Link {
	var links []Link
	add := func(target *types.Task, from, typ string) {
		if src, ok := res.TaskByID[from]; ok {
			links = append(links, Link{Source: rc.TaskKey(src), Target: rc.TaskKey(target), TypeName: typ})
		}
	}
	for _, t := range res.Tasks {
		if t.Record != nil && t.Record.Parent != nil {
			add(t, t.Record.Parent.ID, LinkSubtask)
		}
		if t.Section != nil {
			add(t, t.Section.ID, LinkSection)
		}
	}
	return links
}

func collectAttachments(res *export.Result, rc *resolver.Context, log *slog.Logger) []Attachment {
	var out []Attachment
	for _, t := range res.Tasks {
		for _, a := range t.Attachments {
			att := Attachment{
				TaskNumberInProject: t.NumberInProject,
				AuthorLogin:         rc.UserLogin(a.Creator),
				Created:             a.CreatedAt.UnixMilli(),
				Name:                a.Name,
			}
			switch {
			case a.DownloadPath != "":
				rel, err := filepath.Rel(res.AttachmentsDir, a.DownloadPath)
				if err != nil {
					log.Warn("attachment outside attachments directory", "path", a.DownloadPath, "error", err)
					rel = a.DownloadPath
				}
				att.Path = filepath.ToSlash(rel)
			case a.ViewURL != "":
				att.Link = a.ViewURL
			}
			out = append(out, att)
		}
	}
	return out
}

func collectTags(res *export.Result, rc *resolver.Context) []IssueTags {
	var out []IssueTags
	for _, t := range res.Tasks {
		if t.Record == nil {
			continue
		}
		tags := normalizeTags(t.Record.Tags)
		if len(tags) == 0 {
			continue
		}
		out = append(out, IssueTags{ID: rc.TaskKey(t), Tags: tags})
	}
	return out
}

// normalizeTags trims whitespace, removes empty strings, and deduplicates
// tags while preserving order.
func normalizeTags(ss []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
