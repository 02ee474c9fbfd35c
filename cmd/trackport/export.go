package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/trackport/internal/attachments"
	"github.com/steveyegge/trackport/internal/config"
	"github.com/steveyegge/trackport/internal/convert"
	"github.com/steveyegge/trackport/internal/debug"
	"github.com/steveyegge/trackport/internal/export"
	"github.com/steveyegge/trackport/internal/lockfile"
	"github.com/steveyegge/trackport/internal/markup"
	"github.com/steveyegge/trackport/internal/output"
	"github.com/steveyegge/trackport/internal/resolver"
	"github.com/steveyegge/trackport/internal/source"
	"github.com/steveyegge/trackport/internal/timeparsing"
	"github.com/steveyegge/trackport/internal/ui"
)

// AttachmentsDirName is the subdirectory of the output directory holding
// downloaded files.
const AttachmentsDirName = "attachments"

// exportOptions is the resolved configuration of one export run.
type exportOptions struct {
	Snapshot      string
	Project       string
	Prefix        string
	UserMapping   string
	Output        string
	Format        string
	Since         string
	SectionSuffix string
	StartNumber   int
	Estimates     bool
	Marker        markup.Marker

	Workers       int
	Timeout       time.Duration
	SkipDownloads bool
	// LockWait is how long to wait for another export to release the
	// output directory.
	LockWait time.Duration

	// Fetcher overrides the HTTP fetcher.
	Fetcher attachments.Fetcher
	Now     func() time.Time
}

// exportReport is what a run produced.
type exportReport struct {
	Result       *export.Result
	Payload      *convert.Payload
	Manifest     *export.Manifest
	Files        []string
	ManifestPath string
	Failures     []*attachments.DownloadError
	// DownloadsSkipped is set when attachments were not fetched.
	DownloadsSkipped bool
}

var exportFlags exportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project snapshot into issue tracker import files",
	Long: `Read a project snapshot, download its attachments, resolve task and user
references, and write the import payload (issues, links, attachments, tags,
warnings and settings) plus a run manifest into the output directory.

Flags override trackport.yaml and TRACKPORT_* environment variables.`,
	Example: `  trackport export --snapshot web.yaml --prefix WEB --user-mapping users.txt --output out
  trackport export --snapshot web.json --prefix WEB --since -4w --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := exportFlags
		applyExportOverrides(cmd, &opts)
		report, err := runExport(cmd.Context(), opts, logger)
		if err != nil {
			return err
		}
		if !debug.IsQuiet() {
			printExportSummary(cmd.OutOrStdout(), report)
		}
		if n := len(report.Failures); n > 0 {
			return fmt.Errorf("%d attachment download(s) failed, see %s", n, report.ManifestPath)
		}
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.Snapshot, "snapshot", "", "Project snapshot file (.json, .yaml)")
	f.StringVar(&exportFlags.Project, "project", "", "Project id (default: the snapshot's project)")
	f.StringVar(&exportFlags.Prefix, "prefix", "", "Target project prefix, e.g. WEB")
	f.StringVar(&exportFlags.UserMapping, "user-mapping", "", "File of email=login lines")
	f.StringVarP(&exportFlags.Output, "output", "o", ".", "Output directory")
	f.StringVar(&exportFlags.Format, "format", "json", "Output format (json|yaml|toml)")
	f.StringVar(&exportFlags.Since, "since", "", "Skip tasks created before this time (e.g. -2w, 2024-01-01, 'last month')")
	f.StringVar(&exportFlags.SectionSuffix, "section-suffix", ":", "Name suffix marking section tasks")
	f.IntVar(&exportFlags.StartNumber, "start-number", 1, "Issue number of the oldest task")
	f.Bool("no-estimates", false, "Keep [N] hour estimates in summaries")
	f.IntVar(&exportFlags.Workers, "workers", 4, "Parallel attachment downloads")
	f.DurationVar(&exportFlags.Timeout, "timeout", 5*time.Minute, "Per-attachment download timeout")
	f.BoolVar(&exportFlags.SkipDownloads, "skip-downloads", false, "Record attachments without downloading them")
	f.DurationVar(&exportFlags.LockWait, "wait", 0, "Wait this long for another export to release the output directory")
	rootCmd.AddCommand(exportCmd)
}

// applyExportOverrides fills every flag the user did not set from config.
func applyExportOverrides(cmd *cobra.Command, o *exportOptions) {
	flags := cmd.Flags()
	str := func(flag, key string, dst *string) {
		if !flags.Changed(flag) {
			*dst = config.GetString(key)
		}
	}
	str("snapshot", config.KeySnapshot, &o.Snapshot)
	str("project", config.KeyProject, &o.Project)
	str("prefix", config.KeyPrefix, &o.Prefix)
	str("user-mapping", config.KeyUserMapping, &o.UserMapping)
	str("output", config.KeyOutput, &o.Output)
	str("since", config.KeySince, &o.Since)
	if !flags.Changed("format") {
		o.Format = string(config.GetOutputFormat())
	}
	if !flags.Changed("section-suffix") {
		o.SectionSuffix = config.GetSectionSuffix()
	}
	if !flags.Changed("start-number") {
		o.StartNumber = config.GetInt(config.KeyStartNumber)
	}
	if flags.Changed("no-estimates") {
		noEstimates, _ := flags.GetBool("no-estimates")
		o.Estimates = !noEstimates
	} else {
		o.Estimates = config.GetBool(config.KeyEstimates)
	}
	if !flags.Changed("workers") {
		o.Workers = config.GetDownloadWorkers()
	}
	if !flags.Changed("timeout") {
		o.Timeout = config.GetDownloadTimeout()
	}
	if !flags.Changed("wait") {
		o.LockWait = config.GetDuration(config.KeyLockWait)
	}
	if !flags.Changed("skip-downloads") {
		o.SkipDownloads = config.GetBool(config.KeyDownloadSkip)
	}
	o.Marker = markup.Marker{
		TypeAttr: config.GetString(config.KeyTypeAttr),
		IDAttr:   config.GetString(config.KeyIDAttr),
	}
}

// runExport exports, converts and writes one project. Download failures do
// not abort the run: the payload and manifest are still written and the
// failures are returned in the report.
func runExport(ctx context.Context, o exportOptions, log *slog.Logger) (*exportReport, error) {
	if o.Snapshot == "" {
		return nil, errors.New("no snapshot given (use --snapshot or the snapshot config key)")
	}
	if strings.TrimSpace(o.Prefix) == "" {
		return nil, errors.New("no project prefix given (use --prefix or the prefix config key)")
	}
	format, err := output.ParseFormat(o.Format)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	var since *time.Time
	if o.Since != "" {
		t, err := timeparsing.ParseSince(o.Since, now())
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		since = &t
	}
	logins := resolver.Mapping{}
	if o.UserMapping != "" {
		if logins, err = resolver.LoadUserMappingFile(o.UserMapping); err != nil {
			return nil, err
		}
	}

	snap, err := source.LoadSnapshot(o.Snapshot)
	if err != nil {
		return nil, err
	}
	project := o.Project
	if project == "" {
		project = snap.Document().Project.ID
	}

	lock, err := lockfile.AcquireWait(ctx, o.Output, lockfile.LockInfo{ProjectID: project, Version: Version}, o.LockWait)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("failed to release output lock", "dir", o.Output, "error", err)
		}
	}()

	ex := &export.Exporter{Source: snap, Logger: log}
	if !o.SkipDownloads {
		fetcher := o.Fetcher
		if fetcher == nil {
			fetcher = attachments.NewHTTPFetcher(o.Timeout)
		}
		ex.Downloader = attachments.NewDownloader(fetcher, o.Workers, log)
	}
	attachmentsDir := filepath.Join(o.Output, AttachmentsDirName)
	res, err := ex.Export(ctx, project, attachmentsDir, export.Options{
		StartNumber:   o.StartNumber,
		SectionSuffix: o.SectionSuffix,
		CreatedSince:  since,
		Marker:        o.Marker,
	})
	if err != nil {
		return nil, err
	}

	report := &exportReport{Result: res, DownloadsSkipped: o.SkipDownloads}
	downloads, err := attachments.JoinAll(ctx, res.Downloads)
	if err != nil {
		var failed *attachments.DownloadErrors
		if !errors.As(err, &failed) {
			return nil, err
		}
		for _, f := range failed.Failures {
			log.Warn("attachment download failed", "path", f.Path, "url", f.URL, "error", f.Err)
		}
		report.Failures = failed.Failures
	}

	rc := resolver.NewContext(res, o.Prefix, logins)
	payload, err := convert.Convert(ctx, res, rc, convert.Options{Estimates: o.Estimates, Logger: log})
	if err != nil {
		return nil, err
	}
	payload.Settings.Workspace = snap.Document().Project.WorkspaceID
	report.Payload = payload

	if report.Files, err = output.WriteAll(o.Output, payload.Files(), format); err != nil {
		return nil, err
	}
	report.Manifest = export.NewManifest(res, downloads, len(report.Failures))
	if report.ManifestPath, err = export.WriteManifest(o.Output, report.Manifest, format); err != nil {
		return nil, err
	}
	log.Info("export written", "dir", o.Output, "files", len(report.Files)+1, "run", report.Manifest.RunID)
	return report, nil
}

func printExportSummary(w io.Writer, r *exportReport) {
	m := r.Manifest
	warnings := r.Result.Warnings
	missingLogins := r.Payload.ConversionWarnings.MissingLoginMapping

	fmt.Fprintf(w, "%s %s\n", ui.StatusIcon(warnings.Count()+len(missingLogins), len(r.Failures)),
		ui.RenderCategory("export "+m.ProjectID))
	fmt.Fprintln(w, ui.RenderSeparator())
	fmt.Fprintf(w, "  %d tasks, %d comments, %d attachments, %d users\n", m.Tasks, m.Comments, m.Attachments, m.Users)
	fmt.Fprintf(w, "  %d links, %d tagged issues\n", len(r.Payload.Links.Link), len(r.Payload.Tags.Issues))
	fmt.Fprintf(w, "  %s %s\n", ui.RenderMuted("output"), ui.RenderAccent(filepath.Dir(r.ManifestPath)))
	fmt.Fprintf(w, "  %s %s\n", ui.RenderMuted("run"), m.RunID)

	printMissing(w, "missing tasks", warnings.MissingTasks)
	printMissing(w, "missing users", warnings.MissingUsers)
	printMissing(w, "emails without login", missingLogins)
	if n := len(warnings.TasksWithIncompleteAttachments); n > 0 {
		fmt.Fprintf(w, "%s %s (%d)\n", ui.RenderWarnIcon(), "attachments without creator", n)
		var lines []string
		for _, t := range warnings.TasksWithIncompleteAttachments {
			lines = append(lines, fmt.Sprintf("%s#%d %s: %s", ui.TreeChild, t.TaskNumber,
				ui.TruncateSimple(t.Name, 50), strings.Join(t.Attachments, ", ")))
		}
		printLines(w, lines)
	}
	if n := len(r.Failures); n > 0 {
		fmt.Fprintf(w, "%s %s (%d)\n", ui.RenderFailIcon(), ui.RenderFail("failed downloads"), n)
		var lines []string
		for _, f := range r.Failures {
			lines = append(lines, ui.TreeChild+f.Path+" "+ui.RenderMuted(f.Err.Error()))
		}
		printLines(w, lines)
	}
	if r.DownloadsSkipped && m.Attachments > 0 {
		fmt.Fprintf(w, "%s %s\n", ui.RenderSkipIcon(), ui.RenderMuted("attachment downloads skipped"))
	}
	if m.Complete && len(missingLogins) == 0 {
		fmt.Fprintf(w, "%s %s\n", ui.RenderPassIcon(), ui.RenderPass("no warnings"))
	}
}

func printMissing(w io.Writer, title string, missing []export.MissingID) {
	if len(missing) == 0 {
		return
	}
	fmt.Fprintf(w, "%s %s (%d)\n", ui.RenderWarnIcon(), title, len(missing))
	lines := make([]string, 0, len(missing))
	for _, id := range missing {
		names := make([]string, 0, len(id.ReferencingTasks))
		for _, t := range id.ReferencingTasks {
			names = append(names, ui.TruncateSimple(t.Name, 40))
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", ui.TreeChild, id.ID,
			ui.RenderMuted("referenced by "+strings.Join(names, ", "))))
	}
	printLines(w, lines)
}

func printLines(w io.Writer, lines []string) {
	for _, l := range ui.TruncateList(lines, ui.DefaultMaxListItems) {
		fmt.Fprintln(w, ui.Indent(l, 1))
	}
}
