package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/trackport/internal/attachments"
	"github.com/steveyegge/trackport/internal/config"
	"github.com/steveyegge/trackport/internal/convert"
	"github.com/steveyegge/trackport/internal/export"
	"github.com/steveyegge/trackport/internal/lockfile"
	"github.com/steveyegge/trackport/internal/resolver"
)

const snapshotYAML = `
project: {gid: "p1", name: Website, workspace: "w1"}
users:
  - {gid: "u1", name: Ann, email: ann@example.com}
  - {gid: "u2", name: Bob, email: bob@example.com}
tasks:
  - gid: "10"
    name: "Backlog:"
    created_at: 2020-01-01T00:00:00Z
  - gid: "11"
    name: "Fix login [2]"
    created_at: 2020-01-03T00:00:00Z
    created_by: {gid: "u1"}
    assignee: {gid: "u2"}
    html_notes: '<body>after <a href="https://app/0/0/12" data-asana-type="task" data-asana-gid="12">deploy</a></body>'
    attachments:
      - gid: "501"
        name: shot.png
        created_at: 2020-01-03T02:00:00Z
        download_url: mem://shot.png
    stories:
      - gid: "s1"
        created_at: 2020-01-03T02:00:00Z
        created_by: {gid: "u1"}
        resource_subtype: attachment_added
        text: "attached https://app/get_asset?asset_id=501"
  - gid: "12"
    name: Deploy
    created_at: 2020-03-01T00:00:00Z
`

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fetchFunc func(ctx context.Context, url string, w io.Writer) error

func (f fetchFunc) Fetch(ctx context.Context, url string, w io.Writer) error { return f(ctx, url, w) }

func memFetcher(files map[string]string) attachments.Fetcher {
	return fetchFunc(func(_ context.Context, url string, w io.Writer) error {
		body, ok := files[url]
		if !ok {
			return errors.New("404 not found")
		}
		_, err := io.WriteString(w, body)
		return err
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func baseOptions(t *testing.T) exportOptions {
	t.Helper()
	dir := t.TempDir()
	return exportOptions{
		Snapshot:    writeFile(t, dir, "snap.yaml", snapshotYAML),
		Prefix:      "WEB",
		UserMapping: writeFile(t, dir, "users.txt", "# team\nann@example.com=ann\n"),
		Output:      filepath.Join(dir, "out"),
		Format:      "json",
		StartNumber: 1,
		Estimates:   true,
		Workers:     2,
		Fetcher:     memFetcher(map[string]string{"mem://shot.png": "png"}),
	}
}

func TestRunExport(t *testing.T) {
	o := baseOptions(t)
	report, err := runExport(context.Background(), o, quiet())
	require.NoError(t, err)

	assert.Empty(t, report.Failures)
	require.Len(t, report.Files, 7)
	assert.FileExists(t, filepath.Join(o.Output, "issues.json"))
	assert.FileExists(t, filepath.Join(o.Output, AttachmentsDirName, "11", "501", "shot.png"))
	_, err = lockfile.ReadLockInfo(o.Output)
	assert.ErrorIs(t, err, lockfile.ErrNotHeld, "lock released")
	assert.Equal(t, filepath.Join(o.Output, "manifest.json"), report.ManifestPath)

	data, err := os.ReadFile(filepath.Join(o.Output, "issues.json"))
	require.NoError(t, err)
	var issues convert.Issues
	require.NoError(t, json.Unmarshal(data, &issues))
	require.Len(t, issues.Issue, 3)
	fix := issues.Issue[1]
	assert.Equal(t, "Fix login", fix.Value("summary"))
	assert.Equal(t, "120", fix.Value("Estimation"))
	assert.Equal(t, "after WEB-3", fix.Value("description"))
	assert.Equal(t, "ann", fix.Value("reporterName"))
	assert.Equal(t, resolver.UnknownLogin, fix.Value("Assignee"))

	assert.Equal(t, "w1", report.Payload.Settings.Workspace)
	assert.Equal(t, "p1", report.Manifest.ProjectID)
	require.Len(t, report.Manifest.Downloads, 1)
	assert.Equal(t, int64(3), report.Manifest.Downloads[0].Size)
	assert.True(t, report.Manifest.Complete)
	require.Len(t, report.Payload.ConversionWarnings.MissingLoginMapping, 1)

	var out bytes.Buffer
	printExportSummary(&out, report)
	assert.Contains(t, out.String(), "3 tasks, 1 comments, 1 attachments, 2 users")
	assert.Contains(t, out.String(), "bob@example.com")
}

func TestRunExportSince(t *testing.T) {
	o := baseOptions(t)
	o.Since = "-30d"
	o.Now = func() time.Time { return time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC) }
	report, err := runExport(context.Background(), o, quiet())
	require.NoError(t, err)
	require.Len(t, report.Result.Tasks, 1)
	assert.Equal(t, "12", report.Result.Tasks[0].ID)
}

func TestRunExportDownloadFailure(t *testing.T) {
	o := baseOptions(t)
	o.Fetcher = memFetcher(nil)
	report, err := runExport(context.Background(), o, quiet())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Manifest.DownloadFailures)
	assert.FileExists(t, report.ManifestPath)
	assert.NoFileExists(t, filepath.Join(o.Output, AttachmentsDirName, "11", "501", "shot.png"))

	var out bytes.Buffer
	printExportSummary(&out, report)
	assert.Contains(t, out.String(), "failed downloads")
}

func TestRunExportSkipDownloads(t *testing.T) {
	o := baseOptions(t)
	o.SkipDownloads = true
	o.Format = "yaml"
	report, err := runExport(context.Background(), o, quiet())
	require.NoError(t, err)
	assert.Empty(t, report.Result.Downloads)
	assert.FileExists(t, filepath.Join(o.Output, "manifest.yaml"))
	assert.NoDirExists(t, filepath.Join(o.Output, AttachmentsDirName))

	var out bytes.Buffer
	printExportSummary(&out, report)
	assert.Contains(t, out.String(), "attachment downloads skipped")
}

func TestRunExportErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*exportOptions)
		want   string
	}{
		{"no snapshot", func(o *exportOptions) { o.Snapshot = "" }, "no snapshot"},
		{"no prefix", func(o *exportOptions) { o.Prefix = " " }, "no project prefix"},
		{"bad format", func(o *exportOptions) { o.Format = "xml" }, "xml"},
		{"bad since", func(o *exportOptions) { o.Since = "whenever" }, "invalid --since"},
		{"missing mapping", func(o *exportOptions) { o.UserMapping = "/nonexistent/users.txt" }, "users.txt"},
		{"unknown project", func(o *exportOptions) { o.Project = "nope" }, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := baseOptions(t)
			tt.modify(&o)
			_, err := runExport(context.Background(), o, quiet())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunExportOutputLocked(t *testing.T) {
	o := baseOptions(t)
	lock, err := lockfile.Acquire(o.Output, lockfile.LockInfo{ProjectID: "p1"})
	require.NoError(t, err)
	defer func() { _ = lock.Release() }()

	_, err = runExport(context.Background(), o, quiet())
	require.ErrorIs(t, err, lockfile.ErrLockBusy)
	assert.NoFileExists(t, filepath.Join(o.Output, "issues.json"))
}

func TestApplyExportOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "trackport.yaml", `
prefix: CFG
output-format: toml
estimates: false
start-number: 100
download:
  workers: 8
  timeout: 30s
lock-wait: 1m
`)
	require.NoError(t, config.InitializeWithFile(cfg))
	t.Cleanup(func() { _ = config.Initialize() })

	cmd := exportCmd
	require.NoError(t, cmd.Flags().Set("prefix", "FLAG"))
	t.Cleanup(func() {
		exportFlags.Prefix = ""
		cmd.Flags().Lookup("prefix").Changed = false
	})

	var o exportOptions
	o.Prefix = "FLAG"
	applyExportOverrides(cmd, &o)
	assert.Equal(t, "FLAG", o.Prefix, "flag wins over config")
	assert.Equal(t, "toml", o.Format)
	assert.False(t, o.Estimates)
	assert.Equal(t, 100, o.StartNumber)
	assert.Equal(t, 8, o.Workers)
	assert.Equal(t, 30*time.Second, o.Timeout)
	assert.Equal(t, time.Minute, o.LockWait)
	assert.Equal(t, ":", o.SectionSuffix)
	assert.Equal(t, "data-asana-type", o.Marker.TypeAttr)
}

func TestPrintMissingTruncates(t *testing.T) {
	var missing []export.MissingID
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		missing = append(missing, export.MissingID{ID: id, ReferencingTasks: []export.ReferencingTask{{Name: "T", SourceID: "1"}}})
	}
	var out bytes.Buffer
	printMissing(&out, "missing users", missing)
	assert.Contains(t, out.String(), "missing users (12)")
	assert.Contains(t, out.String(), "and 2 more")
	assert.NotContains(t, out.String(), "⎿ k ")
}
