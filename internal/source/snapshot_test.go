package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
project:
  gid: "100"
  name: Website
  workspace: "1"
users:
  - gid: "u1"
    name: Alice
    email: Alice@Example.com
tasks:
  - gid: "10"
    name: "Backlog:"
    created_at: 2019-03-01T10:00:00Z
  - gid: "11"
    name: Fix header
    created_at: 2019-03-02T10:00:00Z
    created_by: {gid: "u1"}
    followers: [{gid: "u1"}]
    likes: [{user: {gid: "u1"}}]
    completed_at: 2019-03-05T10:00:00Z
    subtasks:
      - gid: "12"
        name: Pick font
        created_at: 2019-03-03T10:00:00Z
        parent: {gid: "11"}
        stories:
          - gid: "s1"
            created_at: 2019-03-03T11:00:00Z
            resource_subtype: comment_added
            html_text: "<body>ok</body>"
    attachments:
      - gid: "a1"
        name: logo.png
        created_at: 2019-03-02T11:00:00Z
        download_url: https://files.example.com/logo.png
  - gid: "12"
    name: Pick font
    created_at: 2019-03-03T10:00:00Z
    parent: {gid: "11"}
`

func parseSample(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := ParseSnapshot(strings.NewReader(sampleYAML), "yaml")
	require.NoError(t, err)
	return snap
}

func TestSnapshotYAML(t *testing.T) {
	ctx := context.Background()
	snap := parseSample(t)

	p, err := snap.Project(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "1", p.WorkspaceID)

	users, err := snap.Users(ctx, p.WorkspaceID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice@Example.com", users[0].Email)

	tasks, err := snap.Tasks(ctx, "100")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "Backlog:", tasks[0].Name)
	assert.Equal(t, time.Date(2019, 3, 2, 10, 0, 0, 0, time.UTC), tasks[1].CreatedAt.UTC())
	require.NotNil(t, tasks[1].CompletedAt)
	assert.Equal(t, "u1", tasks[1].Likes[0].User.ID)
	require.NotNil(t, tasks[2].Parent)
	assert.Equal(t, "11", tasks[2].Parent.ID)

	subs, err := snap.Subtasks(ctx, "11")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "12", subs[0].ID)

	atts, err := snap.Attachments(ctx, "11")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "https://files.example.com/logo.png", atts[0].DownloadURL)
}

func TestSnapshotDuplicateTaskKeepsChildren(t *testing.T) {
	snap := parseSample(t)
	stories, err := snap.Stories(context.Background(), "12")
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "comment_added", stories[0].Subtype)
}

func TestSnapshotNotFound(t *testing.T) {
	ctx := context.Background()
	snap := parseSample(t)

	_, err := snap.Project(ctx, "999")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = snap.Stories(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	users, err := snap.Users(ctx, "other-workspace")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSnapshotCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := parseSample(t).Tasks(ctx, "100")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotJSON(t *testing.T) {
	in := `{"project":{"gid":"1","name":"p","workspace":"w"},"users":[],"tasks":[
		{"gid":"7","name":"t","created_at":"2020-01-01T00:00:00Z","stories":[
			{"gid":"s","created_at":"2020-01-01T00:00:01Z","resource_subtype":"attachment_added","text":"asset_id=5"}]}]}`
	snap, err := ParseSnapshot(strings.NewReader(in), "json")
	require.NoError(t, err)
	stories, err := snap.Stories(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "asset_id=5", stories[0].Text)
}

func TestParseSnapshotErrors(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		format string
	}{
		{"unknown yaml field", "project: {gid: '1'}\nbogus: true\n", "yaml"},
		{"unknown json field", `{"bogus":1}`, "json"},
		{"task without id", "tasks:\n  - name: x\n", "yaml"},
		{"nested task without id", "tasks:\n  - gid: '1'\n    subtasks:\n      - name: y\n", "yaml"},
		{"user without id", "users:\n  - name: x\n", "yaml"},
		{"unknown format", "{}", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot(strings.NewReader(tt.in), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "Website", snap.Document().Project.Name)

	bad := filepath.Join(dir, "export.txt")
	require.NoError(t, os.WriteFile(bad, []byte(sampleYAML), 0o600))
	_, err = LoadSnapshot(bad)
	assert.Error(t, err)

	_, err = LoadSnapshot(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
