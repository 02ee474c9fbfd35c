package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/trackport/internal/config"
)

func TestPreviewMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "<body>hello</body>", "hello"},
		{"styles", "<body><strong>bold</strong> and <em>it</em></body>", "**bold** and *it*"},
		{
			"reference keeps href",
			`<body>see <a href="https://app/0/0/12" data-asana-type="task" data-asana-gid="12">Deploy</a></body>`,
			"see https://app/0/0/12",
		},
		{"malformed", "<body><b>unclosed</body>", "[parsing error]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, previewMarkdown(tt.in))
		})
	}
}

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunFlushesTelemetryOnFailure(t *testing.T) {
	var flushed int
	orig := shutdownTelemetry
	shutdownTelemetry = func(context.Context) { flushed++ }
	t.Cleanup(func() { shutdownTelemetry = orig })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"preview", "--raw", "--no-pager", filepath.Join(t.TempDir(), "missing.html")})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	assert.Equal(t, 1, run(context.Background()))
	assert.Equal(t, 1, flushed)
	assert.Contains(t, out.String(), "Error: ")

	rootCmd.SetArgs([]string{"version"})
	assert.Equal(t, 0, run(context.Background()))
	assert.Equal(t, 2, flushed)
}

func TestPreviewCommandStdin(t *testing.T) {
	out, err := runCommand(t, "<body><ol><li>one</li><li>two</li></ol></body>", "preview", "--raw", "--no-pager", "-")
	require.NoError(t, err)
	assert.Equal(t, "\n1. one\n2. two\n\n", out)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "trackport version "+Version), out)

	out, err = runCommand(t, "", "version", "--json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestValidatePrefix(t *testing.T) {
	for _, ok := range []string{"WEB", "A1", "MY_PROJ", " WEB "} {
		assert.NoError(t, validatePrefix(ok), ok)
	}
	for _, bad := range []string{"", "web", "1AB", "WE-B"} {
		assert.Error(t, validatePrefix(bad), bad)
	}
	assert.Error(t, validateSnapshot(" "))
}

func TestWriteInitConfigIsReadByConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackport.yaml")
	require.NoError(t, writeInitConfig(path, initAnswers{
		Snapshot:     "web.yaml",
		Prefix:       " WEB ",
		OutputFormat: "yaml",
		Estimates:    false,
	}))

	require.NoError(t, config.InitializeWithFile(path))
	t.Cleanup(func() { _ = config.Initialize() })
	assert.Equal(t, "WEB", config.GetString(config.KeyPrefix))
	assert.Equal(t, "web.yaml", config.GetString(config.KeySnapshot))
	assert.Equal(t, ".", config.GetString(config.KeyOutput))
	assert.Equal(t, "yaml", config.GetString(config.KeyOutputFormat))
	assert.False(t, config.GetBool(config.KeyEstimates))
}

func TestInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackport.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefix: X\n"), 0o600))
	t.Cleanup(func() { _ = initCmd.Flags().Set("file", config.FileName) })
	_, err := runCommand(t, "", "init", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
