package ui

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func TestTruncateSimple(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short text unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncate with ellipsis", "hello world", 8, "hello..."},
		{"very short maxLen", "hello world", 3, "..."},
		{"empty string", "", 10, ""},
		{"unicode chars", "héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateSimple(tt.input, tt.maxLen))
		})
	}
}

func TestTruncateList(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	assert.Equal(t, items, TruncateList(items, 4))

	got := TruncateList(items, 2)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b"}, got[:2])
	assert.Contains(t, ansi.ReplaceAllString(got[2], ""), "and 2 more")
	assert.Len(t, items, 4, "input is not modified")
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "    a\n\n    b", Indent("a\n\nb", 2))
}

func TestShouldUseColor(t *testing.T) {
	t.Run("NO_COLOR disables color", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("CLICOLOR_FORCE", "1")
		assert.False(t, ShouldUseColor())
	})
	t.Run("CLICOLOR=0 disables color", func(t *testing.T) {
		t.Setenv("CLICOLOR", "0")
		t.Setenv("CLICOLOR_FORCE", "1")
		assert.False(t, ShouldUseColor())
	})
	t.Run("CLICOLOR_FORCE enables color", func(t *testing.T) {
		t.Setenv("CLICOLOR", "")
		t.Setenv("CLICOLOR_FORCE", "1")
		assert.True(t, ShouldUseColor())
	})
}

func TestRenderMarkdownWithoutColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	md := "# Title\n\nsee **WEB-4**"
	assert.Equal(t, md, RenderMarkdown(md))
}

func TestRenderMarkdownWidth(t *testing.T) {
	for _, dark := range []bool{true, false} {
		out, err := RenderMarkdownWidth("Blocked by WEB-4, ask @ann", 200, dark)
		require.NoError(t, err)
		assert.Contains(t, ansi.ReplaceAllString(out, ""), "Blocked by WEB-4, ask @ann")
	}
}

func TestContentHeight(t *testing.T) {
	assert.Equal(t, 0, contentHeight(""))
	assert.Equal(t, 1, contentHeight("one"))
	assert.Equal(t, 3, contentHeight("a\nb\nc"))
}

func TestPagerCommand(t *testing.T) {
	t.Setenv("TRACKPORT_PAGER", "")
	t.Setenv("PAGER", "")
	assert.Equal(t, "less", pagerCommand())
	t.Setenv("PAGER", "more")
	assert.Equal(t, "more", pagerCommand())
	t.Setenv("TRACKPORT_PAGER", "bat -p")
	assert.Equal(t, "bat -p", pagerCommand())
}

func TestToPagerDisabled(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ToPager("line 1\nline 2\n", PagerOptions{NoPager: true, Out: &buf}))
	assert.Equal(t, "line 1\nline 2\n", buf.String())

	buf.Reset()
	t.Setenv("TRACKPORT_NO_PAGER", "1")
	require.NoError(t, ToPager("x", PagerOptions{Out: &buf}))
	assert.Equal(t, "x", buf.String())
}

func TestStatusIcon(t *testing.T) {
	strip := func(s string) string { return strings.TrimSpace(ansi.ReplaceAllString(s, "")) }
	assert.Equal(t, IconPass, strip(StatusIcon(0, 0)))
	assert.Equal(t, IconWarn, strip(StatusIcon(2, 0)))
	assert.Equal(t, IconFail, strip(StatusIcon(2, 1)))
}
