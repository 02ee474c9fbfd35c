package timeparsing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday, January 15, 2025, 10:00
var now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestParseCompactDuration(t *testing.T) {
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		input string
		want  time.Time
	}{
		{"+6h", time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)},
		{"+1d", time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)},
		{"+2w", time.Date(2025, 6, 29, 12, 0, 0, 0, time.UTC)},
		{"3m", time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)},
		{"+1y", time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)},
		{"-1d", time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)},
		{"-2w", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"-6h", time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, base)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v", got)
		})
	}

	for _, bad := range []string{"", "tomorrow", "6h+", "++1d", "1x", "2025-01-15"} {
		assert.False(t, IsCompactDuration(bad), bad)
		_, err := ParseCompactDuration(bad, base)
		assert.Error(t, err, bad)
	}
}

func TestParseCompactDurationLeapYear(t *testing.T) {
	got, err := ParseCompactDuration("+1d", time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), got)
}

func TestParseAbsolute(t *testing.T) {
	got, err := ParseAbsolute("2025-02-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseAbsolute("2025-03-15T14:30:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, 14, got.Hour())

	_, err = ParseAbsolute("15/01/2025", now)
	assert.Error(t, err)
}

func TestParseNaturalLanguage(t *testing.T) {
	tests := []struct {
		input   string
		wantDay int
	}{
		{"tomorrow", 16},
		{"yesterday", 14},
		{"in 3 days", 18},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNaturalLanguage(tt.input, now)
			require.NoError(t, err)
			assert.Equal(t, time.January, got.Month())
			assert.Equal(t, tt.wantDay, got.Day())
		})
	}

	_, err := ParseNaturalLanguage("not a date at all", now)
	assert.ErrorIs(t, err, ErrNoTime)
	_, err = ParseNaturalLanguage("  ", now)
	assert.ErrorIs(t, err, ErrNoTime)
}

func TestParseRelativeTimeLayers(t *testing.T) {
	got, err := ParseRelativeTime("+1d", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 1), got, "compact duration keeps the time of day")

	got, err = ParseRelativeTime("2025-01-20", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseRelativeTime("yesterday", now)
	require.NoError(t, err)
	assert.Equal(t, 14, got.Day())

	_, err = ParseRelativeTime("not-a-date", now)
	assert.Error(t, err)
}

func TestParseSince(t *testing.T) {
	got, err := ParseSince("2w", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), got)

	got, err = ParseSince("-1d", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -1), got)

	got, err = ParseSince("2024-12-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseSince("+1d", now)
	assert.ErrorContains(t, err, "future")
}
