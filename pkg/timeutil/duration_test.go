package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffset(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"24h", 24 * time.Hour},
		{"3d", 3 * 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{" 1h ", time.Hour},
	}
	for _, c := range cases {
		got, err := ParseOffset(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseOffsetRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "h", "24", "0h", "-1h", "1.5h", "24x", "h24"} {
		_, err := ParseOffset(in)
		assert.Error(t, err, in)
	}
}

func TestParseOffsetsDeduplicates(t *testing.T) {
	got, err := ParseOffsets("24h|1d|1h", "|")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{24 * time.Hour, time.Hour}, got)
}

func TestParseOffsetsSkipsEmptyParts(t *testing.T) {
	got, err := ParseOffsets("1h| |2h", "|")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Hour, 2 * time.Hour}, got)
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "24h", FormatOffset(24*time.Hour))
	assert.Equal(t, "2d", FormatOffset(48*time.Hour))
	assert.Equal(t, "1w", FormatOffset(7*24*time.Hour))
	assert.Equal(t, "90m", FormatOffset(90*time.Minute))
	assert.Equal(t, "45s", FormatOffset(45*time.Second))
}

func TestFormatOffsetRoundTrips(t *testing.T) {
	for _, in := range []string{"30s", "5m", "1h", "24h", "3d", "2w"} {
		d, err := ParseOffset(in)
		require.NoError(t, err)
		assert.Equal(t, in, FormatOffset(d))
	}
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "in 1 hour", Humanize(time.Hour))
	assert.Equal(t, "in 2 days", Humanize(48*time.Hour))
	assert.Equal(t, "in 1 day", Humanize(24*time.Hour))
	assert.Equal(t, "in 30 minutes", Humanize(30*time.Minute))
	assert.Equal(t, "in 1 week", Humanize(7*24*time.Hour))
	assert.Equal(t, "now", Humanize(0))
	assert.Equal(t, "now", Humanize(-time.Minute))
	assert.Equal(t, "now", Humanize(30*time.Second))
}
