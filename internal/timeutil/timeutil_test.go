// internal/timeutil/timeutil_test.go
package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWithOffset(t *testing.T) {
	t.Run("bitbucket local timestamp with positive offset", func(t *testing.T) {
		instant, offset, err := ParseWithOffset("2012-07-23 22:26:36+02:00")
		require.NoError(t, err)
		assert.Equal(t, "+02:00", offset)
		assert.Equal(t, time.Date(2012, 7, 23, 20, 26, 36, 0, time.UTC), instant)
	})

	t.Run("rfc3339 with negative offset", func(t *testing.T) {
		instant, offset, err := ParseWithOffset("2024-03-01T08:30:00-05:00")
		require.NoError(t, err)
		assert.Equal(t, "-05:00", offset)
		assert.Equal(t, time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC), instant)
	})

	t.Run("naive timestamp is treated as UTC with no offset", func(t *testing.T) {
		instant, offset, err := ParseWithOffset("2012-07-23T20:26:36")
		require.NoError(t, err)
		assert.Empty(t, offset)
		assert.Equal(t, time.Date(2012, 7, 23, 20, 26, 36, 0, time.UTC), instant)
	})

	t.Run("utc suffix renders as zero offset", func(t *testing.T) {
		_, offset, err := ParseWithOffset("2012-07-23 20:26:36+00:00")
		require.NoError(t, err)
		assert.Equal(t, "+00:00", offset)
	})

	t.Run("rejects unrecognized input", func(t *testing.T) {
		_, _, err := ParseWithOffset("half past nine")
		assert.Error(t, err)
	})
}

func TestParsePreservesWallClock(t *testing.T) {
	parsed, err := Parse("2012-07-23 22:26:36+02:00")
	require.NoError(t, err)
	assert.Equal(t, 22, parsed.Hour(), "rendered hour must survive parsing")

	_, seconds := parsed.Zone()
	assert.Equal(t, 2*3600, seconds)
	assert.Equal(t, time.Date(2012, 7, 23, 20, 26, 36, 0, time.UTC), parsed.UTC())
}

func TestOffsetBetween(t *testing.T) {
	utc := time.Date(2012, 7, 23, 20, 26, 36, 0, time.UTC)

	tests := []struct {
		name  string
		local time.Time
		want  string
	}{
		{"two hours east", time.Date(2012, 7, 23, 22, 26, 36, 0, time.UTC), "+02:00"},
		{"five thirty west", time.Date(2012, 7, 23, 14, 56, 36, 0, time.UTC), "-05:30"},
		{"same wall clock", utc, "+00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OffsetBetween(utc, tt.local))
		})
	}

	t.Run("ignores timezone labels on the inputs", func(t *testing.T) {
		// Same instant expressed in a named zone: only the rendered wall
		// clocks matter.
		local := time.Date(2012, 7, 23, 22, 26, 36, 0, time.FixedZone("CEST", 2*3600))
		assert.Equal(t, "+02:00", OffsetBetween(utc, local))
	})
}

func TestCheckpointRoundTrip(t *testing.T) {
	instant := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := FormatCheckpoint(instant)
	assert.Equal(t, "2024-03-01T00:00:00", s)

	parsed, err := ParseCheckpoint(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(instant))
}

func TestCheckpointStringOrderMatchesChronology(t *testing.T) {
	older := FormatCheckpoint(time.Date(2024, 2, 15, 9, 5, 0, 0, time.UTC))
	newer := FormatCheckpoint(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, older, newer)
	assert.Less(t, FormatCheckpoint(Epoch), older)
}
