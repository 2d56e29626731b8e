// internal/timeutil/timeutil.go
package timeutil

import (
	"fmt"
	"time"
)

// CheckpointLayout is the canonical storage form for checkpoint timestamps.
// It is zero-padded and offset-free so that stored strings sort
// chronologically, which keeps old checkpoint databases comparable.
const CheckpointLayout = "2006-01-02T15:04:05"

// Epoch is the checkpoint value assumed for a repository that has never been
// synced.
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// upstreamLayouts are the timestamp shapes the history API is known to emit,
// tried in order. hasOffset marks layouts that carry an explicit UTC offset.
var upstreamLayouts = []struct {
	layout    string
	hasOffset bool
}{
	{"2006-01-02 15:04:05-07:00", true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
}

// Parse parses an upstream timestamp string, preserving its rendered wall
// clock and embedded offset. Inputs without timezone information are taken
// as UTC.
func Parse(text string) (time.Time, error) {
	for _, l := range upstreamLayouts {
		t, err := time.Parse(l.layout, text)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", text)
}

// ParseWithOffset parses an upstream timestamp string and returns the instant
// normalized to UTC plus the embedded ±HH:MM offset string. The offset string
// is empty when the input carried no timezone information, in which case the
// timestamp is taken as already being UTC.
func ParseWithOffset(text string) (time.Time, string, error) {
	for _, l := range upstreamLayouts {
		t, err := time.Parse(l.layout, text)
		if err != nil {
			continue
		}
		if !l.hasOffset {
			return t.UTC(), "", nil
		}
		_, seconds := t.Zone()
		return t.UTC(), formatOffset(time.Duration(seconds) * time.Second), nil
	}
	return time.Time{}, "", fmt.Errorf("unrecognized timestamp format: %q", text)
}

// OffsetBetween returns the signed ±HH:MM difference between the wall-clock
// renderings of two timestamps describing the same instant. The upstream API
// reports each commit both in UTC and in the committer's local time; the
// difference is the committer's display offset.
func OffsetBetween(utc, local time.Time) string {
	return formatOffset(wallClock(local).Sub(wallClock(utc)))
}

// FormatCheckpoint renders a checkpoint timestamp in the canonical storage
// form.
func FormatCheckpoint(t time.Time) string {
	return t.UTC().Format(CheckpointLayout)
}

// ParseCheckpoint parses a stored checkpoint string.
func ParseCheckpoint(s string) (time.Time, error) {
	return time.Parse(CheckpointLayout, s)
}

// wallClock strips timezone information, keeping only the rendered
// year/month/day/hour/minute/second fields.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func formatOffset(d time.Duration) string {
	prefix := "+"
	if d < 0 {
		prefix = "-"
		d = -d
	}
	hours := int(d / time.Hour)
	minutes := int(d/time.Minute) % 60
	return fmt.Sprintf("%s%02d:%02d", prefix, hours, minutes)
}
