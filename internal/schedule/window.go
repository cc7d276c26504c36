package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/radiorecorder/allday/internal/domain"
)

// ErrInvalidReferenceWindow is matched by every error ParseWindow returns.
var ErrInvalidReferenceWindow = errors.New("invalid reference window")

// WindowError names the window field that could not be parsed
type WindowError struct {
	Field string
	Value string
	Err   error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("invalid reference window: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInvalidReferenceWindow) hold.
func (e *WindowError) Is(target error) bool {
	return target == ErrInvalidReferenceWindow
}

// Reference is a parsed reference window
type Reference struct {
	DayStart time.Time
	DayEnd   time.Time
	Now      time.Time
}

// ParseWindow parses the three ISO-8601 timestamps of w.
func ParseWindow(w domain.Window) (Reference, error) {
	var ref Reference
	fields := []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"start", w.Start, &ref.DayStart},
		{"end", w.End, &ref.DayEnd},
		{"now", w.Now, &ref.Now},
	}
	for _, f := range fields {
		t, err := ParseInstant(f.value)
		if err != nil {
			return Reference{}, &WindowError{Field: f.name, Value: f.value, Err: err}
		}
		*f.dst = t
	}
	return ref, nil
}

// isoShape accepts calendar dates with optional time of day and zone, with
// either 'T' or a space between date and time.
var isoShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?)?(?:Z|[+-]\d{2}:?\d{2})?$`)

// ParseInstant parses an ISO-8601 timestamp. RFC 3339 values are parsed
// directly; other ISO shapes, such as "2016-01-29 10:15:00" or a bare
// "2016-01-29", are read in the local zone. Month names, bare years and
// epoch seconds are rejected.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if !isoShape.MatchString(s) {
		return time.Time{}, fmt.Errorf("not an ISO-8601 timestamp: %q", s)
	}
	return dateparse.ParseStrict(s)
}

// DayCutoff is the midnight following DayStart's calendar date. A past entry
// can only be promoted to current before it.
func (r Reference) DayCutoff() time.Time {
	y, m, d := r.DayStart.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, r.DayStart.Location())
}

// State classifies the whole window: future before DayStart, current until
// DayEnd, past afterwards.
func (r Reference) State() domain.State {
	switch {
	case r.Now.Before(r.DayStart):
		return domain.StateFuture
	case r.Now.Before(r.DayEnd):
		return domain.StateCurrent
	default:
		return domain.StatePast
	}
}
