// Package schedule classifies the broadcasts of one day listing as past,
// current or future relative to a reference instant.
//
// Listing order is taken as chronological and is not verified.
package schedule

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/radiorecorder/allday/internal/domain"
)

var (
	// HHMM followed by the title, e.g. "0905 Nachrichten"
	timedText  = regexp.MustCompile(`^(\d{2})(\d{2})\s+(.*?)$`)
	markerHref = regexp.MustCompile(`(?i)\.json$`)
)

const listingSuffix = ".xml"

// IsMarker reports whether href is a recording marker.
func IsMarker(href string) bool {
	return markerHref.MatchString(href)
}

// IsParent reports whether href only navigates one directory up.
func IsParent(href string) bool {
	return href == "../" || href == ".."
}

// CanonicalHref strips the listing suffix from href.
func CanonicalHref(href string) string {
	return strings.TrimSuffix(href, listingSuffix)
}

// Classify parses w and classifies entries against it. A window that does
// not parse yields an error matching ErrInvalidReferenceWindow.
func Classify(entries []domain.RawEntry, w domain.Window) ([]domain.ClassifiedEntry, error) {
	ref, err := ParseWindow(w)
	if err != nil {
		return nil, err
	}
	return ClassifyAt(entries, ref), nil
}

// ClassifyAt classifies entries in listing order.
//
// Markers are swallowed and flag the entry that follows them, unless the
// marker names the entry before it and not the one after. Every timed
// entry is past or future, except the most recent past entry before the
// first future one (or, failing that, the last past entry of the day while
// the day lasts), which is current.
func ClassifyAt(entries []domain.RawEntry, ref Reference) []domain.ClassifiedEntry {
	if len(entries) > 0 && IsParent(entries[0].Href) {
		entries = entries[1:]
	}

	out := make([]domain.ClassifiedEntry, 0, len(entries))
	recording := false
	last := -1    // index of the promotion candidate in out, -1 if none
	emitted := -1 // index in entries of the entry directly before, -1 if none

	for i, raw := range entries {
		if IsMarker(raw.Href) {
			if emitted >= 0 && emitted == i-1 && annotatesPrevious(entries, i) && !out[len(out)-1].HasRecording {
				out[len(out)-1].HasRecording = true
			} else {
				recording = true
			}
			continue
		}

		e := anchor(raw, ref.DayStart)
		e.HasRecording = recording
		recording = false

		if e.Timed() {
			if ref.Now.Before(e.Start) {
				if last >= 0 {
					promote(&out[last])
					last = -1
				}
				e.State = domain.StateFuture
			} else {
				e.State = domain.StatePast
				last = len(out)
			}
		}
		out = append(out, e)
		emitted = i
	}

	if last >= 0 && ref.Now.Before(ref.DayCutoff()) {
		promote(&out[last])
	}
	return out
}

func promote(e *domain.ClassifiedEntry) {
	e.State = domain.StateCurrent
	e.NowMarker = true
}

// annotatesPrevious reports whether the marker at i names entries[i-1] while
// not naming entries[i+1]. Names match when the marker's base name is a
// prefix of the entry's.
func annotatesPrevious(entries []domain.RawEntry, i int) bool {
	if i == 0 || !names(entries[i], entries[i-1]) {
		return false
	}
	return i+1 >= len(entries) || !names(entries[i], entries[i+1])
}

func names(marker, entry domain.RawEntry) bool {
	base := baseName(marker.Href)
	if base == "" {
		return false
	}
	return strings.HasPrefix(baseName(entry.Href), base)
}

func baseName(href string) string {
	if s, err := url.PathUnescape(href); err == nil {
		href = s
	}
	href = href[strings.LastIndexByte(href, '/')+1:]
	if i := strings.LastIndexByte(href, '.'); i >= 0 {
		href = href[:i]
	}
	return href
}

// anchor canonicalises raw and, for timed entries, derives the start
// instant on day's calendar date.
func anchor(raw domain.RawEntry, day time.Time) domain.ClassifiedEntry {
	text := strings.TrimSuffix(entryText(raw), listingSuffix)
	e := domain.ClassifiedEntry{
		Text: text,
		Href: CanonicalHref(raw.Href),
	}

	m := timedText.FindStringSubmatch(text)
	if m == nil {
		return e
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])

	y, mo, d := day.Date()
	e.Start = time.Date(y, mo, d, hh, mm, 0, 0, day.Location())
	e.Title = m[3]
	e.Text = e.Start.Format("15:04") + " " + m[3]
	return e
}

// entryText falls back to the unescaped href, which is what directory
// listings display.
func entryText(raw domain.RawEntry) string {
	if raw.Text != "" {
		return raw.Text
	}
	if s, err := url.PathUnescape(raw.Href); err == nil {
		return s
	}
	return raw.Href
}
