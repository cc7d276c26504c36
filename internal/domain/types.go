package domain

import "time"

// RawEntry is one item of a day listing before classification
type RawEntry struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// State is the temporal classification of a timed entry
type State string

const (
	StateNone    State = ""
	StatePast    State = "past"
	StateCurrent State = "current"
	StateFuture  State = "future"
)

// Class returns the page class carried by entries in this state
func (s State) Class() string {
	if s == StateNone {
		return ""
	}
	return "is_" + string(s)
}

// ClassifiedEntry is a visible listing entry after classification
type ClassifiedEntry struct {
	Start        time.Time `json:"start,omitzero"`
	Title        string    `json:"title,omitempty"`
	Text         string    `json:"text"`
	Href         string    `json:"href"`
	State        State     `json:"state,omitempty"`
	HasRecording bool      `json:"has_recording,omitempty"`
	NowMarker    bool      `json:"now_marker,omitempty"`
}

// Timed reports whether the entry carried a start time
func (e ClassifiedEntry) Timed() bool {
	return !e.Start.IsZero()
}

// Label is the display text, with indicator appended when the entry is
// marked as airing now.
func (e ClassifiedEntry) Label(indicator string) string {
	if e.NowMarker && indicator != "" {
		return e.Text + " " + indicator
	}
	return e.Text
}

// Window is the reference window as delivered by page metadata
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Now   string `json:"now,omitempty"`
}

// Podcast names a podcast a broadcast is part of
type Podcast struct {
	Name string `json:"name"`
}

// PodcastIndex is the companion JSON document of a broadcast page
type PodcastIndex struct {
	Podcasts []Podcast `json:"podcasts"`
}

// HasAdHoc reports whether the broadcast is scheduled for ad hoc recording
func (p PodcastIndex) HasAdHoc() bool {
	for _, pc := range p.Podcasts {
		if pc.Name == "ad_hoc" {
			return true
		}
	}
	return false
}

// CachedFetch describes a cached upstream body
type CachedFetch struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Size      int       `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
}
