package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiorecorder/allday/internal/domain"
)

var cet = time.FixedZone("CET", 3600)

func at(hh, mm int) time.Time {
	return time.Date(2016, time.January, 29, hh, mm, 0, 0, cet)
}

func ref(now time.Time) Reference {
	return Reference{
		DayStart: at(0, 0),
		DayEnd:   at(24, 0),
		Now:      now,
	}
}

func window(now string) domain.Window {
	return domain.Window{
		Start: "2016-01-29T00:00:00+01:00",
		End:   "2016-01-30T00:00:00+01:00",
		Now:   now,
	}
}

func states(entries []domain.ClassifiedEntry) []domain.State {
	out := make([]domain.State, len(entries))
	for i, e := range entries {
		out[i] = e.State
	}
	return out
}

func countCurrent(entries []domain.ClassifiedEntry) int {
	n := 0
	for _, e := range entries {
		if e.State == domain.StateCurrent {
			n++
		}
	}
	return n
}

func TestClassify_MarkerAfterEntry(t *testing.T) {
	got, err := Classify([]domain.RawEntry{
		{Href: "0900 show.xml"},
		{Href: "0900.json"},
	}, window("2016-01-29T10:00:00+01:00"))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "09:00 show", got[0].Text)
	assert.Equal(t, "show", got[0].Title)
	assert.Equal(t, "0900 show", got[0].Href)
	assert.True(t, got[0].HasRecording)
}

func TestClassifyAt_ListingOrder(t *testing.T) {
	entries := []domain.RawEntry{
		{Href: "../", Text: "../"},
		{Href: "0800%20Morning.xml", Text: "0800 Morning.xml"},
		{Href: "0900%20News.json", Text: "0900 News.json"},
		{Href: "0900%20News.xml", Text: "0900 News.xml"},
		{Href: "1000%20Music.xml", Text: "1000 Music.xml"},
		{Href: "index.xml", Text: "index.xml"},
	}

	got := ClassifyAt(entries, ref(at(9, 30)))

	require.Len(t, got, 4)
	assert.Equal(t, []domain.State{
		domain.StatePast,
		domain.StateCurrent,
		domain.StateFuture,
		domain.StateNone,
	}, states(got))

	assert.Equal(t, "08:00 Morning", got[0].Text)
	assert.False(t, got[0].HasRecording)

	assert.Equal(t, "09:00 News", got[1].Text)
	assert.Equal(t, "0900%20News", got[1].Href)
	assert.Equal(t, at(9, 0), got[1].Start)
	assert.True(t, got[1].HasRecording)
	assert.True(t, got[1].NowMarker)
	assert.Equal(t, "09:00 News jetzt", got[1].Label("jetzt"))

	assert.False(t, got[2].HasRecording)
	assert.False(t, got[2].NowMarker)

	assert.Equal(t, "index", got[3].Text)
	assert.Equal(t, "index", got[3].Href)
	assert.False(t, got[3].Timed())
}

func TestClassifyAt_MarkerIsSingleUse(t *testing.T) {
	got := ClassifyAt([]domain.RawEntry{
		{Href: "0800%20A.json"},
		{Href: "0800%20A.xml"},
		{Href: "0900%20B.xml"},
		{Href: "1000%20C.xml"},
	}, ref(at(7, 0)))

	require.Len(t, got, 3)
	assert.True(t, got[0].HasRecording)
	assert.False(t, got[1].HasRecording)
	assert.False(t, got[2].HasRecording)
}

func TestClassifyAt_ParentOnlyDroppedFirst(t *testing.T) {
	got := ClassifyAt([]domain.RawEntry{
		{Href: "0800%20A.xml"},
		{Href: "../"},
	}, ref(at(7, 0)))

	require.Len(t, got, 2)
	assert.Equal(t, "../", got[1].Href)
	assert.Equal(t, domain.StateNone, got[1].State)
}

func TestClassifyAt_EndOfDayPromotion(t *testing.T) {
	entries := []domain.RawEntry{{Href: "2300%20Late.xml"}}

	got := ClassifyAt(entries, ref(at(23, 30)))
	require.Len(t, got, 1)
	assert.Equal(t, domain.StateCurrent, got[0].State)
	assert.True(t, got[0].NowMarker)

	got = ClassifyAt(entries, ref(at(24, 30)))
	assert.Equal(t, domain.StatePast, got[0].State)
	assert.False(t, got[0].NowMarker)
}

func TestClassifyAt_BeforeFirstEntry(t *testing.T) {
	got := ClassifyAt([]domain.RawEntry{
		{Href: "0600%20A.xml"},
		{Href: "0900%20B.xml"},
	}, ref(at(5, 0)))

	assert.Equal(t, []domain.State{domain.StateFuture, domain.StateFuture}, states(got))
	assert.Zero(t, countCurrent(got))
}

func TestClassifyAt_SingleCurrent(t *testing.T) {
	entries := []domain.RawEntry{
		{Href: "0600%20A.xml"},
		{Href: "0600%20A.json"},
		{Href: "0900%20B.xml"},
		{Href: "index.xml"},
		{Href: "1200%20C.xml"},
		{Href: "2300%20D.xml"},
	}
	r := ref(time.Time{})
	first := at(6, 0)

	for now := at(4, 0); now.Before(at(25, 0)); now = now.Add(15 * time.Minute) {
		r.Now = now
		got := ClassifyAt(entries, r)

		want := 0
		if !now.Before(first) && now.Before(r.DayCutoff()) {
			want = 1
		}
		assert.Equal(t, want, countCurrent(got), "now %s", now.Format(time.RFC3339))

		for _, e := range got {
			if e.Timed() {
				assert.NotEqual(t, domain.StateNone, e.State)
			} else {
				assert.Equal(t, domain.StateNone, e.State)
			}
		}
	}
}

func TestClassifyAt_CanonicalHref(t *testing.T) {
	for _, now := range []time.Time{at(5, 0), at(10, 30), at(23, 0)} {
		got := ClassifyAt([]domain.RawEntry{{Href: "1000%20Show.xml"}}, ref(now))
		require.Len(t, got, 1)
		assert.Equal(t, "1000%20Show", got[0].Href)
		assert.Equal(t, "10:00 Show", got[0].Text)
	}
}

func TestClassifyAt_Idempotent(t *testing.T) {
	entries := []domain.RawEntry{
		{Href: "0600%20A.xml"},
		{Href: "0900%20B.json"},
		{Href: "0900%20B.xml"},
	}
	r := ref(at(9, 1))

	assert.Equal(t, ClassifyAt(entries, r), ClassifyAt(entries, r))
}

func TestClassify_InvalidWindow(t *testing.T) {
	tests := []struct {
		name  string
		w     domain.Window
		field string
	}{
		{"garbage start", domain.Window{Start: "garbage", End: "2016-01-30T00:00:00+01:00", Now: "2016-01-29T10:00:00+01:00"}, "start"},
		{"missing end", domain.Window{Start: "2016-01-29T00:00:00+01:00", Now: "2016-01-29T10:00:00+01:00"}, "end"},
		{"missing now", window(""), "now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify([]domain.RawEntry{{Href: "0900%20A.xml"}}, tt.w)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrInvalidReferenceWindow))

			var werr *WindowError
			require.True(t, errors.As(err, &werr))
			assert.Equal(t, tt.field, werr.Field)
		})
	}
}

func TestParseWindow(t *testing.T) {
	r, err := ParseWindow(window("2016-01-29T10:15:00+01:00"))
	require.NoError(t, err)
	assert.True(t, r.DayStart.Equal(at(0, 0)))
	assert.True(t, r.DayEnd.Equal(at(24, 0)))
	assert.True(t, r.Now.Equal(at(10, 15)))
	assert.True(t, r.DayCutoff().Equal(at(24, 0)))

	_, err = ParseWindow(domain.Window{
		Start: "2016-01-29 00:00:00",
		End:   "2016-01-30 00:00:00",
		Now:   "2016-01-29 10:15:00",
	})
	assert.NoError(t, err)
}

func TestParseInstant(t *testing.T) {
	valid := []string{
		"2016-01-29T10:15:00+01:00",
		"2016-01-29T10:15:00.5Z",
		" 2016-01-29T10:15:00+01:00 ",
		"2016-01-29 10:15:00",
		"2016-01-29",
	}
	for _, in := range valid {
		_, err := ParseInstant(in)
		assert.NoError(t, err, "input %q", in)
	}

	invalid := []string{
		"",
		"Jan 29 2016",
		"2016",
		"1453939200",
		"29.01.2016",
		"2016-01-29T10:15:00 CET",
	}
	for _, in := range invalid {
		_, err := ParseInstant(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestReference_State(t *testing.T) {
	r := Reference{DayStart: at(9, 0), DayEnd: at(10, 0)}

	r.Now = at(8, 0)
	assert.Equal(t, domain.StateFuture, r.State())
	r.Now = at(9, 0)
	assert.Equal(t, domain.StateCurrent, r.State())
	r.Now = at(10, 0)
	assert.Equal(t, domain.StatePast, r.State())
}
