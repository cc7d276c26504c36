// Package page fills a broadcast schedule page: page state, clickable links,
// navigation, podcast information and the classified list of all broadcasts
// of the day.
package page

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/radiorecorder/allday/internal/autolink"
	"github.com/radiorecorder/allday/internal/domain"
	"github.com/radiorecorder/allday/internal/fetcher"
	"github.com/radiorecorder/allday/internal/metrics"
	"github.com/radiorecorder/allday/internal/schedule"
)

const (
	metaStart = "DC.format.timestart"
	metaEnd   = "DC.format.timeend"

	downloadHint = "Download: Rechte Maustaste + 'Speichern unter...'"
	adHocRemove  = "Nicht Aufnehmen"
)

var (
	canonicalSuffix = regexp.MustCompile(`(\.xml)?(\.gz)?(#.*)?$`)
	broadcastPath   = regexp.MustCompile(`/stations/[^/]+/\d{4}/\d{2}/\d{2}/(index|\d{4}%20.+)$`)
)

// Renderer renders schedule pages
type Renderer struct {
	Source       fetcher.Source
	Now          func() time.Time
	NowIndicator string
	Logger       *slog.Logger
}

// New creates a Renderer reading from src with the wall clock as now
func New(src fetcher.Source, nowIndicator string, logger *slog.Logger) *Renderer {
	return &Renderer{
		Source:       src,
		Now:          time.Now,
		NowIndicator: nowIndicator,
		Logger:       logger,
	}
}

// RenderURL fetches the page at pageURL and renders it
func (r *Renderer) RenderURL(ctx context.Context, pageURL string) (string, error) {
	body, err := r.Source.Get(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	return r.Render(ctx, pageURL, body)
}

// Render fills the page body served at pageURL. Listing and podcast
// metadata are fetched relative to pageURL; when they are unavailable the
// page is rendered without them. A page whose reference window does not
// parse is an error matching schedule.ErrInvalidReferenceWindow.
func (r *Renderer) Render(ctx context.Context, pageURL string, body []byte) (string, error) {
	started := time.Now()
	defer func() { metrics.RenderDuration.Observe(time.Since(started).Seconds()) }()

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	ref, err := schedule.ParseWindow(domain.Window{
		Start: metaContent(doc, metaStart),
		End:   metaContent(doc, metaEnd),
		Now:   r.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}

	doc.Find("html").AddClass(ref.State().Class())
	autolinkContent(doc, pageURL)

	canonical := CanonicalURL(pageURL)
	doc.Find(".canonical-url").SetText(canonical)
	doc.Find(".base-url").SetText(BaseURL(canonical))
	dayNavigation(doc, ref.DayStart)
	formatTimes(doc)

	var (
		index   *domain.PodcastIndex
		hasMP3  bool
		entries []domain.RawEntry
	)
	var g errgroup.Group
	g.Go(func() error {
		index, hasMP3 = r.podcasts(ctx, base)
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = r.listing(ctx, base)
		return err
	})
	if err := g.Wait(); err != nil {
		r.Logger.Warn("day listing unavailable", "page", pageURL, "error", err)
	}

	if index != nil {
		applyPodcasts(doc, CanonicalPath(base.Path), *index, hasMP3)
	}
	if entries != nil {
		classified := schedule.ClassifyAt(entries, ref)
		recordStates(classified)
		r.writeAllday(doc, classified)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

func metaContent(doc *goquery.Document, name string) string {
	return doc.Find(fmt.Sprintf("meta[name='%s']", name)).AttrOr("content", "")
}

func autolinkContent(doc *goquery.Document, location string) {
	content := doc.Find("#content").First()
	if content.Length() == 0 {
		return
	}
	inner, err := content.Html()
	if err != nil {
		return
	}
	content.SetHtml(autolink.Autolink(inner, location))
}

// CanonicalURL strips the .xml/.gz suffixes and the fragment from pageURL.
func CanonicalURL(pageURL string) string {
	return canonicalSuffix.ReplaceAllString(pageURL, "")
}

// BaseURL strips the station/day/broadcast path from a canonical URL.
func BaseURL(canonical string) string {
	return broadcastPath.ReplaceAllString(canonical, "")
}

// CanonicalPath strips the .xml suffix from a page path.
func CanonicalPath(p string) string {
	return strings.TrimSuffix(p, ".xml")
}

// EnclosurePaths returns the mp3 path of a broadcast and the directory
// holding it.
func EnclosurePaths(canonicalPath string) (mp3, dir string) {
	mp3 = strings.Replace(canonicalPath, "/stations/", "/enclosures/", 1) + ".mp3"
	dir = mp3[:strings.LastIndexByte(mp3, '/')+1]
	return mp3, dir
}

func dayNavigation(doc *goquery.Document, dayStart time.Time) {
	links := []struct {
		id   string
		days int
	}{
		{"#prev_week", -7},
		{"#yesterday", -1},
		{"#tomorrow", 1},
		{"#next_week", 7},
	}
	for _, l := range links {
		doc.Find(l.id).SetAttr("href", "../../../"+dayStart.AddDate(0, 0, l.days).Format(time.RFC3339))
	}
}

func formatTimes(doc *goquery.Document) {
	layouts := map[string]string{
		".moment_date_time": "Mon 2. Jan 2006 15:04",
		".moment_date":      "Mon 2. Jan 2006",
		".moment_time":      "15:04",
	}
	for sel, layout := range layouts {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			t, err := schedule.ParseInstant(s.AttrOr("title", ""))
			if err != nil {
				return
			}
			s.SetText(t.Format(layout))
		})
	}
}

// podcasts loads the companion podcast index and probes the mp3 enclosure.
// A missing index yields nil.
func (r *Renderer) podcasts(ctx context.Context, base *url.URL) (*domain.PodcastIndex, bool) {
	canonical := CanonicalPath(base.Path)
	jsonURL := withPath(base, canonical+".json")

	body, err := r.Source.Get(ctx, jsonURL)
	if err != nil {
		r.Logger.Debug("no podcast index", "url", jsonURL, "error", err)
		return nil, false
	}
	var index domain.PodcastIndex
	if err := json.Unmarshal(body, &index); err != nil {
		r.Logger.Warn("invalid podcast index", "url", jsonURL, "error", err)
		return nil, false
	}

	mp3, _ := EnclosurePaths(canonical)
	return &index, r.Source.Exists(ctx, withPath(base, mp3))
}

func (r *Renderer) listing(ctx context.Context, base *url.URL) ([]domain.RawEntry, error) {
	dirURL := base.ResolveReference(&url.URL{Path: "./"}).String()
	body, err := r.Source.Get(ctx, dirURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	return fetcher.ParseListingBytes(body)
}

func applyPodcasts(doc *goquery.Document, canonicalPath string, index domain.PodcastIndex, hasMP3 bool) {
	mp3, dir := EnclosurePaths(canonicalPath)
	link := doc.Find("a#enclosure_link")
	link.SetAttr("href", escapePath(dir))

	if hasMP3 {
		doc.Find("html").AddClass("has_enclosure_mp3")
		link.SetAttr("href", escapePath(mp3))
		link.SetAttr("title", downloadHint)
		doc.Find("#enclosure audio source").SetAttr("src", escapePath(mp3))
		doc.Find("#enclosure").SetAttr("style", "display:block")
	}

	names := make([]string, len(index.Podcasts))
	for i, pc := range index.Podcasts {
		name := html.EscapeString(pc.Name)
		names[i] = `<a href="../../../../../podcasts/` + name + `/">` + name + `</a>`
	}
	doc.Find("#podcasts").SetHtml(strings.Join(names, ", "))
	if len(names) == 0 {
		return
	}

	doc.Find("p#enclosure").SetAttr("style", "display:block")
	doc.Find("html").AddClass("has_podcast")
	if index.HasAdHoc() {
		doc.Find("#ad_hoc_action").SetAttr("name", "remove")
		doc.Find("#ad_hoc_submit").SetAttr("value", adHocRemove)
	} else {
		doc.Find("#ad_hoc_submit").SetAttr("style", "display:none")
	}
}

func (r *Renderer) writeAllday(doc *goquery.Document, entries []domain.ClassifiedEntry) {
	var sb strings.Builder
	for _, e := range entries {
		var classes []string
		if c := e.State.Class(); c != "" {
			classes = append(classes, c)
		}
		if e.HasRecording {
			classes = append(classes, "has_podcast")
		}

		sb.WriteString(`<li><a href="`)
		sb.WriteString(html.EscapeString(e.Href))
		sb.WriteString(`"`)
		if e.Timed() {
			sb.WriteString(` title="`)
			sb.WriteString(e.Start.Format(time.RFC3339))
			sb.WriteString(`"`)
		}
		if len(classes) > 0 {
			sb.WriteString(` class="`)
			sb.WriteString(strings.Join(classes, " "))
			sb.WriteString(`"`)
		}
		sb.WriteString(`>`)
		sb.WriteString(html.EscapeString(e.Text))
		if e.NowMarker && r.NowIndicator != "" {
			sb.WriteString(`<span>`)
			sb.WriteString(html.EscapeString(r.NowIndicator))
			sb.WriteString(`</span>`)
		}
		sb.WriteString("</a></li>")
	}

	allday := doc.Find("#allday")
	allday.SetHtml(sb.String())
	allday.RemoveAttr("style")
}

func recordStates(entries []domain.ClassifiedEntry) {
	states := make([]string, len(entries))
	for i, e := range entries {
		states[i] = string(e.State)
	}
	metrics.RecordEntries(states)
}

func withPath(base *url.URL, p string) string {
	u := *base
	u.Path = p
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}
