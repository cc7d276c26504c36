package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/radiorecorder/allday/internal/domain"
	"github.com/radiorecorder/allday/internal/metrics"
)

// Fetcher retrieves schedule pages, day listings and podcast metadata
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// New creates a Fetcher with the given timeout, user agent and body limit
func New(timeout time.Duration, userAgent string, maxBytes int64) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// Get retrieves rawURL and returns its body decoded to UTF-8
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordFetch(http.MethodGet, strconv.Itoa(resp.StatusCode))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read body with size limit
	limited := io.LimitReader(resp.Body, f.maxBytes)
	r, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		metrics.RecordFetch(http.MethodGet, "error")
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		metrics.RecordFetch(http.MethodGet, "error")
		return nil, fmt.Errorf("read body: %w", err)
	}

	metrics.RecordFetch(http.MethodGet, "200")
	return body, nil
}

// Exists reports whether a HEAD request for rawURL succeeds
func (f *Fetcher) Exists(ctx context.Context, rawURL string) bool {
	resp, err := f.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return false
	}
	resp.Body.Close()

	metrics.RecordFetch(http.MethodHead, strconv.Itoa(resp.StatusCode))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	// Validate URL
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.RecordFetch(method, "error")
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return resp, nil
}

// ParseListing returns every anchor of a directory listing in document
// order. Works for HTML as well as XHTML listings.
func ParseListing(r io.Reader) ([]domain.RawEntry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var entries []domain.RawEntry
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attr(n, "href"); ok {
				entries = append(entries, domain.RawEntry{
					Href: href,
					Text: strings.TrimSpace(text(n)),
				})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return entries, nil
}

// ParseListingBytes is ParseListing over an in-memory body
func ParseListingBytes(body []byte) ([]domain.RawEntry, error) {
	return ParseListing(bytes.NewReader(body))
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func text(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
