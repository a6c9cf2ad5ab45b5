package ingest

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher acquires the text content of one source URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher downloads a page and extracts its readable text.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "docuchat/1.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return "", fmt.Errorf("fetch %s: unsupported content type %q", url, ct)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch %s: parse html: %w", url, err)
	}
	return ExtractText(doc), nil
}

var blankLines = regexp.MustCompile(`\n\n+`)

// ExtractText pulls visible text out of a parsed page, preferring the main
// article body when one exists.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	root := doc.Selection
	if main := doc.Find("article, main").First(); main.Length() > 0 {
		root = main
	}

	var b strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td, blockquote").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			b.WriteString(t)
			b.WriteString("\n\n")
		}
	})

	text := b.String()
	if strings.TrimSpace(text) == "" {
		text = root.Text()
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}
