package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const samplePage = `<!doctype html>
<html>
<head><title>t</title><style>p{color:red}</style></head>
<body>
<nav>skip this nav</nav>
<article>
  <h1>Install Guide</h1>
  <p>Run the installer.</p>
  <script>console.log("skip")</script>
  <ul><li>step one</li><li>step two</li></ul>
</article>
<footer>skip footer</footer>
</body>
</html>`

func TestExtractText_PrefersArticleAndStripsChrome(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	text := ExtractText(doc)
	for _, want := range []string{"Install Guide", "Run the installer.", "step one", "step two"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in extracted text:\n%s", want, text)
		}
	}
	for _, skip := range []string{"skip this nav", "skip footer", "console.log", "color:red"} {
		if strings.Contains(text, skip) {
			t.Fatalf("did not expect %q in extracted text:\n%s", skip, text)
		}
	}
}

func TestHTTPFetcher_FetchAndStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()

	text, err := f.Fetch(context.Background(), srv.URL+"/guide")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(text, "Run the installer.") {
		t.Fatalf("unexpected text: %q", text)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatalf("expected an error for 404")
	}
}
