// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/article-engine/pkg/types"
)

const page = `<!doctype html>
<html><head><title> AI in   Radiology </title><style>body{}</style></head>
<body>
<header>Site header</header>
<nav>Home | About</nav>
<div class="sidebar">Sidebar links</div>
<main>
  <h1>Radiology at scale</h1>
  <p>Hospitals use <b>machine learning</b> to triage scans.</p>
  <script>track()</script>
</main>
<footer>Copyright</footer>
</body></html>`

func TestExtract(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		wantTitle string
		wantText  string
	}{
		{
			name:      "main element",
			page:      page,
			wantTitle: "AI in Radiology",
			wantText:  "Radiology at scale Hospitals use machine learning to triage scans.",
		},
		{
			name:     "article element",
			page:     `<body><p>Intro</p><article><p>Body text.</p></article></body>`,
			wantText: "Body text.",
		},
		{
			name:     "content class",
			page:     `<body><div class="menu">Menu</div><div class="post-content">Real content.</div></body>`,
			wantText: "Real content.",
		},
		{
			name:     "body fallback skips chrome",
			page:     `<body><nav>Menu</nav><p>One.</p><p>Two.</p><footer>Foot</footer></body>`,
			wantText: "One. Two.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, text, err := Extract(tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>" + strings.Repeat("t", 300) + "</title><main>" + strings.Repeat("word ", 1000) + "</main>"))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "article-engine/test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Plain   text\nreference."))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><script>x()</script></body></html>"))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newFetcher(t *testing.T, ts *httptest.Server) *HTTPFetcher {
	f := NewHTTPFetcher(types.SourcesConfig{Timeout: 5 * time.Second, UserAgent: "article-engine/test"}, zaptest.NewLogger(t))
	f.Client = ts.Client()
	return f
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	ts := newServer(t)
	f := newFetcher(t, ts)

	snippets, warnings := f.Fetch(context.Background(), []string{
		ts.URL + "/page",
		"ftp://example.com/file",
		ts.URL + "/missing",
		ts.URL + "/plain",
		ts.URL + "/empty",
	})

	require.Len(t, snippets, 2)
	assert.Equal(t, types.SourceSnippet{
		URL:     ts.URL + "/page",
		Title:   "AI in Radiology",
		Content: "Radiology at scale Hospitals use machine learning to triage scans.",
	}, snippets[0])
	assert.Equal(t, "Plain text reference.", snippets[1].Content)
	assert.Equal(t, strings.TrimPrefix(ts.URL, "http://"), snippets[1].Title)

	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "ftp://example.com/file skipped: invalid URL")
	assert.Contains(t, warnings[1], "HTTP 404")
	assert.Contains(t, warnings[2], "no content extracted")
}

func TestHTTPFetcher_Truncates(t *testing.T) {
	ts := newServer(t)
	f := newFetcher(t, ts)
	f.MaxChars = 50

	snippets, warnings := f.Fetch(context.Background(), []string{ts.URL + "/long"})
	require.Empty(t, warnings)
	require.Len(t, snippets, 1)
	assert.Len(t, snippets[0].Title, MaxTitleChars)
	assert.LessOrEqual(t, len(snippets[0].Content), 50)
	assert.True(t, strings.HasPrefix(snippets[0].Content, "word word"))
}

func TestHTTPFetcher_CapsURLs(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("reference"))
	}))
	defer ts.Close()

	f := newFetcher(t, ts)
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = ts.URL
	}
	snippets, warnings := f.Fetch(context.Background(), urls)
	assert.Len(t, snippets, types.MaxSourceURLs)
	assert.Empty(t, warnings)
}

func TestHTTPFetcher_CancelledContext(t *testing.T) {
	ts := newServer(t)
	f := newFetcher(t, ts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snippets, warnings := f.Fetch(ctx, []string{ts.URL + "/page"})
	assert.Empty(t, snippets)
	assert.Len(t, warnings, 1)
}
