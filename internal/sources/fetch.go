// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources fetches caller-supplied reference URLs and reduces each
// page to a short plain-text snippet for the researcher.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/article-engine/internal/httputil"
	"github.com/pdiddy/article-engine/pkg/types"
)

// Extraction limits.
const (
	MaxTitleChars   = 200
	DefaultMaxChars = 2000
	maxBodyBytes    = 2 << 20
	fetchRetries    = 2
)

// Fetcher turns URLs into reference snippets. Failures never abort a fetch:
// the URL is skipped and a warning is returned instead.
type Fetcher interface {
	Fetch(ctx context.Context, urls []string) (snippets []types.SourceSnippet, warnings []string)
}

// HTTPFetcher fetches pages over HTTP and extracts their main text.
type HTTPFetcher struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	MaxChars  int
	Logger    *zap.Logger
}

// NewHTTPFetcher returns a fetcher configured from cfg.
func NewHTTPFetcher(cfg types.SourcesConfig, logger *zap.Logger) *HTTPFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPFetcher{
		Client:    &http.Client{},
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		MaxChars:  cfg.MaxChars,
		Logger:    logger,
	}
}

// Fetch retrieves up to types.MaxSourceURLs URLs concurrently. Snippets keep
// the order of urls.
func (f *HTTPFetcher) Fetch(ctx context.Context, urls []string) ([]types.SourceSnippet, []string) {
	if len(urls) > types.MaxSourceURLs {
		urls = urls[:types.MaxSourceURLs]
	}

	results := make([]*types.SourceSnippet, len(urls))
	errs := make([]error, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			s, err := f.fetchOne(ctx, u)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &s
			return nil
		})
	}
	g.Wait()

	var snippets []types.SourceSnippet
	var warnings []string
	for i, u := range urls {
		if errs[i] != nil {
			f.logger().Warn("skipping source", zap.String("url", u), zap.Error(errs[i]))
			warnings = append(warnings, fmt.Sprintf("source %s skipped: %v", u, errs[i]))
			continue
		}
		snippets = append(snippets, *results[i])
	}
	return snippets, warnings
}

func (f *HTTPFetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func (f *HTTPFetcher) fetchOne(ctx context.Context, raw string) (types.SourceSnippet, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return types.SourceSnippet{}, fmt.Errorf("invalid URL")
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return types.SourceSnippet{}, fmt.Errorf("creating request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, fetchRetries)
	if err != nil {
		return types.SourceSnippet{}, fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.SourceSnippet{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return types.SourceSnippet{}, fmt.Errorf("reading body: %w", err)
	}

	var title, text string
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		text = collapse(string(body))
	} else {
		title, text, err = Extract(string(body))
		if err != nil {
			return types.SourceSnippet{}, fmt.Errorf("parsing HTML: %w", err)
		}
	}
	if text == "" {
		return types.SourceSnippet{}, fmt.Errorf("no content extracted")
	}
	if title == "" {
		title = u.Host
	}

	maxChars := f.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return types.SourceSnippet{
		URL:     u.String(),
		Title:   truncate(title, MaxTitleChars),
		Content: truncate(text, maxChars),
	}, nil
}

var (
	whitespace   = regexp.MustCompile(`\s+`)
	contentClass = regexp.MustCompile(`(?i)content|main|article`)
)

// skipped elements never contribute text.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true, "svg": true,
	"nav": true, "header": true, "footer": true, "form": true, "aside": true,
}

// Extract returns the page title and the text of its main content area: the
// first <main>, else <article>, else a <div> whose class mentions content,
// main, or article, else <body>.
func Extract(page string) (title, text string, err error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", "", err
	}

	if t := find(doc, func(n *html.Node) bool { return n.Data == "title" }); t != nil {
		title = collapse(textOf(t))
	}

	root := find(doc, func(n *html.Node) bool { return n.Data == "main" })
	if root == nil {
		root = find(doc, func(n *html.Node) bool { return n.Data == "article" })
	}
	if root == nil {
		root = find(doc, func(n *html.Node) bool {
			return n.Data == "div" && contentClass.MatchString(attr(n, "class"))
		})
	}
	if root == nil {
		root = find(doc, func(n *html.Node) bool { return n.Data == "body" })
	}
	if root == nil {
		root = doc
	}
	return title, collapse(textOf(root)), nil
}

// find returns the first element in document order matching match.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if skipped[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return strings.TrimSpace(string(r[:n]))
	}
	return s
}
