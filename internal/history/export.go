// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"go.yaml.in/yaml/v3"
)

// Export formats.
const (
	FormatYAML     = "yaml"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ExportYAML writes entries to w as a YAML sequence.
func ExportYAML(w io.Writer, entries []Entry) error {
	data, err := yaml.Marshal(nonNil(entries))
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes entries to w as an indented JSON array.
func ExportJSON(w io.Writer, entries []Entry) error {
	data, err := json.MarshalIndent(nonNil(entries), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func nonNil(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}

// Export writes entries in format ("yaml" or "json").
func Export(w io.Writer, format string, entries []Entry) error {
	switch strings.ToLower(format) {
	case FormatYAML, "yml":
		return ExportYAML(w, entries)
	case FormatJSON:
		return ExportJSON(w, entries)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// FormatForPath infers an export format from a file extension, defaulting
// to markdown for unknown extensions.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".html", ".htm":
		return FormatHTML
	}
	return FormatMarkdown
}

// RenderHTML converts Markdown article text to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
<article>
%s</article>
</body>
</html>
`

// WriteArticle writes the article text of e to w as Markdown or as a
// standalone HTML page.
func WriteArticle(w io.Writer, format string, e Entry) error {
	if e.Content == "" {
		return fmt.Errorf("run %s has no article (state %s)", e.ID, e.State)
	}
	switch strings.ToLower(format) {
	case FormatMarkdown, "md", "":
		_, err := io.WriteString(w, strings.TrimRight(e.Content, "\n")+"\n")
		return err
	case FormatHTML:
		body, err := RenderHTML(e.Content)
		if err != nil {
			return err
		}
		title := e.Title
		if title == "" {
			title = e.Topic
		}
		_, err = fmt.Fprintf(w, htmlPage, html.EscapeString(title), body)
		return err
	}
	return fmt.Errorf("unsupported article format %q", format)
}

// WriteArticleFile writes the article to path, choosing the format from the
// extension.
func WriteArticleFile(path string, e Entry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	format := FormatForPath(path)
	if format != FormatHTML {
		format = FormatMarkdown
	}
	var buf bytes.Buffer
	if err := WriteArticle(&buf, format, e); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
