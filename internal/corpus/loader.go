// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-engine/pkg/types"
)

//go:embed seed.yaml
var seedYAML []byte

// SeedDocuments returns the built-in house-style exemplars.
func SeedDocuments() ([]types.ExemplarDocument, error) {
	docs, err := ParseYAML(seedYAML)
	if err != nil {
		return nil, fmt.Errorf("parsing seed exemplars: %w", err)
	}
	return docs, nil
}

// ParseYAML decodes a YAML list of exemplars, or a single exemplar mapping.
func ParseYAML(data []byte) ([]types.ExemplarDocument, error) {
	var docs []types.ExemplarDocument
	if err := yaml.Unmarshal(data, &docs); err == nil {
		return docs, nil
	}
	var one types.ExemplarDocument
	if err := yaml.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []types.ExemplarDocument{one}, nil
}

// LoadFile reads exemplars from a .md, .txt, .yaml, or .yml file. Text and
// Markdown files hold one exemplar whose ID is the file's base name.
func LoadFile(path string) ([]types.ExemplarDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exemplar %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		docs, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parsing exemplar %s: %w", path, err)
		}
		for i := range docs {
			if docs[i].Source == "" {
				docs[i].Source = path
			}
		}
		return docs, nil
	case ".md", ".txt":
		base := filepath.Base(path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		text := string(data)
		title := types.TitleOf(text)
		if title == "" {
			title = stem
		}
		return []types.ExemplarDocument{{ID: stem, Title: title, Text: text, Source: path}}, nil
	}
	return nil, fmt.Errorf("unsupported exemplar file %s", path)
}

// LoadPaths reads exemplars from files and directories. Directories are
// scanned one level deep for supported extensions in lexical order.
func LoadPaths(paths []string) ([]types.ExemplarDocument, error) {
	var docs []types.ExemplarDocument
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading exemplar path: %w", err)
		}
		if !info.IsDir() {
			d, err := LoadFile(p)
			if err != nil {
				return nil, err
			}
			docs = append(docs, d...)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("reading exemplar directory %s: %w", p, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && supported(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			d, err := LoadFile(filepath.Join(p, name))
			if err != nil {
				return nil, err
			}
			docs = append(docs, d...)
		}
	}
	return docs, nil
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".txt", ".yaml", ".yml":
		return true
	}
	return false
}
