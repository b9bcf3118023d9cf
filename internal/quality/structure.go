// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Structure counts the Markdown building blocks of an article.
type Structure struct {
	Headings   int `json:"headings" yaml:"headings"`
	Paragraphs int `json:"paragraphs" yaml:"paragraphs"`
	Lists      int `json:"lists" yaml:"lists"`
	ListItems  int `json:"list_items" yaml:"list_items"`
	Links      int `json:"links" yaml:"links"`
}

var markdown = goldmark.New()

// StructureOf parses src as CommonMark and counts its blocks.
func StructureOf(src string) Structure {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var s Structure
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			s.Headings++
		case ast.KindParagraph:
			s.Paragraphs++
		case ast.KindList:
			s.Lists++
		case ast.KindListItem:
			s.ListItems++
		case ast.KindLink, ast.KindAutoLink:
			s.Links++
		}
		return ast.WalkContinue, nil
	})
	return s
}
