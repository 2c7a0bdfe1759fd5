package indexer

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// MarkdownToText renders markdown as plain text with one block per paragraph
// and returns the document title. The title is the first level-1 heading,
// else the first level-2 heading, else derived from filename.
func MarkdownToText(content []byte, filename string) (title, body string) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return TitleFromFilename(filename), ""
	}

	doc := markdown.Parser().Parse(text.NewReader(content))
	title = extractTitle(doc, content)
	if title == "" {
		title = TitleFromFilename(filename)
	}

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			if s := extractTextFromNode(node, content); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if s := strings.TrimSpace(linesText(node, content)); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		case *extast.TableHeader, *extast.TableRow:
			if s := extractTableRowText(node, content); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return title, strings.Join(blocks, "\n\n")
}

func extractTitle(doc ast.Node, content []byte) string {
	var firstH1, firstH2 string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		switch {
		case heading.Level == 1:
			firstH1 = extractTextFromNode(heading, content)
			return ast.WalkStop, nil
		case heading.Level == 2 && firstH2 == "":
			firstH2 = extractTextFromNode(heading, content)
		}
		return ast.WalkSkipChildren, nil
	})
	if firstH1 != "" {
		return firstH1
	}
	return firstH2
}

// TitleFromFilename drops the extension and capitalizes each word, treating
// dashes and underscores as spaces.
func TitleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// extractTextFromNode extracts the inline text of a node and its children.
// Soft line breaks become spaces.
func extractTextFromNode(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.URL(content))
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func linesText(n ast.Node, content []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(content))
	}
	return b.String()
}

// extractTableRowText formats the cells of a table row with pipe separators.
func extractTableRowText(row ast.Node, content []byte) string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, extractTextFromNode(c, content))
	}
	return strings.TrimSpace(strings.Join(cells, " | "))
}
