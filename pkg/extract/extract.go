// Package extract pulls structured content out of assistant markdown. The
// export command uses it to write fenced code blocks from a conversation to
// files.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type CodeBlock struct {
	Language string
	Code     string
}

type Heading struct {
	Level int
	Text  string
}

// CodeBlocks returns the fenced code blocks of a markdown document in order.
func CodeBlocks(markdown string) ([]CodeBlock, error) {
	source := []byte(markdown)
	document := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	err := ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var sb strings.Builder
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			sb.Write(segment.Value(source))
		}
		blocks = append(blocks, CodeBlock{
			Language: string(block.Language(source)),
			Code:     sb.String(),
		})
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not walk markdown document")
	}
	return blocks, nil
}

// Headings returns the headings of a markdown document in order.
func Headings(markdown string) ([]Heading, error) {
	source := []byte(markdown)
	document := goldmark.DefaultParser().Parse(text.NewReader(source))

	var headings []Heading
	err := ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings = append(headings, Heading{
				Level: h.Level,
				Text:  string(h.Text(source)),
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not walk markdown document")
	}
	return headings, nil
}

// extensions maps fence languages to file extensions for exported blocks.
var extensions = map[string]string{
	"go":         "go",
	"python":     "py",
	"javascript": "js",
	"typescript": "ts",
	"rust":       "rs",
	"bash":       "sh",
	"sh":         "sh",
	"shell":      "sh",
	"sql":        "sql",
	"yaml":       "yaml",
	"yml":        "yaml",
	"json":       "json",
	"html":       "html",
	"css":        "css",
	"c":          "c",
	"cpp":        "cpp",
	"java":       "java",
	"ruby":       "rb",
	"markdown":   "md",
}

func extensionFor(language string) string {
	if ext, ok := extensions[strings.ToLower(language)]; ok {
		return ext
	}
	return "txt"
}

// WriteCodeBlocks writes each block to dir as block-NNN.<ext>, numbering
// from 1, and returns the written paths.
func WriteCodeBlocks(dir string, blocks []CodeBlock) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create export directory %s", dir)
	}

	var paths []string
	for i, block := range blocks {
		name := fmt.Sprintf("block-%03d.%s", i+1, extensionFor(block.Language))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(block.Code), 0644); err != nil {
			return paths, errors.Wrapf(err, "could not write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
