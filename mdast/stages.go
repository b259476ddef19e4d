package mdast

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/rgonek/html-md-bridge/pipeline"
)

// ErrNotMarkdownTree is returned by stages that receive something other than *Tree.
var ErrNotMarkdownTree = errors.New("expected a markdown tree")

// Format selects the output written by Compiler.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Stringifier writes the markdown source of the tree into file.Value.
func Stringifier() pipeline.SyncFunc {
	return func(tree pipeline.Node, file *pipeline.File) (pipeline.Node, error) {
		t, err := asTree(tree)
		if err != nil {
			return nil, err
		}
		if t.IsEmpty() {
			file.Warn("stringify", "markdown tree is empty")
		}
		file.Value = append([]byte(nil), t.Source...)
		return t, nil
	}
}

// Compiler writes the tree into file.Value in the given format.
func Compiler(format Format) (pipeline.SyncFunc, error) {
	switch format {
	case FormatMarkdown:
		return Stringifier(), nil
	case FormatHTML:
		return func(tree pipeline.Node, file *pipeline.File) (pipeline.Node, error) {
			t, err := asTree(tree)
			if err != nil {
				return nil, err
			}
			if t.IsEmpty() {
				file.Warn("compile", "markdown tree is empty")
			}
			var buf bytes.Buffer
			if err := t.RenderHTML(&buf); err != nil {
				return nil, err
			}
			file.Value = buf.Bytes()
			return t, nil
		}, nil
	default:
		return nil, fmt.Errorf("invalid format %q (allowed: markdown, html)", format)
	}
}

func asTree(tree pipeline.Node) (*Tree, error) {
	t, ok := tree.(*Tree)
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: got %T", ErrNotMarkdownTree, tree)
	}
	return t, nil
}
