// Package mdast models Markdown trees on top of the goldmark AST.
package mdast

import (
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Tree is a goldmark AST together with the source its segments point into.
type Tree struct {
	Root   ast.Node
	Source []byte
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
}

// Parse parses GFM markdown into a Tree.
func Parse(source []byte) *Tree {
	root := newMarkdown().Parser().Parse(text.NewReader(source))
	return &Tree{
		Root:   root,
		Source: source,
	}
}

// Markdown returns the markdown source backing the tree.
func (t *Tree) Markdown() string {
	return string(t.Source)
}

// IsEmpty reports whether the root has no children.
func (t *Tree) IsEmpty() bool {
	return t.Root == nil || t.Root.ChildCount() == 0
}

// Walk visits every node in document order.
func (t *Tree) Walk(walker ast.Walker) error {
	if t.Root == nil {
		return nil
	}
	return ast.Walk(t.Root, walker)
}

// Kinds returns the kind names of all nodes in document order, root first.
func (t *Tree) Kinds() []string {
	var kinds []string
	_ = t.Walk(func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			kinds = append(kinds, n.Kind().String())
		}
		return ast.WalkContinue, nil
	})
	return kinds
}

// RenderHTML renders the tree as HTML.
func (t *Tree) RenderHTML(w io.Writer) error {
	if t.Root == nil {
		return nil
	}
	if err := newMarkdown().Renderer().Render(w, t.Source, t.Root); err != nil {
		return fmt.Errorf("failed to render markdown tree: %w", err)
	}
	return nil
}

// UnwrapParagraph moves the children of a lone top-level paragraph directly
// under the root. It reports whether the tree changed.
func (t *Tree) UnwrapParagraph() bool {
	if t.Root == nil || t.Root.ChildCount() != 1 {
		return false
	}
	paragraph, ok := t.Root.FirstChild().(*ast.Paragraph)
	if !ok {
		return false
	}

	t.Root.RemoveChild(t.Root, paragraph)
	for child := paragraph.FirstChild(); child != nil; {
		next := child.NextSibling()
		paragraph.RemoveChild(paragraph, child)
		t.Root.AppendChild(t.Root, child)
		child = next
	}
	return true
}
