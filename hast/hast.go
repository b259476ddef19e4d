// Package hast holds helpers for HTML source trees built on golang.org/x/net/html.
package hast

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses a complete HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParseString parses a complete HTML document from a string.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// ParseFragment parses HTML in a <body> context and wraps the resulting
// nodes in a document node, so no <html>/<head>/<body> scaffolding is added.
func ParseFragment(r io.Reader) (*html.Node, error) {
	body := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	nodes, err := html.ParseFragment(r, body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}

	root := &html.Node{Type: html.DocumentNode}
	for _, node := range nodes {
		root.AppendChild(node)
	}
	return root, nil
}

// Clone returns a deep copy of node and its descendants. The copy is
// detached: it has no parent or siblings.
func Clone(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}

	cloned := &html.Node{
		Type:      node.Type,
		DataAtom:  node.DataAtom,
		Data:      node.Data,
		Namespace: node.Namespace,
		Attr:      slices.Clone(node.Attr),
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		cloned.AppendChild(Clone(child))
	}
	return cloned
}

// Render serializes node back to HTML.
func Render(node *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, node); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return sb.String(), nil
}
