// Package converter turns HTML trees into Markdown trees.
//
// Rendering is done by html-to-markdown with the commonmark, strikethrough
// and table plugins plus the rules driven by Options. The markdown it
// produces is parsed back with goldmark into an mdast.Tree.
package converter

import (
	"context"
	"errors"
	"fmt"

	htmlconv "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/rgonek/html-md-bridge/hast"
	"github.com/rgonek/html-md-bridge/mdast"
)

// ErrNilTree is returned when the input tree is nil.
var ErrNilTree = errors.New("html tree is nil")

// Converter converts HTML trees to Markdown trees. It is safe for concurrent use.
type Converter struct {
	opts Options
	md   *htmlconv.Converter
}

// New creates a new Converter with the given options.
func New(opts Options) (*Converter, error) {
	opts = opts.applyDefaults().Clone()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	md := htmlconv.NewConverter(
		htmlconv.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithStrongDelimiter("**"),
				commonmark.WithEmDelimiter("*"),
				commonmark.WithBulletListMarker("-"),
			),
			strikethrough.NewStrikethroughPlugin(),
			table.NewTablePlugin(),
			&optionsPlugin{opts: opts},
		),
	)

	return &Converter{
		opts: opts,
		md:   md,
	}, nil
}

// Convert is a shorthand for New followed by Convert. Option errors are
// reported as conversion failures.
func Convert(tree *html.Node, opts Options) (*mdast.Tree, error) {
	conv, err := New(opts)
	if err != nil {
		return nil, err
	}
	return conv.Convert(tree)
}

// Convert converts tree to a Markdown tree. The input is never modified.
func (c *Converter) Convert(tree *html.Node) (*mdast.Tree, error) {
	return c.ConvertWithContext(context.Background(), tree)
}

// ConvertWithContext converts tree using ctx for cancellation and handler calls.
func (c *Converter) ConvertWithContext(ctx context.Context, tree *html.Node) (*mdast.Tree, error) {
	res, err := c.ConvertResult(ctx, tree)
	if err != nil {
		return nil, err
	}
	return res.Tree, nil
}

// ConvertResult converts tree and also returns the warnings collected on the way.
func (c *Converter) ConvertResult(ctx context.Context, tree *html.Node) (Result, error) {
	if tree == nil {
		return Result{}, ErrNilTree
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s := &state{}
	out, err := c.md.ConvertNode(
		hast.Clone(tree),
		htmlconv.WithContext(context.WithValue(ctx, stateKey{}, s)),
	)
	if err != nil {
		return Result{}, fmt.Errorf("failed to render markdown: %w", err)
	}
	if s.err != nil {
		return Result{}, s.err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	md := mdast.Parse(out)
	if !*c.opts.Document {
		md.UnwrapParagraph()
	}

	return Result{
		Tree:     md,
		Warnings: s.warnings,
	}, nil
}
