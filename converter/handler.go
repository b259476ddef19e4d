package converter

import (
	"context"

	"golang.org/x/net/html"
)

// HandlerInput describes an element being converted by a custom handler.
type HandlerInput struct {
	Node *html.Node
	// Content is the markdown rendered for the element's children.
	Content string
}

// HandlerOutput is the markdown produced for an element. When Handled is
// false the built-in rendering is used instead.
type HandlerOutput struct {
	Markdown string
	Handled  bool
}

// Handler converts a single element, keyed by tag name in Options.Handlers.
type Handler func(ctx context.Context, in HandlerInput) (HandlerOutput, error)
