package converter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/JohannesKaufmann/dom"
	htmlconv "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"golang.org/x/net/html"
)

// lineEnding stands in for a kept line ending until after whitespace collapsing.
const lineEnding = "\uE000"

type stateKey struct{}

type quoteDepthKey struct{}

// state collects per-conversion results that renderers cannot return directly.
// Subtrees can be rendered more than once when a handler declines, so handler
// results and warnings are recorded once per node.
type state struct {
	mu       sync.Mutex
	err      error
	warnings []Warning
	warned   map[warningKey]bool
	results  map[*html.Node]HandlerOutput
}

type warningKey struct {
	node *html.Node
	typ  WarningType
}

func (s *state) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *state) failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

func (s *state) addWarning(n *html.Node, typ WarningType, tag, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := warningKey{node: n, typ: typ}
	if s.warned[key] {
		return
	}
	if s.warned == nil {
		s.warned = make(map[warningKey]bool)
	}
	s.warned[key] = true
	s.warnings = append(s.warnings, Warning{Type: typ, Tag: tag, Message: message})
}

func (s *state) result(n *html.Node) (HandlerOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.results[n]
	return out, ok
}

func (s *state) setResult(n *html.Node, out HandlerOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = make(map[*html.Node]HandlerOutput)
	}
	s.results[n] = out
}

func stateFrom(ctx context.Context) *state {
	if s, ok := ctx.Value(stateKey{}).(*state); ok {
		return s
	}
	return &state{}
}

// optionsPlugin registers the option-driven rules on top of commonmark.
type optionsPlugin struct {
	opts Options
}

func (p *optionsPlugin) Name() string {
	return "options"
}

func (p *optionsPlugin) Init(conv *htmlconv.Converter) error {
	if p.opts.Newlines {
		conv.Register.PreRenderer(p.preRenderLineEndings, htmlconv.PriorityEarly)
		conv.Register.PostRenderer(p.postRenderLineEndings, htmlconv.PriorityEarly)
	}

	conv.Register.RendererFor("input", htmlconv.TagTypeInline, p.renderInput, htmlconv.PriorityEarly)
	conv.Register.RendererFor("q", htmlconv.TagTypeInline, p.renderQuote, htmlconv.PriorityEarly)

	for tag, handler := range p.opts.Handlers {
		if dom.NameIsInlineNode(tag) {
			conv.Register.RendererFor(tag, htmlconv.TagTypeInline, p.handlerRenderer(tag, false, handler), htmlconv.PriorityEarly)
			continue
		}
		conv.Register.RendererFor(tag, htmlconv.TagTypeBlock, p.handlerRenderer(tag, true, handler), htmlconv.PriorityEarly)
	}
	return nil
}

func (p *optionsPlugin) preRenderLineEndings(_ htmlconv.Context, doc *html.Node) {
	texts := dom.FindAllNodes(doc, func(n *html.Node) bool {
		return n.Type == html.TextNode && !insidePreformatted(n)
	})
	for _, n := range texts {
		n.Data = markLineEndings(n.Data)
	}
}

func (p *optionsPlugin) postRenderLineEndings(_ htmlconv.Context, content []byte) []byte {
	return bytes.ReplaceAll(content, []byte(lineEnding), []byte("\n"))
}

// markLineEndings replaces line endings between non-whitespace text, together
// with the blanks around them, by the lineEnding placeholder. Leading and
// trailing whitespace is left for the collapse pass.
func markLineEndings(text string) string {
	start := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	end := len(strings.TrimRightFunc(text, unicode.IsSpace))
	if start >= end {
		return text
	}

	interior := strings.ReplaceAll(text[start:end], "\r\n", "\n")
	if !strings.Contains(interior, "\n") {
		return text
	}

	lines := strings.Split(interior, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimFunc(line, isBlank)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return text[:start] + strings.Join(kept, lineEnding) + text[end:]
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r'
}

func insidePreformatted(n *html.Node) bool {
	for parent := n.Parent; parent != nil; parent = parent.Parent {
		switch dom.NodeName(parent) {
		case "pre", "code", "textarea", "script", "style":
			return true
		}
	}
	return false
}

func (p *optionsPlugin) renderInput(ctx htmlconv.Context, w htmlconv.Writer, n *html.Node) htmlconv.RenderStatus {
	inputType := strings.ToLower(dom.GetAttributeOr(n, "type", "text"))
	if inputType != "checkbox" && inputType != "radio" {
		return p.renderInputValue(ctx, w, n, inputType)
	}

	marker := p.opts.Unchecked
	if _, checked := dom.GetAttribute(n, "checked"); checked {
		marker = p.opts.Checked
	}
	if isTaskMarker(marker) {
		w.WriteString(marker)
	} else {
		w.Write(ctx.EscapeContent([]byte(marker)))
	}
	if !followedBySpace(n) {
		w.WriteString(" ")
	}
	return htmlconv.RenderSuccess
}

// renderInputValue writes the value shown by a non-checkable input: its value,
// its placeholder, or for image inputs its alt text.
func (p *optionsPlugin) renderInputValue(ctx htmlconv.Context, w htmlconv.Writer, n *html.Node, inputType string) htmlconv.RenderStatus {
	if inputType == "hidden" || inputType == "file" || inputType == "password" {
		stateFrom(ctx).addWarning(n, WarningDroppedInput, "input", fmt.Sprintf("dropped input of type %q", inputType))
		return htmlconv.RenderSuccess
	}

	keys := []string{"value", "placeholder"}
	if inputType == "image" {
		keys = []string{"alt", "value"}
	}
	for _, key := range keys {
		if value := strings.TrimSpace(dom.GetAttributeOr(n, key, "")); value != "" {
			w.Write(ctx.EscapeContent([]byte(value)))
			return htmlconv.RenderSuccess
		}
	}

	stateFrom(ctx).addWarning(n, WarningDroppedInput, "input", fmt.Sprintf("dropped empty input of type %q", inputType))
	return htmlconv.RenderSuccess
}

// isTaskMarker reports whether marker is a GFM task list marker, which is
// written as syntax so list items become task items.
func isTaskMarker(marker string) bool {
	switch marker {
	case DefaultChecked, DefaultUnchecked, "[X]":
		return true
	}
	return false
}

func followedBySpace(n *html.Node) bool {
	next := n.NextSibling
	if next == nil || next.Type != html.TextNode || next.Data == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(next.Data)
	return unicode.IsSpace(r)
}

func (p *optionsPlugin) renderQuote(ctx htmlconv.Context, w htmlconv.Writer, n *html.Node) htmlconv.RenderStatus {
	depth, _ := ctx.Value(quoteDepthKey{}).(int)
	opening, closing := quoteMarks(p.opts.Quotes[depth%len(p.opts.Quotes)])

	w.Write(ctx.EscapeContent([]byte(opening)))
	ctx.RenderChildNodes(ctx.WithValue(quoteDepthKey{}, depth+1), w, n)
	w.Write(ctx.EscapeContent([]byte(closing)))
	return htmlconv.RenderSuccess
}

// quoteMarks splits a Quotes entry into its opening and closing marks.
func quoteMarks(quote string) (string, string) {
	open, size := utf8.DecodeRuneInString(quote)
	if size == len(quote) {
		return quote, quote
	}
	closing, _ := utf8.DecodeRuneInString(quote[size:])
	return string(open), string(closing)
}

func (p *optionsPlugin) handlerRenderer(tag string, block bool, handler Handler) htmlconv.HandleRenderFunc {
	return func(ctx htmlconv.Context, w htmlconv.Writer, n *html.Node) htmlconv.RenderStatus {
		s := stateFrom(ctx)
		if s.failed() {
			return htmlconv.RenderSuccess
		}

		out, ok := s.result(n)
		if !ok {
			var content bytes.Buffer
			ctx.RenderChildNodes(ctx, &content, n)

			var err error
			out, err = handler(ctx, HandlerInput{
				Node:    n,
				Content: strings.TrimSpace(content.String()),
			})
			if err != nil {
				s.fail(fmt.Errorf("handler for %q failed: %w", tag, err))
				return htmlconv.RenderSuccess
			}
			s.setResult(n, out)
		}
		if !out.Handled {
			s.addWarning(n, WarningHandlerFallback, tag, fmt.Sprintf("handler for %q declined; using built-in rendering", tag))
			return htmlconv.RenderTryNext
		}

		if block {
			w.WriteString("\n\n")
		}
		w.WriteString(out.Markdown)
		if block {
			w.WriteString("\n\n")
		}
		return htmlconv.RenderSuccess
	}
}
