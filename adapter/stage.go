// Package adapter provides a pipeline stage that converts HTML trees to
// Markdown trees in one of two modes.
//
// In mutate mode the converted tree replaces the HTML tree in the hosting
// pipeline. In bridge mode the converted tree is handed to an independent
// downstream processor; only its success or failure is reported back, through
// the hosting pipeline's continuation.
//
// Stages are built with Standalone or WithDownstream. Configure and Resolve
// accept loosely typed arguments and choose the mode from their shape.
package adapter

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/rgonek/html-md-bridge/converter"
	"github.com/rgonek/html-md-bridge/mdast"
	"github.com/rgonek/html-md-bridge/pipeline"
)

var (
	// ErrUnsupportedTree is returned when the pipeline hands over something
	// other than an *html.Node.
	ErrUnsupportedTree = errors.New("unsupported tree")
	// ErrBridgeMode is returned by Transform on a bridge stage.
	ErrBridgeMode = errors.New("stage runs in bridge mode")
	// ErrMutateMode is returned by Bridge on a mutate stage.
	ErrMutateMode = errors.New("stage runs in mutate mode")
)

// ConvertFunc converts an HTML tree to a Markdown tree.
type ConvertFunc func(tree *html.Node, opts Options) (*mdast.Tree, error)

// StageOption configures a Stage.
type StageOption func(*Stage)

// WithConvert replaces the conversion function. The default is converter.Convert.
func WithConvert(convert ConvertFunc) StageOption {
	return func(s *Stage) {
		if convert != nil {
			s.convert = convert
		}
	}
}

// Stage converts HTML trees to Markdown trees inside a pipeline. Its mode,
// processor and options are fixed at construction. A Stage is safe for
// concurrent use.
type Stage struct {
	mode      Mode
	processor Processor
	opts      Options
	convert   ConvertFunc
}

// Standalone returns a mutate stage.
func Standalone(opts Options, stageOpts ...StageOption) *Stage {
	return newStage(ModeMutate, nil, Normalize(opts), stageOpts)
}

// WithDownstream returns a bridge stage that runs processor on every
// converted tree. It panics if processor is nil.
func WithDownstream(processor Processor, opts Options, stageOpts ...StageOption) *Stage {
	if isNil(processor) {
		panic("adapter: nil downstream processor")
	}
	return newStage(ModeBridge, processor, Normalize(opts), stageOpts)
}

// Configure resolves args like Resolve and returns the resulting stage.
func Configure(args ...any) *Stage {
	return Resolve(args...).Stage()
}

func newStage(mode Mode, processor Processor, opts Options, stageOpts []StageOption) *Stage {
	s := &Stage{
		mode:      mode,
		processor: processor,
		opts:      opts,
		convert:   converter.Convert,
	}
	for _, opt := range stageOpts {
		opt(s)
	}
	return s
}

// Mode returns the stage mode.
func (s *Stage) Mode() Mode {
	return s.mode
}

// Options returns a copy of the normalized options.
func (s *Stage) Options() Options {
	return s.opts.Clone()
}

// Processor returns the downstream processor, or nil in mutate mode.
func (s *Stage) Processor() Processor {
	return s.processor
}

// Transformer returns the pipeline stage for the mode: a pipeline.AsyncFunc
// in bridge mode, a pipeline.SyncFunc in mutate mode.
func (s *Stage) Transformer() pipeline.Transformer {
	if s.mode == ModeBridge {
		return pipeline.AsyncFunc(s.Bridge)
	}
	return pipeline.SyncFunc(s.mutate)
}

func sourceTree(tree pipeline.Node) (*html.Node, error) {
	node, ok := tree.(*html.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTree, tree)
	}
	return node, nil
}
