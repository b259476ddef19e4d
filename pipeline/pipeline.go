// Package pipeline is a small tree-processing host: an ordered list of
// transform stages run over a tree and a shared File.
//
// Stages are either synchronous (SyncFunc) and may replace the tree, or
// asynchronous (AsyncFunc) and signal completion through a single-shot
// Continuation that carries only an optional error.
package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
)

// Node is any tree carried through a processor.
type Node any

// Continuation signals completion of an asynchronous stage. A nil error
// means success; success carries no payload.
type Continuation func(err error)

// Transformer is a pipeline stage. Use SyncFunc or AsyncFunc.
type Transformer interface {
	transform(tree Node, file *File, next func(Node, error)) error
}

// SyncFunc is a synchronous stage. A nil result keeps the current tree.
type SyncFunc func(tree Node, file *File) (Node, error)

func (fn SyncFunc) transform(tree Node, file *File, next func(Node, error)) error {
	out, err := fn(tree, file)
	if err != nil {
		return err
	}
	if out == nil {
		out = tree
	}
	next(out, nil)
	return nil
}

// AsyncFunc is an asynchronous stage. It must either return a non-nil error
// without calling next, or call next exactly once. The tree passes through
// unchanged.
type AsyncFunc func(tree Node, file *File, next Continuation) error

func (fn AsyncFunc) transform(tree Node, file *File, next func(Node, error)) error {
	return fn(tree, file, func(err error) {
		next(tree, err)
	})
}

// StageError wraps a failure reported by a stage.
type StageError struct {
	Processor string
	Stage     string
	Index     int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: stage %d (%s) failed: %v", e.Processor, e.Index, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type stage struct {
	name        string
	transformer Transformer
}

// Processor runs a tree through its stages in order.
type Processor struct {
	name   string
	logger *slog.Logger
	stages []stage
}

// Option configures a Processor.
type Option func(*Processor)

// WithName sets the processor name used in logs and errors.
func WithName(name string) Option {
	return func(p *Processor) {
		p.name = name
	}
}

// WithLogger sets the processor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates an empty Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		name:   "pipeline",
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Use appends a stage.
func (p *Processor) Use(name string, t Transformer) *Processor {
	p.stages = append(p.stages, stage{name: name, transformer: t})
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return p.name
}

// Stages returns the stage names in run order.
func (p *Processor) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.name)
	}
	return names
}

// Run runs the stages and reports completion through done, dropping the
// resulting tree. It satisfies the downstream contract used by bridge stages.
func (p *Processor) Run(tree Node, file *File, done Continuation) {
	p.RunTree(tree, file, func(_ Node, err error) {
		done(err)
	})
}

// RunTree runs the stages and calls done exactly once with the final tree
// or the first failure.
func (p *Processor) RunTree(tree Node, file *File, done func(Node, error)) {
	if file == nil {
		file = NewFile("", nil)
	}
	stages := slices.Clone(p.stages)
	logger := p.logger.With(
		slog.String("processor", p.name),
		slog.String("file_id", file.ID),
	)

	var step func(index int, tree Node)
	step = func(index int, tree Node) {
		if index == len(stages) {
			logger.Debug("pipeline completed", slog.Int("stages", len(stages)))
			done(tree, nil)
			return
		}

		current := stages[index]
		fail := func(err error) {
			logger.Debug("stage failed",
				slog.String("stage", current.name),
				slog.Int("index", index),
				slog.String("error", err.Error()))
			done(nil, &StageError{
				Processor: p.name,
				Stage:     current.name,
				Index:     index,
				Err:       err,
			})
		}

		var called atomic.Bool
		next := func(out Node, err error) {
			if !called.CompareAndSwap(false, true) {
				logger.Warn("continuation invoked more than once", slog.String("stage", current.name))
				return
			}
			if err != nil {
				fail(err)
				return
			}
			step(index+1, out)
		}

		logger.Debug("running stage", slog.String("stage", current.name), slog.Int("index", index))
		if err := current.transformer.transform(tree, file, next); err != nil {
			if !called.CompareAndSwap(false, true) {
				logger.Warn("stage returned an error after continuing", slog.String("stage", current.name))
				return
			}
			fail(err)
		}
	}

	step(0, tree)
}

// RunSync runs the stages and blocks until they complete. A stage that never
// invokes its continuation blocks RunSync forever; there is no timeout.
func (p *Processor) RunSync(tree Node, file *File) (Node, error) {
	type result struct {
		tree Node
		err  error
	}

	results := make(chan result, 1)
	p.RunTree(tree, file, func(out Node, err error) {
		results <- result{tree: out, err: err}
	})

	res := <-results
	return res.tree, res.err
}
