package adapter

import (
	"reflect"

	"github.com/rgonek/html-md-bridge/pipeline"
)

// Mode is the execution strategy of a Stage.
type Mode int

const (
	// ModeMutate returns the converted tree to the hosting pipeline.
	ModeMutate Mode = iota
	// ModeBridge hands the converted tree to a downstream processor and
	// reports only its completion.
	ModeBridge
)

func (m Mode) String() string {
	switch m {
	case ModeMutate:
		return "mutate"
	case ModeBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

// Processor is an independent downstream pipeline. Run must call done
// exactly once.
type Processor interface {
	Run(tree pipeline.Node, file *pipeline.File, done pipeline.Continuation)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(tree pipeline.Node, file *pipeline.File, done pipeline.Continuation)

func (fn ProcessorFunc) Run(tree pipeline.Node, file *pipeline.File, done pipeline.Continuation) {
	fn(tree, file, done)
}

// Resolved is the outcome of argument resolution.
type Resolved struct {
	Mode      Mode
	Processor Processor
	Options   Options
}

// Stage builds a Stage from the resolved arguments.
func (r Resolved) Stage(opts ...StageOption) *Stage {
	return newStage(r.Mode, r.Processor, r.Options, opts)
}

// Resolve inspects up to two positional arguments. When the first one can run
// as a processor it is the downstream processor and the second one holds the
// options; the mode is ModeBridge. Otherwise the first one holds the options
// and the mode is ModeMutate.
//
// Options may be given as Options, *Options or nil. Values of any other type
// count as empty options. The options are normalized; the arguments are not
// modified.
func Resolve(args ...any) Resolved {
	var first, second any
	if len(args) > 0 {
		first = args[0]
	}
	if len(args) > 1 {
		second = args[1]
	}

	if processor, ok := asProcessor(first); ok {
		return Resolved{
			Mode:      ModeBridge,
			Processor: processor,
			Options:   Normalize(asOptions(second)),
		}
	}
	return Resolved{
		Mode:    ModeMutate,
		Options: Normalize(asOptions(first)),
	}
}

func asProcessor(arg any) (Processor, bool) {
	if isNil(arg) {
		return nil, false
	}
	switch v := arg.(type) {
	case Processor:
		return v, true
	case func(pipeline.Node, *pipeline.File, pipeline.Continuation):
		return ProcessorFunc(v), true
	case func(pipeline.Node, *pipeline.File, func(error)):
		return ProcessorFunc(func(tree pipeline.Node, file *pipeline.File, done pipeline.Continuation) {
			v(tree, file, done)
		}), true
	default:
		return nil, false
	}
}

func asOptions(arg any) Options {
	switch v := arg.(type) {
	case Options:
		return v
	case *Options:
		if v != nil {
			return *v
		}
	}
	return Options{}
}

func isNil(arg any) bool {
	if arg == nil {
		return true
	}
	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
