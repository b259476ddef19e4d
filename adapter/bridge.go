package adapter

import (
	"sync"

	"github.com/rgonek/html-md-bridge/pipeline"
)

// Bridge converts tree and runs the downstream processor on the result with
// the same file. Completion of the processor is forwarded to next with
// exactly the error it reported; the processor's tree is not passed back.
//
// A conversion error is returned directly and next is not called. next is
// called at most once even if the processor calls back more than once. There
// is no timeout: next fires whenever the processor completes.
//
// On a mutate stage Bridge returns ErrMutateMode.
func (s *Stage) Bridge(tree pipeline.Node, file *pipeline.File, next pipeline.Continuation) error {
	if s.mode != ModeBridge {
		return ErrMutateMode
	}
	source, err := sourceTree(tree)
	if err != nil {
		return err
	}
	converted, err := s.convert(source, s.opts.Clone())
	if err != nil {
		return err
	}

	var once sync.Once
	s.processor.Run(converted, file, func(err error) {
		once.Do(func() {
			next(err)
		})
	})
	return nil
}
