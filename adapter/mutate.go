package adapter

import (
	"golang.org/x/net/html"

	"github.com/rgonek/html-md-bridge/mdast"
	"github.com/rgonek/html-md-bridge/pipeline"
)

// Transform converts tree and returns the result. Conversion errors are
// returned unchanged. On a bridge stage it returns ErrBridgeMode.
func (s *Stage) Transform(tree *html.Node) (*mdast.Tree, error) {
	if s.mode != ModeMutate {
		return nil, ErrBridgeMode
	}
	return s.convert(tree, s.opts.Clone())
}

func (s *Stage) mutate(tree pipeline.Node, _ *pipeline.File) (pipeline.Node, error) {
	source, err := sourceTree(tree)
	if err != nil {
		return nil, err
	}
	out, err := s.Transform(source)
	if err != nil {
		return nil, err
	}
	return out, nil
}
