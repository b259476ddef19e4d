package adapter

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/rgonek/html-md-bridge/converter"
	"github.com/rgonek/html-md-bridge/hast"
	"github.com/rgonek/html-md-bridge/mdast"
	"github.com/rgonek/html-md-bridge/pipeline"
)

// recordingConvert is a deterministic convert stub that records its calls.
type recordingConvert struct {
	mu    sync.Mutex
	calls []Options
	err   error
}

func (r *recordingConvert) convert(tree *html.Node, opts Options) (*mdast.Tree, error) {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return mdast.Parse([]byte(tree.Data)), nil
}

func (r *recordingConvert) lastOptions(t testing.TB) Options {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.calls)
	return r.calls[len(r.calls)-1]
}

type stubProcessor struct {
	err   error
	calls atomic.Int32
	tree  pipeline.Node
	file  *pipeline.File
}

func (p *stubProcessor) Run(tree pipeline.Node, file *pipeline.File, done pipeline.Continuation) {
	p.calls.Add(1)
	p.tree = tree
	p.file = file
	done(p.err)
}

func textNode(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

type continuationRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (c *continuationRecorder) next(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *continuationRecorder) calls() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "absent document becomes true",
			in:   Options{},
			want: Options{Document: converter.Bool(true)},
		},
		{
			name: "explicit false is kept",
			in:   Options{Document: converter.Bool(false)},
			want: Options{Document: converter.Bool(false)},
		},
		{
			name: "other fields pass through",
			in:   Options{Newlines: true, Checked: "✓", Quotes: []string{"«»"}},
			want: Options{Document: converter.Bool(true), Newlines: true, Checked: "✓", Quotes: []string{"«»"}},
		},
		{
			name: "no other defaults applied",
			in:   Options{Document: converter.Bool(true)},
			want: Options{Document: converter.Bool(true)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := Options{Quotes: []string{"“”"}, Handlers: map[string]converter.Handler{}}
	out := Normalize(in)

	assert.Nil(t, in.Document)
	out.Quotes[0] = "x"
	assert.Equal(t, []string{"“”"}, in.Quotes)

	document := converter.Bool(false)
	explicit := Options{Document: document}
	normalized := Normalize(explicit)
	*normalized.Document = true
	assert.False(t, *document)
}

func TestResolveModeSelection(t *testing.T) {
	processor := &stubProcessor{}
	fn := func(pipeline.Node, *pipeline.File, pipeline.Continuation) {}
	plainFn := func(pipeline.Node, *pipeline.File, func(error)) {}
	var nilProcessor *stubProcessor
	var nilFunc ProcessorFunc

	tests := []struct {
		name string
		args []any
		mode Mode
	}{
		{name: "no arguments", args: nil, mode: ModeMutate},
		{name: "nil", args: []any{nil}, mode: ModeMutate},
		{name: "options", args: []any{Options{}}, mode: ModeMutate},
		{name: "options pointer", args: []any{&Options{}}, mode: ModeMutate},
		{name: "unrecognised value", args: []any{42}, mode: ModeMutate},
		{name: "processor", args: []any{processor}, mode: ModeBridge},
		{name: "pipeline processor", args: []any{pipeline.New()}, mode: ModeBridge},
		{name: "processor func", args: []any{ProcessorFunc(fn)}, mode: ModeBridge},
		{name: "plain func", args: []any{fn}, mode: ModeBridge},
		{name: "func with plain continuation", args: []any{plainFn}, mode: ModeBridge},
		{name: "nil processor pointer", args: []any{nilProcessor}, mode: ModeMutate},
		{name: "nil processor func", args: []any{nilFunc}, mode: ModeMutate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := Resolve(tt.args...)
			assert.Equal(t, tt.mode, resolved.Mode)
			if tt.mode == ModeBridge {
				assert.NotNil(t, resolved.Processor)
			} else {
				assert.Nil(t, resolved.Processor)
			}

			stage := Configure(tt.args...)
			assert.Equal(t, tt.mode, stage.Mode())
			switch stage.Transformer().(type) {
			case pipeline.AsyncFunc:
				assert.Equal(t, ModeBridge, tt.mode)
			case pipeline.SyncFunc:
				assert.Equal(t, ModeMutate, tt.mode)
			default:
				t.Fatalf("unexpected transformer type %T", stage.Transformer())
			}
		})
	}
}

func TestResolveScenarios(t *testing.T) {
	processor := &stubProcessor{}

	t.Run("no arguments", func(t *testing.T) {
		resolved := Resolve()
		assert.Equal(t, ModeMutate, resolved.Mode)
		assert.Equal(t, Options{Document: converter.Bool(true)}, resolved.Options)
	})

	t.Run("processor only", func(t *testing.T) {
		resolved := Resolve(processor)
		assert.Equal(t, ModeBridge, resolved.Mode)
		assert.Same(t, processor, resolved.Processor)
		assert.Equal(t, Options{Document: converter.Bool(true)}, resolved.Options)
	})

	t.Run("processor with explicit options", func(t *testing.T) {
		resolved := Resolve(processor, Options{Document: converter.Bool(false), Newlines: true})
		assert.Equal(t, ModeBridge, resolved.Mode)
		assert.Equal(t, Options{Document: converter.Bool(false), Newlines: true}, resolved.Options)
	})

	t.Run("options pointer is not modified", func(t *testing.T) {
		in := &Options{Checked: "✓"}
		resolved := Resolve(in)
		assert.Nil(t, in.Document)
		assert.Equal(t, Options{Document: converter.Bool(true), Checked: "✓"}, resolved.Options)
	})

	t.Run("second argument ignored in mutate mode", func(t *testing.T) {
		resolved := Resolve(Options{Newlines: true}, Options{Checked: "✓"})
		assert.Equal(t, Options{Document: converter.Bool(true), Newlines: true}, resolved.Options)
	})
}

func TestMutateMatchesDirectConvert(t *testing.T) {
	stub := &recordingConvert{}
	stage := Resolve(Options{}).Stage(WithConvert(stub.convert))

	tree := textNode("# Title\n")
	got, err := stage.Transform(tree)
	require.NoError(t, err)

	want, err := stub.convert(tree, Options{Document: converter.Bool(true)})
	require.NoError(t, err)

	assert.Equal(t, want.Kinds(), got.Kinds())
	assert.Equal(t, want.Markdown(), got.Markdown())
	assert.Equal(t, Options{Document: converter.Bool(true)}, stub.calls[0])
}

func TestMutateTransformerInPipeline(t *testing.T) {
	stub := &recordingConvert{}
	stage := Standalone(Options{Newlines: true}, WithConvert(stub.convert))

	p := pipeline.New().Use("html-to-markdown", stage.Transformer())
	out, err := p.RunSync(textNode("hello\n"), nil)
	require.NoError(t, err)

	tree, ok := out.(*mdast.Tree)
	require.True(t, ok)
	assert.Equal(t, "hello\n", tree.Markdown())
	assert.Equal(t, Options{Document: converter.Bool(true), Newlines: true}, stub.lastOptions(t))
}

func TestMutateConvertFailurePropagates(t *testing.T) {
	boom := errors.New("convert failed")
	stage := Standalone(Options{}, WithConvert((&recordingConvert{err: boom}).convert))

	_, err := stage.Transform(textNode("x"))
	assert.Same(t, boom, err)

	_, err = pipeline.New().Use("convert", stage.Transformer()).RunSync(textNode("x"), nil)
	assert.ErrorIs(t, err, boom)
}

func TestMutateRejectsForeignTree(t *testing.T) {
	stage := Standalone(Options{}, WithConvert((&recordingConvert{}).convert))

	_, err := pipeline.New().Use("convert", stage.Transformer()).RunSync("not html", nil)
	assert.ErrorIs(t, err, ErrUnsupportedTree)
	assert.Contains(t, err.Error(), "string")
}

func TestBridgeSuccessForwardsNoError(t *testing.T) {
	for _, data := range []string{"", "text", "# heading\n\n- item\n"} {
		processor := &stubProcessor{}
		stage := WithDownstream(processor, Options{}, WithConvert((&recordingConvert{}).convert))
		file := pipeline.NewFile("doc.html", nil)

		var rec continuationRecorder
		require.NoError(t, stage.Bridge(textNode(data), file, rec.next))

		assert.Equal(t, []error{nil}, rec.calls())
		assert.Equal(t, int32(1), processor.calls.Load())
		assert.Same(t, file, processor.file)
		assert.IsType(t, &mdast.Tree{}, processor.tree)
	}
}

func TestBridgeForwardsExactError(t *testing.T) {
	downstream := errors.New("downstream failed")
	processor := &stubProcessor{err: downstream}
	stage := WithDownstream(processor, Options{}, WithConvert((&recordingConvert{}).convert))

	var rec continuationRecorder
	require.NoError(t, stage.Bridge(textNode("x"), pipeline.NewFile("", nil), rec.next))

	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.Same(t, downstream, calls[0])
}

func TestBridgeConvertFailureSkipsContinuation(t *testing.T) {
	boom := errors.New("convert failed")
	processor := &stubProcessor{}
	stage := WithDownstream(processor, Options{}, WithConvert((&recordingConvert{err: boom}).convert))

	var rec continuationRecorder
	err := stage.Bridge(textNode("x"), pipeline.NewFile("", nil), rec.next)
	assert.Same(t, boom, err)
	assert.Empty(t, rec.calls())
	assert.Zero(t, processor.calls.Load())
}

func TestBridgeContinuationIsSingleShot(t *testing.T) {
	processor := ProcessorFunc(func(_ pipeline.Node, _ *pipeline.File, done pipeline.Continuation) {
		done(nil)
		done(errors.New("late"))
	})
	stage := WithDownstream(processor, Options{}, WithConvert((&recordingConvert{}).convert))

	var rec continuationRecorder
	require.NoError(t, stage.Bridge(textNode("x"), pipeline.NewFile("", nil), rec.next))
	assert.Equal(t, []error{nil}, rec.calls())
}

func TestBridgeAsynchronousDownstream(t *testing.T) {
	release := make(chan struct{})
	processor := ProcessorFunc(func(_ pipeline.Node, file *pipeline.File, done pipeline.Continuation) {
		go func() {
			<-release
			file.SetData("downstream", "done")
			done(nil)
		}()
	})
	stage := WithDownstream(processor, Options{}, WithConvert((&recordingConvert{}).convert))

	finished := make(chan error, 1)
	file := pipeline.NewFile("", nil)
	require.NoError(t, stage.Bridge(textNode("x"), file, func(err error) {
		finished <- err
	}))

	select {
	case <-finished:
		t.Fatal("continuation fired before downstream completed")
	default:
	}

	close(release)
	require.NoError(t, <-finished)
	value, ok := file.Data("downstream")
	require.True(t, ok)
	assert.Equal(t, "done", value)
}

func TestBridgeWithPipelineDownstream(t *testing.T) {
	compile, err := mdast.Compiler(mdast.FormatHTML)
	require.NoError(t, err)
	downstream := pipeline.New(pipeline.WithName("downstream")).Use("compile", compile)

	stage := Configure(downstream, Options{Document: converter.Bool(true)})
	require.Equal(t, ModeBridge, stage.Mode())

	doc, err := hast.ParseString("<h1>Title</h1><p>Hello <em>world</em></p>")
	require.NoError(t, err)

	host := pipeline.New(pipeline.WithName("host")).Use("bridge", stage.Transformer())
	file := pipeline.NewFile("doc.html", nil)
	out, err := host.RunSync(doc, file)
	require.NoError(t, err)

	assert.Same(t, doc, out)
	assert.Equal(t, "<h1>Title</h1>\n<p>Hello <em>world</em></p>\n", string(file.Value))
}

func TestBridgeDownstreamFailureFailsHost(t *testing.T) {
	boom := errors.New("compile failed")
	downstream := pipeline.New(pipeline.WithName("downstream")).
		Use("fail", pipeline.SyncFunc(func(pipeline.Node, *pipeline.File) (pipeline.Node, error) {
			return nil, boom
		}))
	stage := Configure(downstream)

	doc, err := hast.ParseString("<p>x</p>")
	require.NoError(t, err)

	_, err = pipeline.New(pipeline.WithName("host")).Use("bridge", stage.Transformer()).RunSync(doc, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "host", stageErr.Processor)

	var inner *pipeline.StageError
	require.ErrorAs(t, stageErr.Err, &inner)
	assert.Equal(t, "downstream", inner.Processor)
}

func TestModeMismatchErrors(t *testing.T) {
	convert := WithConvert((&recordingConvert{}).convert)

	_, err := WithDownstream(&stubProcessor{}, Options{}, convert).Transform(textNode("x"))
	assert.ErrorIs(t, err, ErrBridgeMode)

	err = Standalone(Options{}, convert).Bridge(textNode("x"), nil, func(error) {
		t.Fatal("continuation must not be called")
	})
	assert.ErrorIs(t, err, ErrMutateMode)
}

func TestWithDownstreamPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() {
		WithDownstream(nil, Options{})
	})
}

func TestStageOptionsAreIsolated(t *testing.T) {
	opts := Options{Quotes: []string{"“”"}}
	stage := Standalone(opts)

	opts.Quotes[0] = "x"
	got := stage.Options()
	assert.Equal(t, []string{"“”"}, got.Quotes)

	got.Quotes[0] = "y"
	assert.Equal(t, []string{"“”"}, stage.Options().Quotes)
}

func TestStageConcurrentUse(t *testing.T) {
	stub := &recordingConvert{}
	processor := &countingProcessor{}
	bridge := WithDownstream(processor, Options{}, WithConvert(stub.convert))
	mutate := Standalone(Options{}, WithConvert(stub.convert))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			done := make(chan error, 1)
			assert.NoError(t, bridge.Bridge(textNode("x"), pipeline.NewFile("", nil), func(err error) {
				done <- err
			}))
			assert.NoError(t, <-done)
		}()
		go func() {
			defer wg.Done()
			_, err := mutate.Transform(textNode("y"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(32), processor.calls.Load())
	assert.Len(t, stub.calls, 64)
}

type countingProcessor struct {
	calls atomic.Int32
}

func (p *countingProcessor) Run(_ pipeline.Node, _ *pipeline.File, done pipeline.Continuation) {
	p.calls.Add(1)
	done(nil)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "mutate", ModeMutate.String())
	assert.Equal(t, "bridge", ModeBridge.String())
	assert.Equal(t, "unknown", Mode(7).String())
}
