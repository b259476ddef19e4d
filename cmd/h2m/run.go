package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/rgonek/html-md-bridge/adapter"
	"github.com/rgonek/html-md-bridge/hast"
	"github.com/rgonek/html-md-bridge/mdast"
	"github.com/rgonek/html-md-bridge/pipeline"
)

const stdinPath = "-"

// buildPipeline returns the host pipeline for mode. In mutate mode the host
// converts and compiles; in bridge mode the host only converts and a
// downstream pipeline compiles.
func (a *app) buildPipeline(mode adapter.Mode) (*pipeline.Processor, error) {
	opts, err := a.cfg.Options()
	if err != nil {
		return nil, err
	}
	compile, err := mdast.Compiler(mdast.Format(a.cfg.Format))
	if err != nil {
		return nil, err
	}

	host := pipeline.New(pipeline.WithName("h2m"), pipeline.WithLogger(a.logger))
	if mode == adapter.ModeBridge {
		downstream := pipeline.New(pipeline.WithName("downstream"), pipeline.WithLogger(a.logger)).
			Use("compile", compile)
		return host.Use("html-to-markdown", adapter.WithDownstream(downstream, opts).Transformer()), nil
	}

	return host.
		Use("html-to-markdown", adapter.Standalone(opts).Transformer()).
		Use("compile", compile), nil
}

func (a *app) run(cmd *cobra.Command, paths []string, mode adapter.Mode) error {
	host, err := a.buildPipeline(mode)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		paths = []string{stdinPath}
	}
	if a.cfg.OutDir != "" {
		if err := os.MkdirAll(a.cfg.OutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	a.logger.Debug("converting files",
		slog.String("mode", mode.String()),
		slog.Int("files", len(paths)),
		slog.Int("jobs", a.cfg.Jobs))

	results := make([][]byte, len(paths))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(a.cfg.Jobs)
	for i, path := range paths {
		g.Go(func() error {
			out, err := a.convertFile(ctx, host, path, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if a.cfg.OutDir == "" {
				results[i] = out
				return nil
			}
			return a.writeOutput(path, out)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if a.cfg.OutDir != "" {
		return nil
	}
	w := cmd.OutOrStdout()
	for _, out := range results {
		if _, err := w.Write(out); err != nil {
			return err
		}
		if !bytes.HasSuffix(out, []byte("\n")) {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *app) convertFile(ctx context.Context, host *pipeline.Processor, path string, stdin io.Reader) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	var err error
	if path == stdinPath {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	doc, err := a.parse(data)
	if err != nil {
		return nil, err
	}

	file := pipeline.NewFile(path, data)
	if _, err := host.RunSync(doc, file); err != nil {
		return nil, err
	}

	logger := a.logger.With(slog.String("path", path), slog.String("file_id", file.ID))
	for _, msg := range file.Messages() {
		logger.Warn(msg.Reason, slog.String("source", msg.Source))
	}
	logger.Debug("converted file", slog.Int("bytes", len(file.Value)))

	return file.Value, nil
}

func (a *app) parse(data []byte) (*html.Node, error) {
	if a.cfg.Fragment {
		return hast.ParseFragment(bytes.NewReader(data))
	}
	return hast.Parse(bytes.NewReader(data))
}

func (a *app) writeOutput(path string, out []byte) error {
	name := "stdin"
	if path != stdinPath {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	target := filepath.Join(a.cfg.OutDir, name+a.cfg.Extension())
	if err := os.WriteFile(target, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	a.logger.Debug("wrote file", slog.String("path", target))
	return nil
}
