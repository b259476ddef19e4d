package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rgonek/html-md-bridge/adapter"
	"github.com/rgonek/html-md-bridge/mdast"
)

type app struct {
	cfgFile string
	cfg     *Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "h2m",
		Short: "Convert HTML documents to Markdown",
		Long: `h2m converts HTML documents to Markdown trees.

In convert mode the Markdown tree replaces the HTML tree and the rest of the
pipeline compiles it. In bridge mode the Markdown tree is handed to a separate
downstream pipeline and only its success or failure is reported back.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := loadConfig(a.cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			if a.cfgFile != "" {
				a.logger.Debug("using config file", slog.String("path", a.cfgFile))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file")
	flags.String("preset", presetBalanced, "Preset: balanced|typographic|inline")
	flags.Bool("document", true, "Treat the input as a complete document")
	flags.Bool("newlines", false, "Keep line endings inside text")
	flags.String("checked", "", "Marker for checked checkboxes (default \"[x]\")")
	flags.String("unchecked", "", "Marker for unchecked checkboxes (default \"[ ]\")")
	flags.StringSlice("quotes", nil, "Quote marks by <q> nesting depth")
	flags.Bool("fragment", false, "Parse inputs as body fragments")
	flags.StringP("out-dir", "o", "", "Write results to this directory instead of stdout")
	flags.IntP("jobs", "j", defaultJobs, "Number of files converted concurrently")
	flags.StringP("format", "f", defaultFormat, "Output format: markdown|html")
	flags.BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(mdast.FormatMarkdown), string(mdast.FormatHTML)}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{presetBalanced, presetTypographic, presetInline}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(a.newConvertCmd())
	rootCmd.AddCommand(a.newBridgeCmd())
	rootCmd.AddCommand(a.newConfigCmd())

	return rootCmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *app) newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert [files...]",
		Short: "Convert HTML files in mutate mode",
		Long: `Convert HTML files in mutate mode: the Markdown tree replaces the HTML tree
and is compiled by the same pipeline. Reads stdin when no files are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args, adapter.ModeMutate)
		},
	}
}

func (a *app) newBridgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bridge [files...]",
		Short: "Convert HTML files in bridge mode",
		Long: `Convert HTML files in bridge mode: the Markdown tree is compiled by a
separate downstream pipeline that writes into the shared file. Reads stdin when
no files are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args, adapter.ModeBridge)
		},
	}
}

func (a *app) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.cfg.Options()
			if err != nil {
				return err
			}

			out := struct {
				Options adapter.Options `yaml:"options"`
				CLI     *Config         `yaml:"cli"`
			}{
				Options: adapter.Normalize(opts),
				CLI:     a.cfg,
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}
