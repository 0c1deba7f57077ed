// Command godot-wasm-bindgen rewrites a Godot guest module so that engine
// values cross the module boundary as externref.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/moby/sys/atomicwriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/godot-wasm-bindgen/bindgen"
	werrors "github.com/wippyai/godot-wasm-bindgen/errors"
)

type options struct {
	output      string
	config      string
	verbose     bool
	quiet       bool
	verify      bool
	interactive bool

	tableLimit uint32
	growChunk  uint32
	noSweep    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "godot-wasm-bindgen [OPTIONS] INPUT",
		Short:         "Rewrite a Godot guest module to pass engine values as externref",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0])
		},
	}

	opts.addFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, opts *options, input string) error {
	log, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	bindgen.SetLogger(log)

	bo, err := loadOptions(opts.config)
	if err != nil {
		return err
	}
	opts.apply(cmd.Flags(), &bo)

	if opts.interactive && !isTerminal() {
		return werrors.InvalidInput(werrors.PhaseConfig, "interactive mode requires a terminal")
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return werrors.Load("read "+input, err)
	}
	res, err := bindgen.Transform(cmd.Context(), data, bo)
	if err != nil {
		return err
	}

	if opts.verify {
		if err := bindgen.Verify(cmd.Context(), res.Output); err != nil {
			if !errors.Is(err, werrors.New("", werrors.KindUnsupported).Build()) {
				return err
			}
			log.Warn("output not verified", zap.Error(err))
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}

	if opts.output != "" {
		if err := atomicwriter.WriteFile(opts.output, res.Output, 0o644); err != nil {
			return werrors.Wrap(werrors.PhaseEncode, werrors.KindIO, err, "write "+opts.output)
		}
		log.Debug("wrote output", zap.String("path", opts.output), zap.Int("size", res.OutputSize))
	}

	switch {
	case opts.interactive:
		return runInspector(input, res)
	case !opts.quiet:
		newListing(cmd.OutOrStdout()).render(input, res)
	}
	return nil
}

func (o *options) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.output, "output", "o", "", "Write the transformed module to `PATH`")
	flags.StringVarP(&o.config, "config", "c", "", "Load options from a TOML `FILE`")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "Do not print the listing")
	flags.BoolVar(&o.verify, "verify", false, "Compile the output to check that it validates")
	flags.BoolVarP(&o.interactive, "interactive", "i", false, "Browse the result in a terminal UI")
	flags.Uint32Var(&o.tableLimit, "table-limit", bindgen.DefaultTableLimit, "Maximum number of live slots")
	flags.Uint32Var(&o.growChunk, "grow-chunk", bindgen.DefaultGrowChunk, "Slots added each time the table grows")
	flags.BoolVar(&o.noSweep, "no-sweep", false, "Keep unreachable functions")
}

// apply overrides options with flags given on the command line.
func (o *options) apply(flags *pflag.FlagSet, bo *bindgen.Options) {
	if flags.Changed("table-limit") {
		bo.TableLimit = o.tableLimit
	}
	if flags.Changed("grow-chunk") {
		bo.GrowChunk = o.growChunk
	}
	if o.noSweep {
		bo.Sweep = false
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = !verbose
	return cfg.Build()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
