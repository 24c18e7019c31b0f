// Command tofile copies standard input verbatim into a named file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/deixis/tofile"
	"github.com/deixis/tofile/internal/capture"
	"github.com/deixis/tofile/internal/config"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	verbose    bool
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging on stderr")
}

// usageError marks failures that print the usage text.
type usageError struct {
	err error // nil for a missing filename
}

func (e *usageError) Error() string {
	if e.err == nil {
		return "missing filename"
	}
	return e.err.Error()
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	prog := "tofile"
	var rest []string
	if len(args) > 0 {
		prog = args[0]
		rest = args[1:]
	} else {
		rest = []string{}
	}

	var opts options
	cmd := &cobra.Command{
		Use:     "tofile <filename>",
		Short:   "Copy standard input into a file",
		Long:    "tofile reads all of standard input and writes it verbatim to <filename>,\ncreating or truncating the file, then reports the number of bytes written.",
		Version: tofile.Version,
		Args:    cobra.ArbitraryArgs,

		SilenceUsage:       true,
		SilenceErrors:      true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},

		RunE: func(cmd *cobra.Command, pos []string) error {
			if len(pos) == 0 {
				return &usageError{}
			}
			return capturePath(cmd.Context(), pos[0], opts, stdin, stdout, stderr)
		},
	}
	bindFlags(cmd.Flags(), &opts)
	// Flags are only recognised before the filename; everything after it is ignored.
	cmd.Flags().SetInterspersed(false)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	cmd.SetArgs(rest)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	report(stderr, prog, err)
	return 1
}

func capturePath(ctx context.Context, path string, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return &usageError{err: fmt.Errorf("loading config: %w", err)}
	}

	log := newLogger(stderr, cfg, opts.verbose)
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		log.Debug().Msg("reading from a terminal; end input with Ctrl-D")
	}

	c := &capture.Capturer{
		Mode:     cfg.Mode(),
		MaxInput: cfg.MaxInputBytes(),
		Log:      &log,
	}
	res, err := c.Capture(ctx, path, stdin)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res)
	return nil
}

func newLogger(w io.Writer, cfg *config.Config, verbose bool) zerolog.Logger {
	level := cfg.Level()
	if verbose {
		level = zerolog.DebugLevel
	}
	if level == zerolog.Disabled {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().Timestamp().Logger()
}

// report prints the diagnostic for err on stderr.
func report(stderr io.Writer, prog string, err error) {
	var ue *usageError
	if errors.As(err, &ue) {
		if ue.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ue.err)
		}
		fmt.Fprintf(stderr, "Usage: %s <filename>\n", prog)
		fmt.Fprintln(stderr, "Content will be read from stdin")
		return
	}

	var ce *capture.Error
	if errors.As(err, &ce) {
		switch ce.Stage {
		case capture.StageRead:
			fmt.Fprintf(stderr, "Error reading stdin: %v\n", ce.Err)
		default:
			fmt.Fprintf(stderr, "Error writing file: %v\n", ce.Err)
		}
		return
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
}
