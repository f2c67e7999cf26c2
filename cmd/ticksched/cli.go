package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

// ExitError carries the process exit code for a failed run.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// options are the command-line settings. Empty strings and zero durations
// leave the config file's values in place.
type options struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	RunFor     time.Duration
	CSVPath    string
}

// parseArgs returns the options, or shouldExit when help was printed.
func parseArgs(args []string, output io.Writer) (opts options, shouldExit bool, err error) {
	fs := flag.NewFlagSet("ticksched", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, `
ticksched - runs a set of fixed-rate engine threads.

Usage:
  ticksched [options] [CONFIG]

Arguments:
  CONFIG
    Path to a .yml/.yaml or .hcl file describing the threads.
    Without one the built-in input/sim/render/loader layout is used.

Options:
`)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to the config file.")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Logging level: 'debug', 'info', 'warn' or 'error'.")
	fs.StringVar(&opts.LogFormat, "log-format", "", "Log output format: 'text' or 'json'.")
	fs.DurationVar(&opts.RunFor, "run-for", 0, "Stop after this long. 0 runs until interrupted.")
	fs.StringVar(&opts.CSVPath, "csv", "", "Write thread lifecycle events to this CSV file.")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, true, nil
		}
		return opts, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if opts.ConfigPath == "" && fs.NArg() > 0 {
		opts.ConfigPath = fs.Arg(0)
	}

	opts.LogLevel = strings.ToLower(opts.LogLevel)
	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return opts, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	opts.LogFormat = strings.ToLower(opts.LogFormat)
	if opts.LogFormat != "" && opts.LogFormat != "text" && opts.LogFormat != "json" {
		return opts, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	if opts.RunFor < 0 {
		return opts, false, &ExitError{Code: 2, Message: "invalid run-for: must not be negative"}
	}
	return opts, false, nil
}
