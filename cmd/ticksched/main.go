package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticksched/internal/job"
	"ticksched/internal/sched"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads the configuration, brings the threads up in dependency order and
// keeps them ticking until ctx is done or the run-for period elapses.
func run(ctx context.Context, outW io.Writer, args []string) error {
	opts, shouldExit, err := parseArgs(args, outW)
	if err != nil || shouldExit {
		return err
	}

	cfg, err := sched.Load(opts.ConfigPath)
	if err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("config: %v", err)}
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	if opts.CSVPath != "" {
		cfg.CSVPath = opts.CSVPath
	}
	runFor := time.Duration(cfg.RunForMS) * time.Millisecond
	if opts.RunFor > 0 {
		runFor = opts.RunFor
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)

	var rtOpts []sched.Option
	if cfg.CSVPath != "" {
		rec, err := sched.NewCSVRecorder(cfg.CSVPath)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer rec.Close()
		rtOpts = append(rtOpts, sched.WithRecorder(rec))
	}
	rt := sched.NewRuntime(logger, rtOpts...)

	loops, err := build(rt, cfg, logger)
	if err != nil {
		return err
	}
	if err := startAll(rt, cfg); err != nil {
		rt.StopAll()
		rt.JoinAll()
		return err
	}
	logger.Info("engine running", "threads", len(cfg.Threads), "run_for", runFor)

	if runFor > 0 {
		timer := time.NewTimer(runFor)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	} else {
		<-ctx.Done()
	}

	rt.StopAll()
	rt.JoinAll()

	for _, name := range rt.Names() {
		t, _ := rt.Lookup(name)
		st := loops[name].Stats()
		logger.Info("thread summary", "thread", name, "tps", t.TPS(), "ticks", st.Ticks,
			"forwarded", st.Forwarded, "delivered", st.Delivered, "last_frame", t.LastFrameTime())
	}
	return nil
}

// build registers one thread per config entry and wires forwarding between them.
func build(rt *sched.Runtime, cfg sched.Config, logger *slog.Logger) (map[string]*job.Loop, error) {
	loops := make(map[string]*job.Loop, len(cfg.Threads))
	for _, tc := range cfg.Threads {
		spec, err := tc.Spec()
		if err != nil {
			return nil, err
		}
		loop := &job.Loop{
			Name:     tc.Name,
			Work:     time.Duration(tc.WorkUS) * time.Microsecond,
			TaskWork: time.Duration(tc.TaskWorkUS) * time.Microsecond,
			Logger:   logger,
		}
		if _, err := rt.NewThread(spec, loop); err != nil {
			return nil, err
		}
		loops[tc.Name] = loop
	}

	for _, tc := range cfg.Threads {
		if tc.ForwardTo == "" {
			continue
		}
		target, ok := rt.Lookup(tc.ForwardTo)
		if !ok {
			return nil, fmt.Errorf("thread %q forwards to unknown thread %q", tc.Name, tc.ForwardTo)
		}
		loops[tc.Name].Forward = target.AddTask
	}
	return loops, nil
}

// startAll starts the threads so that every dependency is started first.
func startAll(rt *sched.Runtime, cfg sched.Config) error {
	order, err := cfg.StartOrder()
	if err != nil {
		return err
	}
	for _, tc := range order {
		t, _ := rt.Lookup(tc.Name)
		deps := make([]*sched.Thread, 0, len(tc.DependsOn))
		for _, name := range tc.DependsOn {
			d, ok := rt.Lookup(name)
			if !ok {
				return fmt.Errorf("thread %q depends on unknown thread %q", tc.Name, name)
			}
			deps = append(deps, d)
		}
		if _, err := t.Start(deps...); err != nil {
			return err
		}
	}
	return nil
}
