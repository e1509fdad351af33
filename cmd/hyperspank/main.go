package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/torosent/hyperspank/internal/config"
	"github.com/torosent/hyperspank/internal/httpclient"
	"github.com/torosent/hyperspank/internal/logging"
	"github.com/torosent/hyperspank/internal/runner"
	"github.com/torosent/hyperspank/internal/tracing"
)

const tracingShutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoaderWithOutput(stdout)
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		config.PrintUsage(stderr)
		return err
	}
	if err := cfg.Validate(); err != nil {
		config.PrintUsage(stderr)
		return err
	}

	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	log := logging.New(stdout, format, logging.SystemClock{})
	for _, w := range cfg.Warnings() {
		log.Warning(w)
	}

	// Workers are never interrupted, so the run gets a plain background
	// context. Only the tracing exporter is bounded.
	ctx := context.Background()
	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warning(fmt.Sprintf("tracing shutdown: %v", err))
		}
	}()

	orch, err := runner.New(runner.Options{
		Config:      toRunnerConfig(cfg),
		NewExecutor: newExecutorFactory(cfg, provider),
		Logger:      log,
	})
	if err != nil {
		return err
	}

	// Request and join failures are reported in the log only; they never
	// change the exit status.
	res := orch.Run(ctx)
	log.WithRunID(res.RunID).RunFinished(res.RunID, res.Summary())
	return nil
}

func toRunnerConfig(cfg *config.Config) runner.Config {
	return runner.Config{
		Target:            cfg.TargetURL,
		KeepAlive:         cfg.KeepAlive,
		Threads:           cfg.ThreadCount,
		RequestsPerThread: cfg.RequestsPerThread,
		Delay:             cfg.Delay(),
		BurstSize:         cfg.BurstSize,
		PrintOnIteration:  cfg.PrintOnIteration,
		ControlThread:     cfg.ControlThread,
	}
}

// newExecutorFactory gives every worker and the control loop a client of its
// own so that keep-alive connections are never shared between threads.
func newExecutorFactory(cfg *config.Config, provider *tracing.Provider) runner.ExecutorFactory {
	return func(string) runner.Executor {
		var opts []httpclient.Option
		if provider.Enabled() {
			opts = append(opts, httpclient.WithTracer(provider.Tracer(), provider.ShouldPropagate()))
		}
		client := httpclient.NewClient(cfg.KeepAlive, cfg.Timeout)
		return httpclient.NewExecutor(cfg.TargetURL, cfg.KeepAlive, client, opts...)
	}
}
