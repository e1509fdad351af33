package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"

	"github.com/torosent/hyperspank/internal/logging"
)

// ErrNoExecutor is returned by New when Options.NewExecutor is nil.
var ErrNoExecutor = errors.New("runner: executor factory is required")

// JoinError reports a worker or control goroutine that terminated by panicking.
type JoinError struct {
	Name  string
	Value interface{}
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("thread %s panicked: %v", e.Name, e.Value)
}

// Result captures what happened during a run. JoinErrors is informational:
// a failed worker never prevents the others or the control loop shutdown.
type Result struct {
	RunID             string
	Workers           []WorkerReport
	ControlIterations int
	JoinErrors        error
	Duration          time.Duration
}

// Attempted sums the requests sent by all workers.
func (r Result) Attempted() int {
	total := 0
	for _, w := range r.Workers {
		total += w.Attempted
	}
	return total
}

// JoinFailures counts the goroutines that terminated by panicking.
func (r Result) JoinFailures() int {
	var merr *multierror.Error
	if errors.As(r.JoinErrors, &merr) {
		return merr.Len()
	}
	if r.JoinErrors != nil {
		return 1
	}
	return 0
}

// Summary totals the worker reports for the end-of-run log line.
func (r Result) Summary() logging.Summary {
	s := logging.Summary{
		JoinFailures: r.JoinFailures(),
		Duration:     r.Duration,
	}
	for _, w := range r.Workers {
		s.Attempted += w.Attempted
		s.Budget += w.Budget
		s.Failures += w.Failures
		s.Forfeited += w.Forfeited
		s.Bursts += w.Bursts
		s.Sleeps += w.Sleeps
	}
	return s
}

// Orchestrator starts the workers and the optional control loop, waits for
// the workers, then shuts the control loop down.
type Orchestrator struct {
	opt Options
}

func New(opt Options) (*Orchestrator, error) {
	if opt.NewExecutor == nil {
		return nil, ErrNoExecutor
	}
	opt.normalize()
	if opt.RunID == "" {
		opt.RunID = ulid.Make().String()
	}
	return &Orchestrator{opt: opt}, nil
}

type controlOutcome struct {
	iterations int
	err        error
}

// Run blocks until every worker has spent its budget and the control loop,
// if any, has exited. Workers are not cancelled by ctx; it is handed to the
// executors for request scoping only.
func (o *Orchestrator) Run(ctx context.Context) Result {
	start := time.Now()
	log := o.opt.Logger.WithRunID(o.opt.RunID)
	log.RunStarted(o.opt.RunID, o.opt.Threads, o.opt.RequestsPerThread, o.opt.Target)

	res := Result{
		RunID:   o.opt.RunID,
		Workers: make([]WorkerReport, o.opt.Threads),
	}

	token := NewCancellationToken()
	var control <-chan controlOutcome
	if o.opt.ControlThread {
		control = o.startControl(ctx, log, token)
	}

	failures := make([]error, o.opt.Threads)
	var wg sync.WaitGroup
	wg.Add(o.opt.Threads)
	for i := 0; i < o.opt.Threads; i++ {
		i := i
		name := strconv.Itoa(i)
		cfg := o.opt.Config
		res.Workers[i] = WorkerReport{Name: name, Budget: cfg.RequestsPerThread}
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					failures[i] = &JoinError{Name: name, Value: r}
				}
			}()
			exec := o.opt.NewExecutor(name)
			report := NewWorker(name, cfg, exec, log, o.opt.Sleep).Run(ctx)
			res.Workers[i] = report
			log.WorkerFinished(name, report.Attempted, report.Budget)
		}()
	}
	wg.Wait()

	var joinErrs *multierror.Error
	for _, err := range failures {
		if err != nil {
			log.JoinFailed(err)
			joinErrs = multierror.Append(joinErrs, err)
		}
	}

	// Only once every worker is done may the control loop be told to stop.
	if control != nil {
		log.ControlClosing()
		token.Cancel()
		out := <-control
		if out.err != nil {
			log.JoinFailed(out.err)
			joinErrs = multierror.Append(joinErrs, out.err)
		}
		res.ControlIterations = out.iterations
	}

	res.JoinErrors = joinErrs.ErrorOrNil()
	res.Duration = time.Since(start)
	return res
}

func (o *Orchestrator) startControl(ctx context.Context, log *logging.Logger, token *CancellationToken) <-chan controlOutcome {
	done := make(chan controlOutcome, 1)
	go func() {
		var out controlOutcome
		defer func() {
			if r := recover(); r != nil {
				out.err = &JoinError{Name: ControlName, Value: r}
			}
			done <- out
		}()
		exec := o.opt.NewExecutor(ControlName)
		out.iterations = NewControlLoop(exec, log, token).Run(ctx)
	}()
	return done
}
