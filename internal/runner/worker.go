package runner

import (
	"context"
	"errors"
	"time"

	"github.com/torosent/hyperspank/internal/httpclient"
	"github.com/torosent/hyperspank/internal/logging"
)

// WorkerReport tallies what a single worker did. It is returned once the
// worker's budget is exhausted.
type WorkerReport struct {
	Name      string
	Budget    int
	Attempted int // requests actually sent
	Failures  int
	Forfeited int // requests skipped because their burst was abandoned
	Bursts    int
	Sleeps    int
}

// workerState is owned exclusively by the worker's goroutine.
type workerState struct {
	remaining      int
	burstRemaining int
	clean          bool
}

// Worker spends a fixed request budget in bursts separated by a delay.
type Worker struct {
	name  string
	cfg   Config
	exec  Executor
	log   *logging.Logger
	sleep Sleeper
}

func NewWorker(name string, cfg Config, exec Executor, log *logging.Logger, sleep Sleeper) *Worker {
	if cfg.BurstSize < 1 {
		cfg.BurstSize = 1
	}
	if log == nil {
		log = logging.Discard()
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Worker{name: name, cfg: cfg, exec: exec, log: log, sleep: sleep}
}

// Run executes bursts until the budget reaches zero. Failures never stop the
// worker: they end the current burst, forfeit its unsent requests and skip
// the following delay.
func (w *Worker) Run(ctx context.Context) WorkerReport {
	report := WorkerReport{Name: w.name, Budget: w.cfg.RequestsPerThread}
	st := workerState{remaining: w.cfg.RequestsPerThread, clean: true}

	for st.remaining > 0 {
		st.burstRemaining = min(w.cfg.BurstSize, st.remaining)
		if w.cfg.BurstSize > 1 {
			w.log.BurstStarted(w.name, w.cfg.BurstSize)
		}
		report.Bursts++

		w.runBurst(ctx, &st, &report)

		if st.clean && st.remaining > 0 && w.cfg.Delay > 0 {
			w.log.Sleeping(w.name)
			w.sleep(w.cfg.Delay)
			report.Sleeps++
		} else {
			st.clean = true
		}
	}
	return report
}

func (w *Worker) runBurst(ctx context.Context, st *workerState, report *WorkerReport) {
	for st.burstRemaining > 0 {
		err := w.exec.Get(ctx)
		st.burstRemaining--
		st.remaining--
		report.Attempted++

		iteration := w.cfg.RequestsPerThread - st.remaining
		if err != nil {
			st.clean = false
			report.Failures++
			w.logFailure(err)
		}

		if w.cfg.PrintOnIteration > 0 && iteration%w.cfg.PrintOnIteration == 0 {
			w.log.Progress(w.name, iteration)
		}

		if !st.clean {
			w.log.BurstAbandoned(w.name, iteration)
			st.remaining -= st.burstRemaining
			report.Forfeited += st.burstRemaining
			st.burstRemaining = 0
			return
		}
	}
}

func (w *Worker) logFailure(err error) {
	kind, at, cause := describeFailure(err, w.log.Now)
	if kind == httpclient.FailureBodyRead {
		w.log.ReadFailed(w.name, at, cause)
		return
	}
	w.log.TransportFailed(w.name, at, cause)
}

// describeFailure unpacks a request error. Errors that do not come from
// httpclient are reported as transport failures stamped with now().
func describeFailure(err error, now func() time.Time) (httpclient.FailureKind, time.Time, error) {
	var reqErr *httpclient.RequestError
	if errors.As(err, &reqErr) {
		at := reqErr.At
		if at.IsZero() {
			at = now()
		}
		return reqErr.Kind, at, reqErr.Err
	}
	return httpclient.FailureTransport, now(), err
}
