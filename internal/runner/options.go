package runner

import (
	"context"
	"time"

	"github.com/torosent/hyperspank/internal/logging"
)

// Executor performs one request. A non-nil error marks the request as failed;
// errors carrying an httpclient.FailureKind are logged by kind.
type Executor interface {
	Get(ctx context.Context) error
}

// ExecutorFactory builds the private executor for the named worker ("0".."N-1")
// or for the control loop (ControlName). It is called on the goroutine that
// will use the executor.
type ExecutorFactory func(name string) Executor

// Sleeper blocks the calling goroutine for d.
type Sleeper func(d time.Duration)

// ControlName identifies the control loop to an ExecutorFactory.
const ControlName = "control"

// ControlProgressEvery is how many control loop iterations pass between
// progress lines.
const ControlProgressEvery = 10

// Config is the immutable description of a load test. Every worker receives
// its own copy.
type Config struct {
	Target            string
	KeepAlive         bool
	Threads           int
	RequestsPerThread int
	Delay             time.Duration
	BurstSize         int
	PrintOnIteration  int // 0 disables progress lines
	ControlThread     bool
}

// Options configure the Orchestrator.
type Options struct {
	Config
	NewExecutor ExecutorFactory // required
	Logger      *logging.Logger // defaults to a discarding logger
	Sleep       Sleeper         // defaults to time.Sleep; injectable for tests
	RunID       string          // defaults to a fresh ULID
}

func (o *Options) normalize() {
	if o.Threads < 0 {
		o.Threads = 0
	}
	if o.RequestsPerThread < 0 {
		o.RequestsPerThread = 0
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	// A burst always holds at least one request, otherwise a worker would spin forever.
	if o.BurstSize < 1 {
		o.BurstSize = 1
	}
	if o.PrintOnIteration < 0 {
		o.PrintOnIteration = 0
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
}
