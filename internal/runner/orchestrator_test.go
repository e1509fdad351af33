package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/hyperspank/internal/httpclient"
)

// executorFunc adapts a function to the Executor interface.
type executorFunc func(ctx context.Context) error

func (f executorFunc) Get(ctx context.Context) error { return f(ctx) }

type recordingFactory struct {
	mu    sync.Mutex
	names []string
	build func(name string) Executor
}

func (f *recordingFactory) New(name string) Executor {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	if f.build != nil {
		return f.build(name)
	}
	return &scriptedExecutor{}
}

func (f *recordingFactory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.names...)
	sort.Strings(out)
	return out
}

func slowControl(name string) Executor {
	if name == ControlName {
		return executorFunc(func(context.Context) error {
			time.Sleep(time.Millisecond)
			return nil
		})
	}
	return &scriptedExecutor{}
}

func TestNewRequiresExecutorFactory(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoExecutor) {
		t.Fatalf("New() error = %v, want ErrNoExecutor", err)
	}
}

func TestRunBuildsOneExecutorPerThread(t *testing.T) {
	factory := &recordingFactory{build: slowControl}
	o, err := New(Options{
		Config:      Config{Threads: 3, RequestsPerThread: 4, BurstSize: 2, ControlThread: true},
		NewExecutor: factory.New,
		Sleep:       func(time.Duration) {},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := o.Run(context.Background())

	want := []string{"0", "1", "2", ControlName}
	got := factory.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("executors built for %v, want %v", got, want)
	}
	if res.Attempted() != 12 {
		t.Fatalf("Attempted() = %d, want 12", res.Attempted())
	}
	if res.JoinErrors != nil {
		t.Fatalf("JoinErrors = %v", res.JoinErrors)
	}
	for i, w := range res.Workers {
		if w.Attempted != 4 || w.Budget != 4 {
			t.Errorf("worker %d report = %+v", i, w)
		}
	}
}

func TestRunShutsControlDownAfterWorkers(t *testing.T) {
	log, buf := newBufferLogger()
	o, err := New(Options{
		Config:      Config{Target: "http://example.test", Threads: 4, RequestsPerThread: 6, BurstSize: 3, Delay: time.Millisecond, ControlThread: true},
		NewExecutor: slowControl,
		Logger:      log,
		Sleep:       func(time.Duration) {},
		RunID:       "run-1",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := o.Run(context.Background())
	lines := logLines(buf)

	if !strings.HasPrefix(lines[0], "Run run-1 - 4 threads x 6 requests against http://example.test") {
		t.Fatalf("first line = %q", lines[0])
	}

	lastFinished, closing, closed := -1, -1, -1
	finished := 0
	for i, line := range lines {
		switch {
		case strings.Contains(line, " finished: "):
			lastFinished = i
			finished++
		case line == "Closing control thread...":
			closing = i
		case strings.HasPrefix(line, "Control thread closed after"):
			closed = i
		}
	}
	if finished != 4 {
		t.Fatalf("finished lines = %d, want 4", finished)
	}
	if !(lastFinished < closing && closing < closed) {
		t.Fatalf("bad shutdown order: finished=%d closing=%d closed=%d\n%s", lastFinished, closing, closed, buf.String())
	}
	if closed != len(lines)-1 {
		t.Fatalf("control close should be the last line, got %q", lines[len(lines)-1])
	}
	if res.RunID != "run-1" {
		t.Fatalf("RunID = %q", res.RunID)
	}
}

func TestRunWithoutControlThread(t *testing.T) {
	factory := &recordingFactory{}
	log, buf := newBufferLogger()
	o, _ := New(Options{
		Config:      Config{Threads: 2, RequestsPerThread: 1},
		NewExecutor: factory.New,
		Logger:      log,
	})

	res := o.Run(context.Background())

	if got := factory.Names(); len(got) != 2 {
		t.Fatalf("executors = %v, want two worker executors", got)
	}
	if res.ControlIterations != 0 {
		t.Fatalf("ControlIterations = %d", res.ControlIterations)
	}
	if countContaining(logLines(buf), "control thread") != 0 {
		t.Fatalf("unexpected control lines:\n%s", buf.String())
	}
}

func TestRunZeroThreadsStillClosesControl(t *testing.T) {
	var calls int64
	log, buf := newBufferLogger()
	o, _ := New(Options{
		Config: Config{Threads: 0, RequestsPerThread: 10, ControlThread: true},
		NewExecutor: func(name string) Executor {
			return executorFunc(func(context.Context) error {
				atomic.AddInt64(&calls, 1)
				return nil
			})
		},
		Logger: log,
	})

	res := o.Run(context.Background())

	if len(res.Workers) != 0 || res.Attempted() != 0 {
		t.Fatalf("unexpected workers: %+v", res.Workers)
	}
	if int64(res.ControlIterations) != atomic.LoadInt64(&calls) {
		t.Fatalf("ControlIterations = %d, executor calls = %d", res.ControlIterations, calls)
	}
	if countContaining(logLines(buf), "Control thread closed after") != 1 {
		t.Fatalf("control loop did not close:\n%s", buf.String())
	}
}

func TestRunSurvivesWorkerPanic(t *testing.T) {
	tests := []struct {
		name  string
		build func(name string) Executor
	}{
		{
			name: "factory panics",
			build: func(name string) Executor {
				if name == "1" {
					panic("boom")
				}
				return slowControl(name)
			},
		},
		{
			name: "request panics",
			build: func(name string) Executor {
				if name == "1" {
					return executorFunc(func(context.Context) error { panic("boom") })
				}
				return slowControl(name)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger()
			o, _ := New(Options{
				Config:      Config{Threads: 3, RequestsPerThread: 5, ControlThread: true},
				NewExecutor: tt.build,
				Logger:      log,
			})

			res := o.Run(context.Background())

			var joinErr *JoinError
			if !errors.As(res.JoinErrors, &joinErr) {
				t.Fatalf("JoinErrors = %v, want a *JoinError", res.JoinErrors)
			}
			if joinErr.Name != "1" {
				t.Fatalf("JoinError.Name = %q, want 1", joinErr.Name)
			}
			if got := res.JoinFailures(); got != 1 {
				t.Fatalf("JoinFailures() = %d, want 1", got)
			}
			if res.Workers[0].Attempted != 5 || res.Workers[2].Attempted != 5 {
				t.Fatalf("healthy workers did not finish: %+v", res.Workers)
			}
			lines := logLines(buf)
			if countContaining(lines, "Failed to join thread: thread 1 panicked: boom") != 1 {
				t.Fatalf("missing join failure line:\n%s", buf.String())
			}
			if countContaining(lines, "Control thread closed after") != 1 {
				t.Fatalf("control loop was not shut down:\n%s", buf.String())
			}
		})
	}
}

func TestRunSurvivesControlPanic(t *testing.T) {
	log, buf := newBufferLogger()
	o, _ := New(Options{
		Config: Config{Threads: 2, RequestsPerThread: 3, ControlThread: true},
		NewExecutor: func(name string) Executor {
			if name == ControlName {
				return executorFunc(func(context.Context) error { panic("control down") })
			}
			return &scriptedExecutor{}
		},
		Logger: log,
	})

	res := o.Run(context.Background())

	if res.Attempted() != 6 {
		t.Fatalf("Attempted() = %d, want 6", res.Attempted())
	}
	var joinErr *JoinError
	if !errors.As(res.JoinErrors, &joinErr) || joinErr.Name != ControlName {
		t.Fatalf("JoinErrors = %v, want control JoinError", res.JoinErrors)
	}
	if countContaining(logLines(buf), "Failed to join thread: thread control panicked: control down") != 1 {
		t.Fatalf("missing join failure line:\n%s", buf.String())
	}
}

func TestRunGeneratesULIDRunID(t *testing.T) {
	o, _ := New(Options{NewExecutor: func(string) Executor { return &scriptedExecutor{} }})
	res := o.Run(context.Background())
	if _, err := ulid.ParseStrict(res.RunID); err != nil {
		t.Fatalf("RunID %q is not a ULID: %v", res.RunID, err)
	}
}

func TestRunAgainstHTTPServer(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	o, err := New(Options{
		Config: Config{Target: srv.URL, KeepAlive: true, Threads: 3, RequestsPerThread: 4, BurstSize: 2, Delay: time.Millisecond},
		NewExecutor: func(string) Executor {
			return httpclient.NewExecutor(srv.URL, true, httpclient.NewClient(true, 5*time.Second))
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := o.Run(context.Background())

	if got := atomic.LoadInt64(&hits); got != 12 {
		t.Fatalf("server hits = %d, want 12", got)
	}
	if res.Attempted() != 12 {
		t.Fatalf("Attempted() = %d, want 12", res.Attempted())
	}
	for _, w := range res.Workers {
		if w.Failures != 0 || w.Sleeps != 1 {
			t.Errorf("worker %s report = %+v", w.Name, w)
		}
	}
}

func TestResultSummaryTotalsWorkers(t *testing.T) {
	o, _ := New(Options{
		Config: Config{Threads: 2, RequestsPerThread: 6, BurstSize: 3, Delay: time.Millisecond},
		NewExecutor: func(name string) Executor {
			if name == "0" {
				return &scriptedExecutor{failOn: map[int]error{1: transportErr()}}
			}
			return &scriptedExecutor{}
		},
		Sleep: func(time.Duration) {},
	})

	res := o.Run(context.Background())
	s := res.Summary()

	// Worker 0 forfeits two requests of its first burst and skips its delay.
	if s.Budget != 12 || s.Attempted != 10 || s.Forfeited != 2 || s.Failures != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Bursts != 4 || s.Sleeps != 1 {
		t.Fatalf("bursts=%d sleeps=%d, want 4 and 1", s.Bursts, s.Sleeps)
	}
	if s.JoinFailures != 0 || s.Duration != res.Duration {
		t.Fatalf("summary = %+v", s)
	}
}
