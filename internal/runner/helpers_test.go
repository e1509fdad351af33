package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/torosent/hyperspank/internal/httpclient"
	"github.com/torosent/hyperspank/internal/logging"
)

var fixedInstant = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

// scriptedExecutor fails on the listed 1-based calls. It is not safe for
// concurrent use; each worker gets its own instance.
type scriptedExecutor struct {
	calls  int
	failOn map[int]error
	onCall func(n int)
}

func (s *scriptedExecutor) Get(context.Context) error {
	s.calls++
	if s.onCall != nil {
		s.onCall(s.calls)
	}
	if err, ok := s.failOn[s.calls]; ok {
		return err
	}
	return nil
}

func transportErr() error {
	return &httpclient.RequestError{Kind: httpclient.FailureTransport, At: fixedInstant, Err: errors.New("connection refused")}
}

func readErr() error {
	return &httpclient.RequestError{Kind: httpclient.FailureBodyRead, At: fixedInstant, Err: errors.New("unexpected EOF")}
}

type sleepRecorder struct {
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.sleeps = append(r.sleeps, d)
}

func newBufferLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.New(&buf, logging.FormatText, logging.FixedClock(fixedInstant)), &buf
}

func logLines(buf *bytes.Buffer) []string {
	out := strings.TrimSuffix(buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func countContaining(lines []string, substr string) int {
	n := 0
	for _, line := range lines {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
