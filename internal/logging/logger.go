// Package logging renders the load generator's progress and failure lines.
//
// All output goes through a single logrus.Logger, which serializes writes per
// entry, so lines emitted by concurrent workers never interleave mid-line.
// The text format prints each message verbatim; the JSON format adds
// structured fields (thread, event, iteration, run_id) around the same
// message.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported log format %q: use \"text\" or \"json\"", name)
	}
}

// Structured field keys attached to every event.
const (
	FieldRunID     = "run_id"
	FieldThread    = "thread"
	FieldEvent     = "event"
	FieldIteration = "iteration"
)

const controlSubject = "Control thread"

// Logger writes load test events. It is safe for concurrent use.
type Logger struct {
	entry *logrus.Entry
	clock Clock
}

// New builds a Logger writing to out. A nil clock falls back to SystemClock.
func New(out io.Writer, format Format, clock Clock) *Logger {
	if clock == nil {
		clock = SystemClock{}
	}
	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(logrus.InfoLevel)
	switch format {
	case FormatJSON:
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimestampLayout})
	default:
		base.SetFormatter(lineFormatter{})
	}
	return &Logger{entry: logrus.NewEntry(base), clock: clock}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, FormatText, nil)
}

// WithRunID tags every subsequent event with the run identifier.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{entry: l.entry.WithField(FieldRunID, id), clock: l.clock}
}

// Now exposes the logger's clock.
func (l *Logger) Now() time.Time {
	return l.clock.Now()
}

// lineFormatter prints the bare message so that the wording of each line is
// fully controlled by the event methods below.
type lineFormatter struct{}

func (lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	line := make([]byte, 0, len(e.Message)+1)
	line = append(line, e.Message...)
	return append(line, '\n'), nil
}

func (l *Logger) emit(level logrus.Level, at time.Time, fields logrus.Fields, msg string) {
	l.entry.WithTime(at).WithFields(fields).Log(level, msg)
}

func threadSubject(name string) string {
	return "Thread " + name
}

// Warning reports a non-fatal configuration concern.
func (l *Logger) Warning(msg string) {
	l.emit(logrus.WarnLevel, l.clock.Now(), logrus.Fields{FieldEvent: "warning"}, "WARNING: "+msg)
}

// RunStarted announces the run and its shape.
func (l *Logger) RunStarted(runID string, threads, requests int, target string) {
	l.emit(logrus.InfoLevel, l.clock.Now(), logrus.Fields{FieldEvent: "run_started"},
		fmt.Sprintf("Run %s - %d threads x %d requests against %s", runID, threads, requests, target))
}

// BurstStarted is logged when a worker begins a burst. burstSize is the
// configured size, not the possibly shorter final burst.
func (l *Logger) BurstStarted(thread string, burstSize int) {
	l.emit(logrus.InfoLevel, l.clock.Now(), logrus.Fields{FieldThread: thread, FieldEvent: "burst_started"},
		fmt.Sprintf("%s - Starting new burst of %d requests", threadSubject(thread), burstSize))
}

// Progress reports the 1-based iteration a worker just completed.
func (l *Logger) Progress(thread string, iteration int) {
	now := l.clock.Now()
	l.emit(logrus.InfoLevel, now, logrus.Fields{FieldThread: thread, FieldEvent: "progress", FieldIteration: iteration},
		fmt.Sprintf("%s %s - Repetition %d", threadSubject(thread), Timestamp(now), iteration))
}

// TransportFailed reports a request that produced no response.
func (l *Logger) TransportFailed(thread string, at time.Time, err error) {
	l.emit(logrus.ErrorLevel, at, logrus.Fields{FieldThread: thread, FieldEvent: "transport_failure"},
		fmt.Sprintf("%s %s - Get failed: %v", threadSubject(thread), Timestamp(at), err))
}

// ReadFailed reports a response whose body could not be streamed.
func (l *Logger) ReadFailed(thread string, at time.Time, err error) {
	l.emit(logrus.ErrorLevel, at, logrus.Fields{FieldThread: thread, FieldEvent: "read_failure"},
		fmt.Sprintf("%s %s - Read to string failed: %v", threadSubject(thread), Timestamp(at), err))
}

// BurstAbandoned is logged after a failure ends a burst early.
func (l *Logger) BurstAbandoned(thread string, iteration int) {
	l.emit(logrus.WarnLevel, l.clock.Now(), logrus.Fields{FieldThread: thread, FieldEvent: "burst_abandoned", FieldIteration: iteration},
		fmt.Sprintf("%s had an error and broke from its burst on iteration %d", threadSubject(thread), iteration))
}

// Sleeping is logged right before a worker pauses between bursts.
func (l *Logger) Sleeping(thread string) {
	l.emit(logrus.InfoLevel, l.clock.Now(), logrus.Fields{FieldThread: thread, FieldEvent: "sleeping"},
		threadSubject(thread)+" sleeping...")
}

// WorkerFinished summarizes a worker once its budget is exhausted.
func (l *Logger) WorkerFinished(thread string, attempted, budget int) {
	l.emit(logrus.InfoLevel, l.clock.Now(), logrus.Fields{FieldThread: thread, FieldEvent: "worker_finished"},
		fmt.Sprintf("%s finished: %d of %d requests attempted", threadSubject(thread), attempted, budget))
}

// ControlProgress reports control loop progress.
func (l *Logger) ControlProgress(iteration int) {
	now := l.clock.Now()
	l.emit(logrus.InfoLevel, now, logrus.Fields{FieldThread: "control", FieldEvent: "progress", FieldIteration: iteration},
		fmt.Sprintf("%s %s - Repetition %d", controlSubject, Timestamp(now), iteration))
}

// ControlTransportFailed reports a control loop request that produced no response.
func (l *Logger) ControlTransportFailed(at time.Time, err error) {
	l.emit(logrus.ErrorLevel, at, logrus.Fields{FieldThread: "control", FieldEvent: "transport_failure"},
		fmt.Sprintf("%s %s - Get failed: %v", controlSubject, Timestamp(at), err))
}

// ControlReadFailed reports a control loop response whose body could not be streamed.
func (l *Logger) ControlReadFailed(at time.Time, err error) {
	l.emit(logrus.ErrorLevel, at, logrus.Fields{FieldThread: "control", FieldEvent: "read_failure"},
		fmt.Sprintf("%s %s - Read to string failed: %v", controlSubject, Timestamp(at), err))
}

// ControlAbandoned is logged after a failed control loop iteration.
func (l *Logger) ControlAbandoned(iteration int) {
	l.emit(logrus.WarnLevel, l.clock.Now(), logrus.Fields{FieldThread: "control", FieldEvent: "iteration_abandoned", FieldIteration: iteration},
		fmt.Sprintf("%s had an error on iteration %d", controlSubject, iteration))
}

// ControlClosing is logged when the orchestrator is about to cancel the control loop.
func (l *Logger) ControlClosing() {
	l.emit(logrus.InfoLevel, l.clock.Now(), logrus.Fields{FieldThread: "control", FieldEvent: "closing"},
		"Closing control thread...")
}

// ControlClosed is logged by the control loop as it exits.
func (l *Logger) ControlClosed(iterations int) {
	l.emit(logrus.InfoLevel, l.clock.Now(), logrus.Fields{FieldThread: "control", FieldEvent: "closed", FieldIteration: iterations},
		fmt.Sprintf("%s closed after %d iterations", controlSubject, iterations))
}

// Summary is the outcome of a whole run.
type Summary struct {
	Attempted    int
	Budget       int
	Failures     int
	Forfeited    int
	Bursts       int
	Sleeps       int
	JoinFailures int
	Duration     time.Duration
}

// RunFinished reports the totals once every thread has been joined.
func (l *Logger) RunFinished(runID string, s Summary) {
	l.emit(logrus.InfoLevel, l.clock.Now(), logrus.Fields{
		FieldEvent:      "run_finished",
		"attempted":     s.Attempted,
		"budget":        s.Budget,
		"failures":      s.Failures,
		"forfeited":     s.Forfeited,
		"bursts":        s.Bursts,
		"sleeps":        s.Sleeps,
		"join_failures": s.JoinFailures,
		"duration_ms":   s.Duration.Milliseconds(),
	}, fmt.Sprintf("Run %s finished in %s - %d of %d requests attempted, %d failed, %d forfeited, %d threads failed to join",
		runID, s.Duration.Round(time.Millisecond), s.Attempted, s.Budget, s.Failures, s.Forfeited, s.JoinFailures))
}

// JoinFailed reports a goroutine that terminated abnormally.
func (l *Logger) JoinFailed(err error) {
	l.emit(logrus.ErrorLevel, l.clock.Now(), logrus.Fields{FieldEvent: "join_failure"},
		fmt.Sprintf("Failed to join thread: %v", err))
}
