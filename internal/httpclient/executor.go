package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/hyperspank/internal/tracing"
)

// FailureKind identifies where a request failed.
type FailureKind int

const (
	// FailureTransport means the request could not be sent or no response was obtained.
	FailureTransport FailureKind = iota + 1
	// FailureBodyRead means a response arrived but its body could not be read to completion.
	FailureBodyRead
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureBodyRead:
		return "body read"
	default:
		return "unknown"
	}
}

// RequestError is the failure outcome of a single GET.
type RequestError struct {
	Kind FailureKind
	At   time.Time
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// KindOf reports the failure kind carried by err, if any.
func KindOf(err error) (FailureKind, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind, true
	}
	return 0, false
}

// Executor issues GET requests against a fixed target.
type Executor struct {
	target    string
	keepAlive bool
	client    *http.Client
	tracer    trace.Tracer
	propagate bool
	now       func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

// WithTracer wraps every request in a client span. When propagate is set the
// W3C trace context is injected into the request headers.
func WithTracer(tracer trace.Tracer, propagate bool) Option {
	return func(e *Executor) {
		e.tracer = tracer
		e.propagate = propagate
	}
}

// WithClock overrides the source of failure timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor returns an Executor for target. A nil client is replaced with
// one from NewClient without a timeout.
func NewExecutor(target string, keepAlive bool, client *http.Client, opts ...Option) *Executor {
	if client == nil {
		client = NewClient(keepAlive, 0)
	}
	e := &Executor{
		target:    target,
		keepAlive: keepAlive,
		client:    client,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get performs one blocking GET and drains the response body. It returns nil
// on success or a *RequestError.
func (e *Executor) Get(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.tracer == nil {
		return e.get(ctx)
	}

	ctx, span := tracing.StartRequestSpan(ctx, e.tracer, e.target, e.keepAlive)
	err := e.get(ctx)
	var attrs []attribute.KeyValue
	if kind, ok := KindOf(err); ok {
		attrs = append(attrs, attribute.String(tracing.AttrFailureKind, kind.String()))
	}
	tracing.EndSpan(span, err, attrs...)
	return err
}

func (e *Executor) get(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.target, nil)
	if err != nil {
		return e.fail(FailureTransport, err)
	}
	if e.keepAlive {
		req.Header.Set("Connection", "keep-alive")
	} else {
		// Sends "Connection: close" and tears the connection down after the response.
		req.Close = true
	}
	if e.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}
	// A body without GetBody makes the request non-replayable, so the
	// transport never resends it on a stale keep-alive connection. The empty
	// body is probed away and nothing extra goes on the wire.
	req.Body = io.NopCloser(http.NoBody)

	resp, err := e.client.Do(req)
	if err != nil {
		return e.fail(FailureTransport, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return e.fail(FailureBodyRead, err)
	}
	return nil
}

func (e *Executor) fail(kind FailureKind, err error) error {
	return &RequestError{Kind: kind, At: e.now(), Err: err}
}
