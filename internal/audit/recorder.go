package audit

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultBuffer = 256

// Recorder accepts attempts on a buffered channel and persists them from a
// background worker. Record never blocks the caller: when the buffer is
// full the attempt is dropped and counted.
type Recorder struct {
	store   Store
	inbox   chan Attempt
	logger  *slog.Logger
	dropped prometheus.Counter
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for append failures and drops.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithBuffer sets the inbox capacity.
func WithBuffer(size int) Option {
	return func(r *Recorder) {
		if size > 0 {
			r.inbox = make(chan Attempt, size)
		}
	}
}

// WithDroppedCounter counts attempts discarded because the buffer was full.
func WithDroppedCounter(counter prometheus.Counter) Option {
	return func(r *Recorder) { r.dropped = counter }
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		inbox:  make(chan Attempt, defaultBuffer),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues an attempt without blocking. Full buffer means the
// attempt is dropped; registration must not wait on audit.
func (r *Recorder) Record(attempt Attempt) {
	select {
	case r.inbox <- attempt:
	default:
		if r.dropped != nil {
			r.dropped.Inc()
		}
		r.logger.Warn("audit buffer full, dropping attempt",
			"ip", attempt.IPAddress, "email", attempt.Email)
	}
}

// Run persists queued attempts until ctx is cancelled, then drains whatever
// remains in the buffer before returning.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case attempt := <-r.inbox:
			r.append(ctx, attempt)
		}
	}
}

func (r *Recorder) drain() {
	// Persist with a fresh context; the run context is already cancelled.
	ctx := context.Background()
	for {
		select {
		case attempt := <-r.inbox:
			r.append(ctx, attempt)
		default:
			return
		}
	}
}

func (r *Recorder) append(ctx context.Context, attempt Attempt) {
	if err := r.store.Append(ctx, attempt); err != nil {
		r.logger.Error("append registration attempt", "error", err)
	}
}
