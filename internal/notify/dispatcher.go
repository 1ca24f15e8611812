package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var errSendFailed = errors.New("send failed")

const (
	defaultQueueSize  = 128
	defaultMaxRetries = 3
	defaultRetryDelay = 60 * time.Second
)

// Dispatcher queues notifications and delivers them from a background
// worker. Enqueue never blocks and never returns an error; registration
// succeeds whether or not email infrastructure is healthy.
type Dispatcher struct {
	mailer     Mailer
	queue      chan job
	logger     *slog.Logger
	observe    func(kind Kind, status string)
	maxRetries int
	retryDelay time.Duration
}

type job struct {
	notification Notification
	attempts     int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithObserver wires delivery outcomes (sent, retry, failed, dropped) to a
// metrics sink.
func WithObserver(observe func(kind Kind, status string)) DispatcherOption {
	return func(d *Dispatcher) { d.observe = observe }
}

func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan job, size)
		}
	}
}

func WithRetryPolicy(maxRetries int, delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if maxRetries >= 0 {
			d.maxRetries = maxRetries
		}
		if delay > 0 {
			d.retryDelay = delay
		}
	}
}

func NewDispatcher(mailer Mailer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		mailer:     mailer,
		queue:      make(chan job, defaultQueueSize),
		logger:     slog.Default(),
		observe:    func(Kind, string) {},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue queues a notification for delivery. Drops when the queue is full.
func (d *Dispatcher) Enqueue(n Notification) {
	select {
	case d.queue <- job{notification: n}:
	default:
		d.observe(n.Kind, "dropped")
		d.logger.Warn("notification queue full, dropping",
			"kind", n.Kind, "subject", n.Subject)
	}
}

// Run delivers queued notifications until ctx is cancelled. A failed send
// is retried in place with a fixed delay before the worker moves on.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-d.queue:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	for {
		err := d.mailer.Send(ctx, j.notification)
		if err == nil {
			d.observe(j.notification.Kind, "sent")
			d.logger.Info("notification sent",
				"kind", j.notification.Kind, "recipients", len(j.notification.Recipients))
			return
		}

		j.attempts++
		if j.attempts > d.maxRetries {
			d.observe(j.notification.Kind, "failed")
			d.logger.Error("notification failed after retries",
				"kind", j.notification.Kind, "attempts", j.attempts, "error", err)
			return
		}

		d.observe(j.notification.Kind, "retry")
		d.logger.Warn("notification send failed, retrying",
			"kind", j.notification.Kind, "attempt", j.attempts, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retryDelay):
		}
	}
}
