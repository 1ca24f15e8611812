package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 100
)

// Sink is where published events go. Satisfied by the Kafka producer.
type Sink interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Publisher drains unpublished outbox rows to the sink. A row is marked
// published only after the sink accepts it, so delivery is at-least-once
// and consumers must dedupe by event ID.
type Publisher struct {
	store     Store
	sink      Sink
	logger    *slog.Logger
	published prometheus.Counter
	interval  time.Duration
	batchSize int
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func WithPollInterval(interval time.Duration) PublisherOption {
	return func(p *Publisher) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

func WithBatchSize(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

func WithPublishedCounter(counter prometheus.Counter) PublisherOption {
	return func(p *Publisher) { p.published = counter }
}

func NewPublisher(store Store, sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:     store,
		sink:      sink,
		logger:    slog.Default(),
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. Publish failures are logged and retried
// on the next tick; the loop itself only exits with the context.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.publishBatch(ctx); err != nil {
				p.logger.Error("publish outbox batch", "error", err)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context) error {
	entries, err := p.store.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := p.sink.Publish(ctx, []byte(entry.AggregateID), entry.Payload); err != nil {
			// Stop at the first failure to preserve per-aggregate order.
			p.logger.Warn("publish outbox entry",
				"id", entry.ID, "event_type", entry.EventType, "error", err)
			break
		}
		published = append(published, entry.ID)
		if p.published != nil {
			p.published.Inc()
		}
	}
	if len(published) == 0 {
		return nil
	}
	return p.store.MarkPublished(ctx, published, time.Now().UTC())
}
