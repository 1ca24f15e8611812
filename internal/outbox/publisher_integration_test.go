//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"healthfirst/pkg/testutil/containers"

	"healthfirst/internal/outbox"
	"healthfirst/internal/platform/kafka"
)

const testTopic = "healthfirst.provider.events"

type PublisherIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *outbox.PostgresStore
	producer *kafka.Producer
}

func TestPublisherIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherIntegrationSuite))
}

func (s *PublisherIntegrationSuite) SetupSuite() {
	ctx := context.Background()

	s.postgres = containers.NewPostgresContainer(s.T())
	s.redpanda = containers.NewRedpandaContainer(s.T())
	s.store = outbox.NewPostgresStore(s.postgres.DB)

	admin, err := kgo.NewClient(kgo.SeedBrokers(s.redpanda.Brokers...))
	s.Require().NoError(err)
	defer admin.Close()
	_, err = kadm.NewClient(admin).CreateTopics(ctx, 1, 1, nil, testTopic)
	s.Require().NoError(err)

	s.producer, err = kafka.NewProducer(ctx, s.redpanda.Brokers, testTopic)
	s.Require().NoError(err)
	s.T().Cleanup(s.producer.Close)
}

func (s *PublisherIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

// TestEndToEnd verifies outbox rows reach the broker and are marked published.
func (s *PublisherIntegrationSuite) TestEndToEnd() {
	ctx := context.Background()

	err := s.store.Append(ctx, outbox.Event{
		AggregateType: "provider",
		AggregateID:   "provider-1",
		EventType:     outbox.EventProviderRegistered,
		Payload:       map[string]string{"email": "e2e@example.com"},
	})
	s.Require().NoError(err)

	publisher := outbox.NewPublisher(s.store, s.producer,
		outbox.WithPollInterval(100*time.Millisecond))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = publisher.Run(runCtx)
	}()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetchCtx, fetchCancel := context.WithTimeout(ctx, 30*time.Second)
	defer fetchCancel()
	fetches := consumer.PollFetches(fetchCtx)
	s.Require().NoError(fetches.Err())

	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal([]byte("provider-1"), records[0].Key)

	var payload map[string]string
	s.Require().NoError(json.Unmarshal(records[0].Value, &payload))
	s.Equal("e2e@example.com", payload["email"])

	cancel()
	<-done

	entries, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(entries)
}
