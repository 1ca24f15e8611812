package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"healthfirst/internal/provider"
)

type DispatcherSuite struct {
	suite.Suite
	mailer  *RecordingMailer
	builder Builder
}

func (s *DispatcherSuite) SetupTest() {
	s.mailer = NewRecordingMailer()
	s.builder = Builder{
		FrontendURL: "https://app.healthfirst.example",
		AdminEmails: []string{"ops@healthfirst.example"},
	}
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) newProvider() *provider.Provider {
	return &provider.Provider{
		ID:             uuid.New(),
		FirstName:      "Jane",
		LastName:       "Smith",
		Email:          "jane@example.com",
		Specialization: "cardiology",
		LicenseNumber:  "MD1234567",
	}
}

func (s *DispatcherSuite) runDispatcher(d *Dispatcher) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// TestDeliversQueuedNotifications verifies the happy path end to end.
func (s *DispatcherSuite) TestDeliversQueuedNotifications() {
	dispatcher := NewDispatcher(s.mailer)
	stop := s.runDispatcher(dispatcher)
	defer stop()

	p := s.newProvider()
	dispatcher.Enqueue(s.builder.Verification(p, "tok-abc"))
	dispatcher.Enqueue(s.builder.Welcome(p))

	s.Eventually(func() bool { return len(s.mailer.Sent()) == 2 }, time.Second, 10*time.Millisecond)

	verification := s.mailer.SentOfKind(KindVerification)
	s.Require().Len(verification, 1)
	s.Equal([]string{"jane@example.com"}, verification[0].Recipients)
	s.Equal("Verify Your HealthFirst Provider Account", verification[0].Subject)
	s.Contains(verification[0].Body, "https://app.healthfirst.example/verify-email?token=tok-abc")

	welcome := s.mailer.SentOfKind(KindWelcome)
	s.Require().Len(welcome, 1)
	s.Equal("Welcome to HealthFirst - Account Verified", welcome[0].Subject)
}

// TestRetriesTransientFailures verifies a failed send is retried and
// eventually delivered.
func (s *DispatcherSuite) TestRetriesTransientFailures() {
	s.mailer.FailFirst = 2

	var mu sync.Mutex
	statuses := map[string]int{}
	dispatcher := NewDispatcher(s.mailer,
		WithRetryPolicy(3, 5*time.Millisecond),
		WithObserver(func(_ Kind, status string) {
			mu.Lock()
			statuses[status]++
			mu.Unlock()
		}),
	)
	stop := s.runDispatcher(dispatcher)
	defer stop()

	dispatcher.Enqueue(s.builder.Verification(s.newProvider(), "tok"))

	s.Eventually(func() bool { return len(s.mailer.Sent()) == 1 }, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	s.Equal(2, statuses["retry"])
	s.Equal(1, statuses["sent"])
}

// TestGivesUpAfterMaxRetries verifies the dead-letter path is a log line,
// not an error surfaced anywhere.
func (s *DispatcherSuite) TestGivesUpAfterMaxRetries() {
	s.mailer.FailFirst = 10

	var mu sync.Mutex
	statuses := map[string]int{}
	dispatcher := NewDispatcher(s.mailer,
		WithRetryPolicy(2, time.Millisecond),
		WithObserver(func(_ Kind, status string) {
			mu.Lock()
			statuses[status]++
			mu.Unlock()
		}),
	)
	stop := s.runDispatcher(dispatcher)
	defer stop()

	dispatcher.Enqueue(s.builder.Welcome(s.newProvider()))

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return statuses["failed"] == 1
	}, time.Second, 10*time.Millisecond)

	s.Empty(s.mailer.Sent())
}

// TestEnqueueNeverBlocks verifies a full queue drops instead of stalling.
func (s *DispatcherSuite) TestEnqueueNeverBlocks() {
	var mu sync.Mutex
	dropped := 0
	dispatcher := NewDispatcher(s.mailer,
		WithQueueSize(1),
		WithObserver(func(_ Kind, status string) {
			if status == "dropped" {
				mu.Lock()
				dropped++
				mu.Unlock()
			}
		}),
	)

	// No worker running; the second enqueue must drop immediately.
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		dispatcher.Enqueue(s.builder.Welcome(s.newProvider()))
		dispatcher.Enqueue(s.builder.Welcome(s.newProvider()))
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		s.Fail("Enqueue blocked on a full queue")
	}

	mu.Lock()
	defer mu.Unlock()
	s.Equal(1, dropped)
}

// TestAdminAlertRequiresRecipients verifies the alert is skipped when no
// admin addresses are configured.
func (s *DispatcherSuite) TestAdminAlertRequiresRecipients() {
	_, ok := Builder{FrontendURL: "https://x"}.AdminAlert(s.newProvider())
	s.False(ok)

	alert, ok := s.builder.AdminAlert(s.newProvider())
	s.Require().True(ok)
	s.Equal("New Provider Registration - HealthFirst", alert.Subject)
	s.Contains(alert.Body, "Cardiology")
	s.Contains(alert.Body, "MD1234567")
}
