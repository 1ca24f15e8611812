package notify

import (
	"context"
	"log/slog"

	"healthfirst/pkg/platform/circuit"
)

// BreakerMailer tracks primary mailer health through a circuit breaker.
// Once the breaker opens, failed sends are diverted to the fallback mailer
// instead of churning through the dispatcher's retry queue; every send
// still probes the primary so the breaker can close again on recovery.
type BreakerMailer struct {
	primary  Mailer
	fallback Mailer
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewBreakerMailer(primary, fallback Mailer, breaker *circuit.Breaker, logger *slog.Logger) *BreakerMailer {
	return &BreakerMailer{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

func (m *BreakerMailer) Send(ctx context.Context, n Notification) error {
	err := m.primary.Send(ctx, n)
	if err == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.Info("mail circuit closed", "breaker", m.breaker.Name())
		}
		return nil
	}

	useFallback, change := m.breaker.RecordFailure()
	if change.Opened {
		m.logger.Warn("mail circuit opened", "breaker", m.breaker.Name(), "error", err)
	}
	if useFallback {
		return m.fallback.Send(ctx, n)
	}
	return err
}
