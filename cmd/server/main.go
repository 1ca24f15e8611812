// Command server runs the provider registration API: HTTP transport,
// background workers for audit, mail, and event publishing, and the
// periodic verification token sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"healthfirst/pkg/platform/circuit"
	pstrings "healthfirst/pkg/platform/strings"
	"healthfirst/pkg/platform/tx"

	"healthfirst/internal/audit"
	"healthfirst/internal/notify"
	"healthfirst/internal/outbox"
	"healthfirst/internal/platform/config"
	"healthfirst/internal/platform/httpserver"
	"healthfirst/internal/platform/kafka"
	"healthfirst/internal/platform/logger"
	"healthfirst/internal/platform/metrics"
	"healthfirst/internal/platform/postgres"
	redisplatform "healthfirst/internal/platform/redis"
	providerhandler "healthfirst/internal/provider/handler"
	"healthfirst/internal/provider/password"
	"healthfirst/internal/provider/service"
	"healthfirst/internal/provider/store"
	"healthfirst/internal/ratelimit"
	httptransport "healthfirst/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	// The DDL is idempotent; applying it at startup keeps single-node
	// deployments migration-free.
	if _, err := db.ExecContext(ctx, postgres.Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()

	providerStore := store.NewPostgres(db)
	outboxStore := outbox.NewPostgresStore(db)

	recorder := audit.NewRecorder(audit.NewPostgresStore(db),
		audit.WithLogger(log),
		audit.WithDroppedCounter(m.AuditDroppedTotal),
	)

	var mailer notify.Mailer
	if cfg.SMTPAddr != "" {
		mailer = notify.NewBreakerMailer(
			notify.NewSMTPMailer(cfg.SMTPAddr, cfg.MailFrom),
			notify.NewLogMailer(log),
			circuit.New("smtp"),
			log,
		)
	} else {
		mailer = notify.NewLogMailer(log)
	}
	dispatcher := notify.NewDispatcher(mailer,
		notify.WithDispatcherLogger(log),
		notify.WithObserver(func(kind notify.Kind, status string) {
			m.RecordNotification(string(kind), status)
		}),
	)

	svc := service.New(providerStore, password.NewHasher(cfg.BcryptCost),
		service.WithLogger(log),
		service.WithAudit(recorder),
		service.WithNotifier(dispatcher, notify.Builder{
			FrontendURL: cfg.FrontendURL,
			AdminEmails: pstrings.DedupeAndTrimLower(cfg.AdminEmails),
		}),
		service.WithOutbox(outboxStore),
		service.WithTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return tx.Run(ctx, db, fn)
		}),
		service.WithTokenTTL(cfg.TokenTTL),
		service.WithSweepGrace(cfg.TokenSweepGrace),
		service.WithRegistrationObserver(func(outcome string, elapsed time.Duration) {
			m.RecordRegistration(outcome)
			m.RegistrationDuration.Observe(elapsed.Seconds())
		}),
		service.WithVerificationObserver(m.RecordVerification),
	)

	var bucket ratelimit.BucketStore
	if redisClient != nil {
		bucket = ratelimit.NewRedisBucketStore(redisClient.Client)
	} else {
		log.Warn("redis not configured, using in-process rate limiting")
		bucket = ratelimit.NewMemoryBucketStore()
	}
	limit := ratelimit.NewMiddleware(
		ratelimit.NewService(bucket, cfg.RateLimitWindow, cfg.RateLimitMax),
		ratelimit.WithMiddlewareLogger(log),
		ratelimit.WithLimitedCounter(m.RateLimitedTotal),
	)

	readyChecks := []httptransport.HealthCheck{
		{Name: "postgres", Check: db.PingContext},
	}
	if redisClient != nil {
		readyChecks = append(readyChecks, httptransport.HealthCheck{
			Name: "redis", Check: redisClient.Health,
		})
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger: log,
		Provider: providerhandler.New(svc, log,
			providerhandler.WithRateLimit(limit.Limit)),
		ReadyChecks: readyChecks,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return svc.RunTokenSweep(gctx, time.Hour) })

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.KafkaEventTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer producer.Close()

		publisher := outbox.NewPublisher(outboxStore, producer,
			outbox.WithPublisherLogger(log),
			outbox.WithPublishedCounter(m.OutboxPublishedTotal),
		)
		g.Go(func() error { return publisher.Run(gctx) })
	} else {
		log.Info("kafka brokers not configured, outbox publisher disabled")
	}

	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shut down cleanly")
	return nil
}
