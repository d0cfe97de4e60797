// Worker expires idle device sessions. Every SESSION_SWEEP_INTERVAL it moves Active sessions idle for
// more than SESSION_INACTIVITY_DAYS to Expired. Requires DATABASE_URL; GRPC_ADDR is required by config but unused.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"field-sales-platform/backend/internal/audit"
	auditrepo "field-sales-platform/backend/internal/audit/repository"
	"field-sales-platform/backend/internal/config"
	"field-sales-platform/backend/internal/db"
	"field-sales-platform/backend/internal/logging"
	sessionrepo "field-sales-platform/backend/internal/session/repository"
	sessionservice "field-sales-platform/backend/internal/session/service"
	"field-sales-platform/backend/internal/telemetry"
	telemetryotel "field-sales-platform/backend/internal/telemetry/otel"
)

type sweeper interface {
	SweepExpired(ctx context.Context, inactivityDays int) (int, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	if cfg.InMemory() {
		logrus.Fatal("worker: DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logrus.Info("worker: shutting down...")
		cancel()
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("db: %v", err)
	}
	defer conn.Close()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName + "-worker",
		Environment: cfg.Env,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		logrus.Fatalf("otel: %v", err)
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 10*time.Second)
		defer c()
		_ = providers.Shutdown(shutdownCtx)
	}()
	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter("fieldsales"))
	if err != nil {
		logrus.Fatalf("metrics: %v", err)
	}

	registry := sessionservice.NewRegistry(sessionrepo.NewPostgresRepository(conn),
		sessionservice.WithAuditLogger(audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil)),
		sessionservice.WithMetrics(metrics),
	)

	logrus.WithFields(logrus.Fields{
		"interval":        cfg.SessionSweepInterval,
		"inactivity_days": cfg.SessionInactivityDays,
	}).Info("worker: session sweeper started")
	run(ctx, registry, cfg.SessionSweepInterval, cfg.SessionInactivityDays)
	logrus.Info("worker: stopped")
}

// run sweeps once immediately, then on every tick until ctx is done. Failures are logged and retried next tick.
func run(ctx context.Context, s sweeper, interval time.Duration, inactivityDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := s.SweepExpired(ctx, inactivityDays); err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Error("worker: sweep failed")
		} else if n > 0 {
			logrus.WithField("count", n).Info("worker: sessions expired")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
