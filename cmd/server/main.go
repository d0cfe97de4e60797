package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	auditpkg "field-sales-platform/backend/internal/audit"
	auditrepo "field-sales-platform/backend/internal/audit/repository"
	"field-sales-platform/backend/internal/config"
	"field-sales-platform/backend/internal/db"
	entitydomain "field-sales-platform/backend/internal/entity/domain"
	entityrepo "field-sales-platform/backend/internal/entity/repository"
	"field-sales-platform/backend/internal/logging"
	"field-sales-platform/backend/internal/notify"
	"field-sales-platform/backend/internal/policy/engine"
	"field-sales-platform/backend/internal/security"
	"field-sales-platform/backend/internal/server"
	"field-sales-platform/backend/internal/server/interceptors"
	sessionrepo "field-sales-platform/backend/internal/session/repository"
	sessionservice "field-sales-platform/backend/internal/session/service"
	syncservice "field-sales-platform/backend/internal/sync/service"
	"field-sales-platform/backend/internal/telemetry"
	telemetryotel "field-sales-platform/backend/internal/telemetry/otel"
	"field-sales-platform/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		logrus.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter("fieldsales"))
	if err != nil {
		logrus.Fatalf("metrics: %v", err)
	}

	tokens, err := tokenProvider(cfg)
	if err != nil {
		logrus.Fatalf("jwt: %v", err)
	}

	evaluator, err := engine.NewOPAEvaluator(ctx, cfg.AuthzPolicyPath)
	if err != nil {
		logrus.Fatalf("authz policy: %v", err)
	}

	var (
		store       entityrepo.Store
		sessionRepo sessionrepo.Repository
		auditLogger auditpkg.AuditLogger
		deps        server.Deps
	)
	if cfg.InMemory() {
		logrus.Warn("DATABASE_URL is empty; using in-memory stores (data is lost on restart)")
		store = entityrepo.NewMemoryStore()
		sessionRepo = sessionrepo.NewMemoryRepository()
		auditLogger = auditpkg.NewLogger(auditrepo.NewMemoryRepository(), interceptors.ClientIP)
	} else {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logrus.Fatalf("db: %v", err)
		}
		defer conn.Close()
		store = entityrepo.NewPostgresStore(conn, cfg.SyncCursorSettle)
		sessionRepo = sessionrepo.NewPostgresRepository(conn)
		auditLogger = auditpkg.NewLogger(auditrepo.NewPostgresRepository(conn), interceptors.ClientIP)
		deps.HealthPinger = conn
	}

	var limiter sessionservice.TouchLimiter = sessionservice.NewLocalTouchLimiter(cfg.SessionTouchInterval)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = sessionservice.NewRedisTouchLimiter(rdb, "", cfg.SessionTouchInterval)
		logrus.WithField("addr", cfg.RedisAddr).Info("session touch throttle shared via redis")
	}

	var notifier notify.Dispatcher = notify.LogDispatcher{}
	if d := notify.NewKafkaDispatcher(cfg.KafkaBrokersList(), cfg.NotifyKafkaTopic); d != nil {
		notifier = d
	}
	defer notifier.Close()

	var events telemetry.EventEmitter = telemetryotel.NewEventEmitter(providers.LoggerProvider)
	if p := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.TelemetryKafkaTopic); p != nil {
		events = p
		defer p.Close()
	}

	registry := sessionservice.NewRegistry(sessionRepo,
		sessionservice.WithTouchLimiter(limiter),
		sessionservice.WithNotifier(notifier),
		sessionservice.WithAuditLogger(auditLogger),
		sessionservice.WithEvaluator(evaluator),
		sessionservice.WithMetrics(metrics),
		sessionservice.WithEventEmitter(events),
	)

	validators := syncservice.NewValidators()
	validators.Register(entitydomain.TypeClient, syncservice.RequiredFields("name"))
	validators.Register(entitydomain.TypeProduct, syncservice.RequiredFields("name"))

	deps.Sync = syncservice.NewOrchestrator(store, registry,
		syncservice.WithValidators(validators),
		syncservice.WithEvaluator(evaluator),
		syncservice.WithMetrics(metrics),
	)
	deps.Sessions = registry
	deps.HealthPolicyChecker = evaluator

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logrus.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := server.NewGRPCServer(tokens, server.Observability{Audit: auditLogger, Events: events})
	server.RegisterServices(s, deps)

	go func() {
		logrus.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
		if err := s.Serve(lis); err != nil {
			logrus.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down gRPC server...")
	s.GracefulStop()
	// Let in-flight async telemetry finish before exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("otel shutdown")
	}
	logrus.Info("gRPC server stopped")
}

// tokenProvider verifies access tokens with the configured public key. Outside production an unset key
// falls back to the built-in development key pair that cmd/seed signs with.
func tokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTPublicKey == "" && cfg.Env != config.EnvProduction {
		logrus.Warn("JWT_PUBLIC_KEY is empty; accepting tokens signed with the development key")
		return security.NewTestTokenProvider()
	}
	_, pub, err := security.LoadKeys("", cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(nil, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
}
