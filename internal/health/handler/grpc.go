package handler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	healthv1 "field-sales-platform/backend/api/health/v1"
)

const checkTimeout = 2 * time.Second

// Pinger checks database connectivity. *sqlx.DB and *sql.DB satisfy it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the authorization policy is loaded and evaluable.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements HealthService for readiness and liveness probes.
type Server struct {
	db     Pinger
	policy PolicyChecker
}

// NewServer returns a new Health gRPC server. Nil dependencies are skipped (in-memory dev mode, fallback policy).
func NewServer(db Pinger, policy PolicyChecker) *Server {
	return &Server{db: db, policy: policy}
}

// HealthCheck reports SERVING only when every configured dependency answers. Failures are reported in the
// response, never as a gRPC error, so probes can read the per-check detail.
func (s *Server) HealthCheck(ctx context.Context, req *healthv1.HealthCheckRequest) (*healthv1.HealthCheckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	resp := &healthv1.HealthCheckResponse{Status: healthv1.StatusServing, Checks: map[string]string{}}
	check := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			logrus.WithField("check", name).WithError(err).Warn("health: check failed")
			resp.Status = healthv1.StatusNotServing
			resp.Checks[name] = err.Error()
			return
		}
		resp.Checks[name] = "ok"
	}
	if s.db != nil {
		check("database", s.db.PingContext)
	}
	if s.policy != nil {
		check("policy", s.policy.HealthCheck)
	}
	return resp, nil
}
