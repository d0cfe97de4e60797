package engine

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/sirupsen/logrus"

	identitydomain "field-sales-platform/backend/internal/identity/domain"
	sessiondomain "field-sales-platform/backend/internal/session/domain"
)

const (
	policyPackage        = "salesync.authz"
	allowRevokeQuery     = "data." + policyPackage + ".allow_revoke"
	fullTenantScopeQuery = "data." + policyPackage + ".full_tenant_scope"
)

//go:embed authz.rego
var defaultRegoPolicy string

// OPAEvaluator evaluates authorization rules with OPA Rego. Queries are prepared once at construction.
type OPAEvaluator struct {
	source      string
	allowRevoke rego.PreparedEvalQuery
	fullScope   rego.PreparedEvalQuery
	fallback    Fallback
}

// NewOPAEvaluator compiles the embedded policy, or the file at policyPath when non-empty.
// The policy must live in package salesync.authz and define allow_revoke and full_tenant_scope.
func NewOPAEvaluator(ctx context.Context, policyPath string) (*OPAEvaluator, error) {
	src := defaultRegoPolicy
	if policyPath != "" {
		b, err := os.ReadFile(policyPath)
		if err != nil {
			return nil, fmt.Errorf("read policy %s: %w", policyPath, err)
		}
		src = string(b)
	}
	return newOPAEvaluator(ctx, src)
}

func newOPAEvaluator(ctx context.Context, src string) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": src})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	allow, err := rego.New(rego.Query(allowRevokeQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare allow_revoke: %w", err)
	}
	scope, err := rego.New(rego.Query(fullTenantScopeQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare full_tenant_scope: %w", err)
	}
	return &OPAEvaluator{source: src, allowRevoke: allow, fullScope: scope}, nil
}

// HealthCheck evaluates both rules against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	p := identitydomain.Principal{TenantID: 1, UserID: 1}
	if _, err := e.evalBool(ctx, e.allowRevoke, revokeInput(p, &sessiondomain.Session{TenantID: 1, UserID: 1})); err != nil {
		return fmt.Errorf("eval allow_revoke: %w", err)
	}
	if _, err := e.evalBool(ctx, e.fullScope, scopeInput(p, "client")); err != nil {
		return fmt.Errorf("eval full_tenant_scope: %w", err)
	}
	return nil
}

// CanRevoke evaluates allow_revoke. On evaluation failure the built-in rule decides.
func (e *OPAEvaluator) CanRevoke(ctx context.Context, actor identitydomain.Principal, target *sessiondomain.Session) (bool, error) {
	if target == nil || target.TenantID != actor.TenantID {
		return false, nil
	}
	ok, err := e.evalBool(ctx, e.allowRevoke, revokeInput(actor, target))
	if err != nil {
		logrus.WithFields(logrus.Fields{"tenant_id": actor.TenantID, "session_id": target.ID}).
			WithError(err).Warn("policy: allow_revoke evaluation failed, using defaults")
		return e.fallback.CanRevoke(ctx, actor, target)
	}
	return ok, nil
}

// FullTenantScope evaluates full_tenant_scope. On evaluation failure the built-in rule decides.
func (e *OPAEvaluator) FullTenantScope(ctx context.Context, principal identitydomain.Principal, entityType string) (bool, error) {
	ok, err := e.evalBool(ctx, e.fullScope, scopeInput(principal, entityType))
	if err != nil {
		logrus.WithFields(logrus.Fields{"tenant_id": principal.TenantID, "type": entityType}).
			WithError(err).Warn("policy: full_tenant_scope evaluation failed, using defaults")
		return e.fallback.FullTenantScope(ctx, principal, entityType)
	}
	return ok, nil
}

func (e *OPAEvaluator) evalBool(ctx context.Context, q rego.PreparedEvalQuery, input map[string]interface{}) (bool, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy query returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return v, nil
}

func principalInput(p identitydomain.Principal) map[string]interface{} {
	return map[string]interface{}{
		"tenant_id": p.TenantID,
		"user_id":   p.UserID,
		"is_admin":  p.IsAdmin,
	}
}

func revokeInput(actor identitydomain.Principal, target *sessiondomain.Session) map[string]interface{} {
	return map[string]interface{}{
		"actor": principalInput(actor),
		"session": map[string]interface{}{
			"id":          target.ID,
			"tenant_id":   target.TenantID,
			"user_id":     target.UserID,
			"status":      string(target.Status),
			"device_type": string(target.DeviceType),
		},
	}
}

func scopeInput(p identitydomain.Principal, entityType string) map[string]interface{} {
	return map[string]interface{}{
		"principal":   principalInput(p),
		"entity_type": entityType,
	}
}
