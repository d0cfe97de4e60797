// seed inserts development sample data for one tenant and prints access tokens for local testing.
// Idempotent for entities: every record is created with a fixed clientLocalId, so reruns are deduplicated.
// Each run registers a fresh device session for the dev agent.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"field-sales-platform/backend/internal/config"
	"field-sales-platform/backend/internal/db"
	entitydomain "field-sales-platform/backend/internal/entity/domain"
	entityrepo "field-sales-platform/backend/internal/entity/repository"
	identitydomain "field-sales-platform/backend/internal/identity/domain"
	"field-sales-platform/backend/internal/logging"
	"field-sales-platform/backend/internal/security"
	sessiondomain "field-sales-platform/backend/internal/session/domain"
	sessionrepo "field-sales-platform/backend/internal/session/repository"
	sessionservice "field-sales-platform/backend/internal/session/service"
	syncdomain "field-sales-platform/backend/internal/sync/domain"
	syncservice "field-sales-platform/backend/internal/sync/service"
)

const devTenantID = 1

var (
	devAdmin = identitydomain.Principal{TenantID: devTenantID, UserID: 1, IsAdmin: true}
	devAgent = identitydomain.Principal{TenantID: devTenantID, UserID: 2}
)

type seedRecord struct {
	localID string
	payload string
	owner   *int64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, "text"); err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	if cfg.DatabaseURL == "" {
		logrus.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.Env == config.EnvProduction {
		logrus.Fatal("seed refuses to run with APP_ENV=production")
	}
	tokens, err := signer(cfg)
	if err != nil {
		logrus.Fatalf("jwt: %v", err)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("db: %v", err)
	}
	defer conn.Close()

	registry := sessionservice.NewRegistry(sessionrepo.NewPostgresRepository(conn))
	orch := syncservice.NewOrchestrator(entityrepo.NewPostgresStore(conn, cfg.SyncCursorSettle), registry)

	adminSession, err := registry.Register(ctx, devAdmin, sessionservice.RegisterInput{DeviceID: "seed-console", DeviceType: sessiondomain.DeviceWeb})
	if err != nil {
		logrus.Fatalf("register admin session: %v", err)
	}
	agentSession, err := registry.Register(ctx, devAgent, sessionservice.RegisterInput{DeviceID: "seed-tablet", DeviceType: sessiondomain.DeviceTablet})
	if err != nil {
		logrus.Fatalf("register agent session: %v", err)
	}

	agentID := devAgent.UserID
	data := map[entitydomain.Type][]seedRecord{
		entitydomain.TypeClient: {
			{localID: "seed-client-1", payload: `{"name":"Acme Supermarket","city":"Lisbon"}`},
			{localID: "seed-client-2", payload: `{"name":"Corner Shop","city":"Porto"}`},
		},
		entitydomain.TypeProduct: {
			{localID: "seed-product-1", payload: `{"name":"Sparkling water 1L","sku":"SW-1000","price":0.89}`},
			{localID: "seed-product-2", payload: `{"name":"Orange juice 1L","sku":"OJ-1000","price":1.99}`},
		},
		entitydomain.TypeOrder: {
			{localID: "seed-order-1", payload: `{"clientLocalId":"seed-client-1","lines":[{"sku":"SW-1000","qty":24}]}`, owner: &agentID},
		},
		entitydomain.TypeRoute: {
			{localID: "seed-route-1", payload: `{"day":"monday","stops":["seed-client-1","seed-client-2"]}`, owner: &agentID},
		},
	}
	for _, typ := range entitydomain.Types {
		records := data[typ]
		if len(records) == 0 {
			continue
		}
		items := make([]syncdomain.Item, len(records))
		for i, r := range records {
			items[i] = syncdomain.Item{ClientLocalID: r.localID, Payload: json.RawMessage(r.payload), OwnerUserID: r.owner}
		}
		results, err := orch.Push(ctx, devAdmin, adminSession.ID, typ, items)
		if err != nil {
			logrus.Fatalf("seed %s: %v", typ, err)
		}
		for _, res := range results {
			if res.Outcome != syncdomain.OutcomeAccepted {
				logrus.Fatalf("seed %s %s: %s %s", typ, res.ClientLocalID, res.Outcome, res.Reason)
			}
			logrus.WithFields(logrus.Fields{"type": typ, "id": res.Entity.ID, "duplicate": res.Duplicate}).Info("seeded")
		}
	}

	printToken(tokens, "admin", devAdmin, identitydomain.RoleAdmin, adminSession.ID)
	printToken(tokens, "agent", devAgent, identitydomain.RoleAgent, agentSession.ID)
}

// signer returns a signing TokenProvider from JWT_PRIVATE_KEY, or the built-in development key pair when unset.
func signer(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey == "" {
		return security.NewTestTokenProvider()
	}
	priv, pub, err := security.LoadKeys(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
}

func printToken(tokens *security.TokenProvider, label string, p identitydomain.Principal, role identitydomain.Role, sessionID string) {
	token, _, exp, err := tokens.IssueAccess(p, role, sessionID)
	if err != nil {
		logrus.Fatalf("issue %s token: %v", label, err)
	}
	fmt.Fprintf(os.Stdout, "%s (tenant %d, user %d)\n  session: %s\n  expires: %s\n  token:   %s\n\n",
		label, p.TenantID, p.UserID, sessionID, exp.Format("2006-01-02T15:04:05Z07:00"), token)
}
