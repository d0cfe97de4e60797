// migrate applies the embedded schema migrations: go run ./cmd/migrate [-direction up|down].
package main

import (
	"errors"
	"flag"

	"github.com/sirupsen/logrus"

	"field-sales-platform/backend/internal/config"
	"field-sales-platform/backend/internal/db/migrate"
	"field-sales-platform/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up, or down to roll back one step")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, "text"); err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	if cfg.InMemory() {
		logrus.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logrus.Info("migrate: already at target version")
			return
		}
		logrus.Fatalf("migrate: %v", err)
	}
	logrus.WithField("direction", *direction).Info("migrate: done")
}
