// cmd/migrate/main.go
package main

import (
	"flag"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/infrastructure/database/postgres"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/sirupsen/logrus"
)

func main() {
	seed := flag.Bool("seed", false, "insert development seed data")
	drop := flag.Bool("drop", false, "drop every table before migrating (never in production)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg)

	db, err := postgres.NewConnection(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migration := postgres.NewMigration(db.DB, logging.Component(logger, "migration"))

	if *drop {
		if cfg.IsProduction() {
			logger.Fatal("refusing to drop tables in production")
		}
		if err := migration.DropAllTables(); err != nil {
			logger.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := migration.RunAutoMigrations(); err != nil {
		logger.Fatalf("Database migration failed: %v", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		logger.WithError(err).Warn("index creation incomplete")
	}

	if *seed {
		if err := migration.SeedInitialData(); err != nil {
			logger.Fatalf("Data seeding failed: %v", err)
		}
	}

	logger.Info("migration finished")
}
