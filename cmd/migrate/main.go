package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"portfolio-booking/config"
	"portfolio-booking/internal/infrastructure/database"
	appmigrations "portfolio-booking/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

// Usage: migrate [up|down|force <version>]
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.DB.Enabled() {
		logrus.Fatal("DB_HOST is required to run migrations")
	}

	db, err := sql.Open("pgx", database.URL(cfg.DB))
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logrus.Fatalf("Failed to ping database: %v", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logrus.Fatalf("Failed to create database driver: %v", err)
	}

	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		logrus.Fatalf("Failed to create source driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logrus.Fatalf("Failed to create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "force":
		if len(os.Args) < 3 {
			logrus.Fatal("force requires a version")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			logrus.Fatalf("Invalid version: %v", err)
		}
		if err := m.Force(version); err != nil {
			logrus.Fatalf("Failed to force version: %v", err)
		}
		logrus.Infof("Forced version to %d", version)
	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logrus.Fatalf("Failed to roll back: %v", err)
		}
		logrus.Info("Rolled back one migration")
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logrus.Fatalf("Failed to migrate up: %v", err)
		}
		logrus.Info("Migrations complete")
	default:
		logrus.Fatalf("Unknown command %q", cmd)
	}
}
