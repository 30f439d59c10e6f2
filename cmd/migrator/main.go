package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/kimhyunwoooo/kids-edu/internal/config"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
)

func main() {
	var (
		configPath string
		table      string
		down       bool
	)

	flag.StringVar(&configPath, "config", "", "path to config file (defaults to CONFIG_PATH)")
	flag.StringVar(&table, "migrations-table", "migrations", "table that records applied versions")
	flag.BoolVar(&down, "down", false, "roll back every migration")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(".env"); err != nil {
		log.Debug("no .env file loaded", sl.Err(err))
	}
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	// server settings are not validated here
	cfg, err := config.ReadPath(configPath)
	if err != nil {
		panic(err)
	}

	dbURL, err := cfg.MigrationDatabaseURL(table)
	if err != nil {
		panic(err)
	}

	m, err := migrate.New(cfg.MigrationSource(), dbURL)
	if err != nil {
		panic(err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	log = log.With(slog.String("source", cfg.MigrationSource()), slog.Bool("down", down))

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return
		}

		panic(err)
	}

	log.Info("migrations applied")
}
