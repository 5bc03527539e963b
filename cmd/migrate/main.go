package main

import (
	"flag"
	"fmt"

	"github.com/kdimtricp/moviescout/internal/bootstrap"
	"github.com/kdimtricp/moviescout/internal/config"
	"github.com/kdimtricp/moviescout/internal/database"
	"github.com/kdimtricp/moviescout/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	var (
		dbType         = flag.String("db", cfg.Database.Type, "Database type (postgres or sqlite)")
		migrationsPath = flag.String("migrations", cfg.Database.MigrationsPath, "Path to migrations directory")
		status         = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	dbCfg := bootstrap.DatabaseConfig(cfg.Database)
	dbCfg.Type = *dbType

	db, err := database.NewDB(dbCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if !*status {
		logging.Info().Str("path", *migrationsPath).Str("db", dbCfg.Type).Msg("Running migrations")
		if err := db.RunMigrations(*migrationsPath); err != nil {
			logging.Fatal().Err(err).Msg("Failed to run migrations")
		}
		logging.Info().Msg("Migrations completed")
		return
	}

	if dbCfg.Type != "postgres" {
		fmt.Printf("%s schema is created on open; no migrations are tracked\n", dbCfg.Type)
		return
	}

	migrator := database.NewMigrator(db.Conn(), dbCfg.Type)
	if err := migrator.Initialize(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize migrator")
	}
	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	migrations, err := migrator.LoadMigrations(*migrationsPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load migrations")
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	for _, m := range migrations {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
	}
}
