package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"github.com/cassiomorais/invoicing/internal/infrastructure/config"
	"github.com/cassiomorais/invoicing/internal/infrastructure/observability"
)

func main() {
	cfg, err := config.Load(os.Getenv("INVOICING_CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	observability.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Environment, "invoicing-migrate")

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	m, err := migrate.New("file://migrations", cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("initializing migrations")
	}
	defer m.Close()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		log.Fatal().Msg(fmt.Sprintf("unknown direction %q, want up or down", direction))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal().Err(err).Str("direction", direction).Msg("running migrations")
	}
	log.Info().Str("direction", direction).Msg("migrations complete")
}
