package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openlims/labflow"
	"github.com/openlims/labflow/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	configuration, err := config.ReadConfiguration()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read configuration")
	}
	zerolog.SetGlobalLevel(configuration.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := labflow.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize labflow")
	}
	defer app.Close()

	if err = app.Start(); err != nil {
		log.Fatal().Err(err).Msg("labflow terminated")
	}
}
