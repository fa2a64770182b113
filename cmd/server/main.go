package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"couplespace/focus/internal/config"
	"couplespace/focus/internal/db"
	"couplespace/focus/internal/handler"
	"couplespace/focus/internal/repository"
	"couplespace/focus/internal/router"
	"couplespace/focus/internal/service"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := config.Load()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	userRepo := repository.NewUserRepository(database)
	focusRepo := repository.NewFocusRepository(database)

	authService := service.NewAuthService(userRepo, focusRepo, cfg.JWTSecret, cfg.TokenTTL)
	focusService := service.NewFocusService(focusRepo)

	authHandler := handler.NewAuthHandler(authService)
	focusHandler := handler.NewFocusHandler(focusService)

	engine := router.New(authService, authHandler, focusHandler, cfg.CORSOrigins)
	logger.Info().Str("port", cfg.Port).Msg("focus backend listening")
	if err := engine.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("run server")
	}
}
