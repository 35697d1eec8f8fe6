// cmd/seeduser/main.go creates a staff account.
// Usage: go run ./cmd/seeduser -username boss -password secret -role manager
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"settlepos/internal/config"
	"settlepos/internal/infra"
	"settlepos/internal/repository"
	"settlepos/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	username := flag.String("username", "admin", "login name")
	name := flag.String("name", "Admin", "display name")
	password := flag.String("password", "", "password (required)")
	role := flag.String("role", "manager", "cashier | supervisor | manager")
	email := flag.String("email", "", "optional email")
	flag.Parse()

	if *password == "" {
		log.Fatal().Msg("-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	var mail *string
	if *email != "" {
		mail = email
	}
	auth := service.NewAuthService(repository.NewStaffRepository(db), cfg)
	staff, err := auth.CreateStaff(context.Background(), *username, *name, *password, *role, mail)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create staff")
	}
	log.Info().Str("id", staff.ID).Str("username", staff.Username).Str("role", staff.Role).Msg("staff created")
}
