package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pulsechat-backend/internal/config"
	"pulsechat-backend/internal/credential"
	"pulsechat-backend/internal/db"
	"pulsechat-backend/internal/prompt"
)

// openDatabase connects and migrates when DB_URL is set; otherwise it returns nil.
func openDatabase(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("DB_URL not provided, using in-memory transcripts")
		return nil, nil
	}
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info().Msg("database connection established")
	if err := database.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, nil
}

// credentialSource picks the single configured source of the provider key.
func credentialSource(cfg config.Config, database *db.DB) (credential.Source, error) {
	switch cfg.CredentialSource {
	case "", "env":
		return credential.EnvSource{Key: cfg.ProviderAPIKey}, nil
	case "file":
		return credential.NewFileSource(cfg.CredentialFile, cfg.CredentialService), nil
	case "database", "db":
		if database == nil {
			return nil, fmt.Errorf("CREDENTIAL_SOURCE=database requires DB_URL")
		}
		return credential.NewDatabaseSource(database, cfg.CredentialService), nil
	default:
		return nil, fmt.Errorf("unknown CREDENTIAL_SOURCE %q", cfg.CredentialSource)
	}
}

func loadProfile(cfg config.Config) (prompt.Profile, error) {
	p, err := prompt.Load(cfg.PromptFile)
	if err != nil {
		return prompt.Profile{}, fmt.Errorf("failed to load prompt profile: %w", err)
	}
	if cfg.Model != "" {
		p.Model = cfg.Model
	}
	return p, nil
}
