package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pulsechat-backend/internal/credential"
	"pulsechat-backend/internal/db"
)

// keyStore is a credential source that can be written to.
type keyStore interface {
	credential.Source
	Store(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the provider API key for file and database credential sources",
}

var keySetCmd = &cobra.Command{
	Use:   "set <api-key>",
	Short: "Store the provider API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeyStore(cmd.Context(), func(ctx context.Context, ks keyStore) error {
			if err := ks.Store(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("stored key in %s\n", credential.Describe(ks))
			return nil
		})
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored provider API key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withKeyStore(cmd.Context(), func(ctx context.Context, ks keyStore) error {
			if err := ks.Clear(ctx); err != nil {
				return err
			}
			fmt.Printf("cleared key in %s\n", credential.Describe(ks))
			return nil
		})
	},
}

var keyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a provider API key is configured",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		database, err := openKeyDatabase(ctx)
		if err != nil {
			return err
		}
		if database != nil {
			defer database.Close()
		}
		src, err := credentialSource(cfg, database)
		if err != nil {
			return err
		}
		_, err = src.Token(ctx)
		switch {
		case errors.Is(err, credential.ErrNoCredential):
			fmt.Printf("%s: not configured\n", credential.Describe(src))
		case err != nil:
			return err
		default:
			fmt.Printf("%s: configured\n", credential.Describe(src))
		}
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyClearCmd, keyStatusCmd)
	rootCmd.AddCommand(keyCmd)
}

func openKeyDatabase(ctx context.Context) (*db.DB, error) {
	if cfg.CredentialSource != "database" && cfg.CredentialSource != "db" {
		return nil, nil
	}
	return openDatabase(ctx, cfg)
}

func withKeyStore(ctx context.Context, fn func(context.Context, keyStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	database, err := openKeyDatabase(ctx)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}
	src, err := credentialSource(cfg, database)
	if err != nil {
		return err
	}
	ks, ok := src.(keyStore)
	if !ok {
		return fmt.Errorf("credential source %q is read-only; set XAI_API_KEY instead", credential.Describe(src))
	}
	return fn(ctx, ks)
}
