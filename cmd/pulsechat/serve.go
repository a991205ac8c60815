package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pulsechat-backend/internal/credential"
	"pulsechat-backend/internal/dispatch"
	"pulsechat-backend/internal/relay"
	"pulsechat-backend/internal/server"
	"pulsechat-backend/internal/session"
	"pulsechat-backend/internal/transcript"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the session API, the websocket event stream and the chat relay.

The relay is mounted at /api/relay and /functions/v1/grok-chat. Sessions call
it over HTTP at RELAY_URL, which defaults to this server's own relay route.

Examples:
  pulsechat serve
  pulsechat serve --port 9000 --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Override PORT")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if servePort != "" {
		cfg.Port = servePort
	}

	database, err := openDatabase(ctx, cfg)
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
	profile, err := loadProfile(cfg)
	if err != nil {
		return err
	}

	relayHandler := relay.NewHandler(relay.Options{
		Provider:   relay.NewProviderClient(cfg.ProviderBaseURL, src, cfg.ProviderTimeout),
		Profile:    profile,
		Credential: src,
		Timeout:    cfg.ProviderTimeout,
	})

	var store transcript.Store = transcript.NewMemoryStore(cfg.MaxExchanges)
	if database != nil {
		store = transcript.NewDatabaseStore(database)
	}
	sessions := session.NewManager(session.Config{
		Relay:        dispatch.NewHTTPRelayClient(cfg.SelfRelayURL(), cfg.RelayTimeout),
		Store:        store,
		TypingQuiet:  cfg.TypingQuiet,
		TTL:          cfg.SessionTTL,
		FPS:          cfg.StreamFPS,
		SeedGreeting: cfg.SeedGreeting,
	})

	srv := server.NewServer(cfg, server.Deps{Relay: relayHandler, Sessions: sessions, Database: database})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sessions.Run(gctx) })
	g.Go(func() error {
		log.Info().
			Str("addr", httpServer.Addr).
			Str("credential", credential.Describe(src)).
			Str("model", profile.Model).
			Str("relay", cfg.SelfRelayURL()).
			Msg("pulsechat server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
