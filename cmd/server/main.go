package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Huddle/internal/adapters/http"
	wssignal "github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/auth"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/storage/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to open chat store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close chat store")
		}
	}()

	reg := app.NewRegistry()
	manager := app.NewRoomManager()
	policy := app.NewPolicy(cfg.GroupPolicy, store, app.ParseBackpressureAction(cfg.Backpressure))

	o := &orch.Orchestrator{
		Registry:            reg,
		Rooms:               manager,
		Policy:              policy,
		Store:               store,
		StoreTimeout:        cfg.StoreTimeout,
		TrustClientIdentity: cfg.TrustClientIdentity,
	}
	if cfg.AdminToken == "" {
		log.Warn().Msg("admin_token is empty: operator routes are disabled")
	}
	if cfg.TrustClientIdentity {
		log.Warn().Msg("trust_client_identity is on: clients may authenticate as anyone")
	}

	limiter := wssignal.NewChatRateLimiter(cfg.ChatRateLimit, cfg.ChatRateInterval)
	if limiter != nil {
		go sweepLimiter(ctx, limiter, cfg.ChatRateInterval)
	}

	ctrl := wssignal.NewSignalWSController(o, limiter)
	ctrl.ReadLimit = cfg.ReadLimit
	ctrl.PingPeriod = cfg.PingPeriod
	ctrl.SendBuffer = cfg.SendBuffer

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	}

	r := router.SetupRouter(ctx, cfg, ctrl, verifier, store)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func sweepLimiter(ctx context.Context, l *wssignal.ChatRateLimiter, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}
