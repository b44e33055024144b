package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"secure.notes/config"
	"secure.notes/internal/api"
	"secure.notes/internal/logger"
	"secure.notes/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	boot := logger.New("server", os.Stdout, "info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("config error")
	}

	log := logger.New("server", os.Stdout, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := initStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store.Type).Msg("store initialisation failed")
	}
	defer st.Close()

	router := api.SetupRouter(st, cfg, log)

	log.Info().
		Str("addr", cfg.Addr()).
		Str("base_url", cfg.Server.BaseURL).
		Str("store", cfg.Store.Type).
		Dur("retention", cfg.Notes.Retention).
		Msg("server starting")

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Shutdown(shutdownCtx); err != nil {
			log.Err(err).Msg("graceful shutdown failed")
		}
	}
}

func initStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.Store.Type {
	case "redis":
		st, err := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", cfg.Store.Redis.Addr).Msg("connected to redis")
		return st, nil
	case "sql":
		st, err := store.OpenSQLStore(ctx, cfg.Store.SQL.Driver, cfg.Store.SQL.DSN, cfg.Store.CleanupInterval, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return store.NewMemoryStore(cfg.Store.CleanupInterval), nil
	}
}
