package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/internal/app"
	"github.com/seanblong/repoinsight/internal/config"
	"github.com/seanblong/repoinsight/internal/server"
	"github.com/spf13/pflag"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("repoinsight-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger
	logger.Info().Str("provider", cfg.Provider).Str("store", cfg.Store).Str("log_level", cfg.LogLevel).Msg("starting repoinsight api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize analysis service")
	}
	defer a.Close()

	srv := server.New(a.Service, a.Store)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: srv.Handler(logger)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}

	logger.Info().Msg("waiting for running analyses")
	srv.Wait()
}
