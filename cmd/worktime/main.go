/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/cache"
	"github.com/friendsincode/worktime/internal/config"
	"github.com/friendsincode/worktime/internal/db"
	"github.com/friendsincode/worktime/internal/logbuffer"
	"github.com/friendsincode/worktime/internal/logging"
	"github.com/friendsincode/worktime/internal/server"
)

const logBufferCapacity = 2000

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "worktime",
	Short:         "Worktime - business-time scheduling service",
	Long:          "Worktime estimates task completion by moving instants through working hours, weekends and holidays.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Worktime server",
	Long:  "Start the HTTP API server and its background workers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logBuf := logbuffer.New(logBufferCapacity)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, nil))
	logger.Info().Msg("Worktime starting")

	srv, err := server.New(cfg, logBuf, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		logger.Info().Msg("shutting down gracefully...")
	case runErr = <-serveErr:
		logger.Error().Err(runErr).Msg("http server error")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Worktime stopped")
	return runErr
}

// initDatabase connects and migrates the service database for one-shot commands.
func initDatabase() (*gorm.DB, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

// initCache returns the shared cache when enabled so CLI writes invalidate
// what running servers hold.
func initCache() *cache.Cache {
	if !cfg.CacheEnabled {
		return nil
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = cfg.RedisAddr
	cacheCfg.RedisPassword = cfg.RedisPassword
	cacheCfg.RedisDB = cfg.RedisDB
	c, err := cache.New(cacheCfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("cache unavailable; running servers may serve stale settings until TTL expiry")
		return nil
	}
	return c
}
