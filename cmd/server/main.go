// Package main - Entry point for the quotation server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"quote-engine/api"
	"quote-engine/internal/bootstrap"
	"quote-engine/internal/config"
	"quote-engine/internal/logging"
)

const version = "1.0.0"

func main() {
	cfgPath := flag.String("config", "quote-engine.json", "Config file")
	addr := flag.String("addr", "", "Server address (overrides config)")
	flag.Parse()

	if err := run(*cfgPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, addr string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	config.Set(cfg)

	logger, err := logging.Initialize(cfg.Logging)
	if err != nil {
		return err
	}
	defer logging.Sync()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	// Warm the cache; quotes answer 503 until a failing backend recovers
	if snap, err := app.Gateway.Snapshot(ctx); err != nil {
		logger.Warn("initial configuration load failed", zap.Error(err))
	} else {
		logger.Info("configuration loaded",
			zap.String("version", snap.Version),
			zap.Int("rules", len(snap.Rules)),
			zap.Int("rejected", len(snap.Rejected)))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(app.Engine, app.Gateway, version, logger).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("quotation server listening",
			zap.String("addr", srv.Addr),
			zap.String("backend", string(cfg.Gateway.Backend)),
			zap.String("version", version))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
