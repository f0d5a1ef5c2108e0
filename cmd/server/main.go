package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/pan-validator/internal/api"
	"github.com/ignite/pan-validator/internal/app"
	"github.com/ignite/pan-validator/internal/config"
	"github.com/ignite/pan-validator/internal/pkg/logger"
)

// checkPortAvailable fails fast when another process already holds the port.
func checkPortAvailable(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("port %d is already in use: %w", port, err)
	}
	return ln.Close()
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info("no config file, using defaults and environment", "path", path)
		return config.DefaultFromEnv(), nil
	}
	return config.LoadFromEnv(path)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		logger.Error("pre-flight check failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, os.Stdout)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var bucketHeader api.BucketHeader
	if a.S3 != nil {
		bucketHeader = a.S3
	}
	hc := api.NewHealthChecker(a.Postgres, a.Redis, bucketHeader, cfg.Report.S3Bucket)
	router := api.SetupRoutes(api.NewHandlers(a.Service, a.Source), hc, a.Registry, cfg.Server.AllowedOrigins)
	server := api.NewServer(router)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
