// Command walletauth-server serves the wallet authentication gateway over HTTP
// and, when configured, mirrors on-chain grants from Kafka.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	walletauth "github.com/MrEthical07/walletauth"
	"github.com/MrEthical07/walletauth/chainevents"
	"github.com/MrEthical07/walletauth/internal/httpapi"
	promexport "github.com/MrEthical07/walletauth/metrics/export/prometheus"
)

func main() {
	configPath := flag.String("config", "walletauth.yaml", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	client, closeRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	gw, err := walletauth.New().
		WithConfig(cfg.Gateway).
		WithRedis(client).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}
	defer gw.Close()

	api := httpapi.New(httpapi.Options{
		Gateway:     gw,
		Logger:      logger,
		Metrics:     promexport.NewCollector(gw).Handler(),
		SignInRPS:   cfg.Server.SignInRPS,
		SignInBurst: cfg.Server.SignInBurst,
		HealthTTL:   cfg.Server.HealthTTL,
		TrustProxy:  cfg.Server.TrustProxy,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.ChainEvents.Topic != "" {
		source, err := chainevents.NewKafkaSource(cfg.ChainEvents, logger)
		if err != nil {
			return fmt.Errorf("chain events: %w", err)
		}
		defer source.Close()
		go func() {
			logger.Info("mirroring chain events", "topic", cfg.ChainEvents.Topic, "group_id", cfg.ChainEvents.GroupID)
			if err := source.Run(ctx, chainevents.NewApplier(gw, logger)); err != nil {
				errCh <- fmt.Errorf("chain events: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("component failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	return runErr
}

func openRedis(cfg redisConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("starting embedded redis: %w", err)
		}
		logger.Warn("using embedded redis; data is lost on exit", "addr", mr.Addr())
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("connected to redis", "addrs", cfg.Addrs)
	return client, func() { _ = client.Close() }, nil
}

func setupLogger(cfg loggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
