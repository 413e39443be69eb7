// Package main is the entry point for the reverse-auction server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/reverse-auction/internal/auction"
	"github.com/vyrodovalexey/reverse-auction/internal/auth"
	"github.com/vyrodovalexey/reverse-auction/internal/config"
	"github.com/vyrodovalexey/reverse-auction/internal/handler"
	"github.com/vyrodovalexey/reverse-auction/internal/server"
	"github.com/vyrodovalexey/reverse-auction/internal/store"
)

// lifecycle is the part of *server.Server that serve drives.
type lifecycle interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.Bool("ws_enabled", cfg.WSEnabled),
		zap.String("auth_mode", cfg.AuthMode),
	)

	authenticator, err := auth.New(auth.Method(cfg.AuthMode), cfg.APIKeys, cfg.BasicAuthUsers)
	if err != nil {
		logger.Error("failed to create auctioneer guard", zap.Error(err))
		return 1
	}

	srv := newServer(cfg, logger, authenticator)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, srv, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}

// newServer assembles store, engine, event hub and metrics registry.
func newServer(cfg *config.Config, logger *zap.Logger, authenticator auth.Authenticator) *server.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engineOpts := []auction.Option{
		auction.WithMetrics(auction.NewMetrics(reg)),
	}
	var serverOpts []server.Option
	if cfg.MetricsEnabled {
		serverOpts = append(serverOpts, server.WithRegistry(reg))
	}
	if cfg.WSEnabled {
		hub := handler.NewEventHub(logger.Named("events"))
		engineOpts = append(engineOpts, auction.WithNotifier(hub))
		serverOpts = append(serverOpts, server.WithEventHub(hub))
	}

	engine := auction.NewEngine(store.NewMemoryStore(), logger.Named("auction"), engineOpts...)

	return server.New(cfg, logger, engine, authenticator, serverOpts...)
}

// serve runs srv until ctx is done or the listener fails, then shuts it
// down within timeout.
func serve(ctx context.Context, srv lifecycle, timeout time.Duration, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested", zap.Error(context.Cause(gctx)))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// initLogger builds a JSON zap logger at level, falling back to info.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
