package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tgbridge/internal/bootstrap"
	"github.com/iudanet/tgbridge/internal/cleanup"
	"github.com/iudanet/tgbridge/internal/config"
	"github.com/iudanet/tgbridge/internal/initdata"
	"github.com/iudanet/tgbridge/internal/logger"
	"github.com/iudanet/tgbridge/internal/metrics"
	"github.com/iudanet/tgbridge/internal/server"
	"github.com/iudanet/tgbridge/internal/server/handlers"
	"github.com/iudanet/tgbridge/internal/server/middleware"
	"github.com/iudanet/tgbridge/internal/session"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tgbridge",
		Short:         "Telegram Mini App authentication bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./tgbridge.yaml)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}

	root.AddCommand(serve, version)
	return root
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(log)

	log.Info("Starting tgbridge",
		slog.String("version", Version),
		slog.String("directory_driver", cfg.Directory.Driver),
	)

	if cfg.Telegram.BotToken == "" {
		log.Warn("Telegram bot token is not set, auth endpoints will answer bot_token_not_set")
	}

	dir, err := bootstrap.OpenDirectory(ctx, cfg.Directory, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := dir.Close(); err != nil {
			log.Error("Failed to close directory", slog.Any("error", err))
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	if dir.Local != nil {
		scheduler, err := cleanup.New(log, dir.Local, cfg.Directory.CleanupSchedule)
		if err != nil {
			return err
		}
		scheduler.WithMetrics(m).Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	validator := initdata.NewValidator(cfg.Telegram.BotToken, cfg.Telegram.InitDataMaxAge)
	issuer := session.NewIssuer(log, validator, dir.Directory)

	router := &server.Router{
		Logger:   log,
		Telegram: handlers.NewTelegramHandler(log, validator, issuer).WithMetrics(m),
		Health:   handlers.NewHealthHandler(log, Version),
		Metrics:  m,
	}
	if cfg.RateLimit.Requests > 0 {
		router.Limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, log).
			WithForwardedHeaders(cfg.RateLimit.TrustForwarded)
		defer router.Limiter.Stop()
	}

	srv := server.New(server.Config{
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router.Handler(), log)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("tgbridge stopped")
	return nil
}

func printVersion() {
	fmt.Printf("tgbridge\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
