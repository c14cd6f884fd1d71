package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/partline/internal/alert"
	"github.com/zulandar/partline/internal/api"
	"github.com/zulandar/partline/internal/auth"
	"github.com/zulandar/partline/internal/config"
	"github.com/zulandar/partline/internal/db"
	"github.com/zulandar/partline/internal/idempotency"
	"github.com/zulandar/partline/internal/logger"
	"github.com/zulandar/partline/internal/report"
	"github.com/zulandar/partline/internal/telemetry"
)

const serviceName = "partline"

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Partline HTTP API",
		Long:  "Migrates the schema, then serves the REST API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	if port > 0 {
		cfg.Server.Port = port
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	notifiers, err := buildNotifiers(cfg.Alerts)
	if err != nil {
		return err
	}
	dispatcher := alert.NewDispatcher(log, notifiers...)
	defer dispatcher.Wait()

	metrics := telemetry.NewMetrics()
	rec := newRecorder(cfg, gormDB, log, metrics.Hook(), dispatcher.Hook())

	idem, closeIdem, err := buildIdempotency(cfg.Idempotency)
	if err != nil {
		return err
	}
	defer closeIdem()

	if cfg.Reports.SnapshotSchedule != "" {
		sched, err := report.NewScheduler(gormDB, log, cfg.Reports.SnapshotSchedule, dispatcher.Sink())
		if err != nil {
			return err
		}
		go sched.Run(ctx)
	}

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, log, telemetry.TracingOpts{
			ServiceName: serviceName,
			Version:     Version,
			SampleRatio: cfg.Tracing.SampleRatio,
			Out:         cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	log.Info("starting partline",
		"version", Version,
		"driver", cfg.Database.Driver,
		"notifiers", dispatcher.Len(),
		"idempotency", cfg.Idempotency.Backend,
	)

	return api.Start(ctx, api.StartOpts{
		DB:          gormDB,
		Port:        cfg.Server.Port,
		Out:         cmd.OutOrStdout(),
		Log:         log,
		Auth:        auth.NewService(gormDB, cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute),
		Recorder:    rec,
		Idempotency: idem,
		Metrics:     metrics,
		CORSOrigins: cfg.Server.CORSOrigins,
		Tracing:     cfg.Tracing.Enabled,
		ServiceName: serviceName,
	})
}

// buildNotifiers returns a notifier for each configured chat platform.
func buildNotifiers(cfg config.AlertsConfig) ([]alert.Notifier, error) {
	var out []alert.Notifier
	if cfg.Slack.Enabled() {
		s, err := alert.NewSlack(alert.SlackOpts{BotToken: cfg.Slack.Token, ChannelID: cfg.Slack.Channel})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if cfg.Discord.Enabled() {
		d, err := alert.NewDiscord(alert.DiscordOpts{BotToken: cfg.Discord.Token, ChannelID: cfg.Discord.Channel})
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// buildIdempotency returns the configured key store, or nil for "none".
func buildIdempotency(cfg config.IdempotencyConfig) (idempotency.Store, func(), error) {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	switch cfg.Backend {
	case "none":
		return nil, func() {}, nil
	case "redis":
		rc := idempotency.DefaultRedisConfig(cfg.RedisAddr)
		rc.Database = cfg.RedisDB
		rc.TTL = ttl
		store, err := idempotency.NewRedisStore(rc)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return idempotency.NewMemoryStore(ttl), func() {}, nil
	}
}
