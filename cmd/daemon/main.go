// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/zmonvif/internal/config"
	"github.com/ManuGH/zmonvif/internal/daemon"
	"github.com/ManuGH/zmonvif/internal/health"
	xglog "github.com/ManuGH/zmonvif/internal/log"
	xnet "github.com/ManuGH/zmonvif/internal/platform/net"
	"github.com/ManuGH/zmonvif/internal/telemetry"
	"github.com/ManuGH/zmonvif/internal/version"
	"github.com/ManuGH/zmonvif/internal/zoneminder"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "zmonvif"

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Forward ONVIF camera motion events to ZoneMinder alarms",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML)")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	_ = root.MarkPersistentFlagRequired("config")

	root.AddCommand(newValidateCmd(opts))
	return root
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.NewLoader(opts.configPath, version.Version).Load()
	if err != nil {
		return cfg, err
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func run(ctx context.Context, opts *rootOptions) error {
	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version.Version})
	logger := xglog.WithComponent("daemon")

	cfg, err := loadConfig(opts)
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", opts.configPath).
			Msg("failed to load configuration")
		return err
	}

	xglog.Configure(xglog.Config{Level: cfg.Log.Level, Service: serviceName, Version: cfg.Version})
	logger = xglog.WithComponent("daemon")

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("config_path", opts.configPath).
		Msg("starting zmonvif")
	logger.Info().Msgf("→ ZoneMinder: %s (user: %s)", xnet.SanitizeURL(cfg.ZoneMinder.URL), cfg.ZoneMinder.Username)
	logger.Info().Msgf("→ Cameras: %d", len(cfg.Cameras))
	if cfg.ZoneMinder.InsecureTLS {
		logger.Warn().Str("security", "weak").Msg("→ TLS verification disabled for ZoneMinder")
	}
	if cfg.Metrics.ListenAddr != "" {
		logger.Info().Msgf("→ Ops endpoints: %s", cfg.Metrics.ListenAddr)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	zm, err := zoneminder.New(ctx, zoneminder.Options{
		BaseURL:     cfg.ZoneMinder.URL,
		Username:    cfg.ZoneMinder.Username,
		Password:    cfg.ZoneMinder.Password,
		Timeout:     cfg.ZoneMinder.Timeout,
		InsecureTLS: cfg.ZoneMinder.InsecureTLS,
		Retry: zoneminder.RetryPolicy{
			MaxRetries: cfg.ZoneMinder.GatewayTimeoutRetries,
			Delay:      cfg.ZoneMinder.GatewayTimeoutDelay,
		},
	})
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return fmt.Errorf("zoneminder: %w", err)
	}

	hm := health.NewManager(version.Version)
	mgr := daemon.NewManager(daemon.ServerConfig{ListenAddr: cfg.Metrics.ListenAddr}, daemon.NewOpsRouter(hm, promhttp.Handler()))
	// LIFO: the queue drains before spans are flushed.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("zoneminder.queue", zm.Wait)

	app, err := daemon.NewApp(daemon.Deps{
		Logger:  logger,
		Config:  cfg,
		Alarms:  zm,
		Session: zm.Session(),
		Health:  hm,
	}, mgr)
	if err != nil {
		return err
	}

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("daemon app failed")
		return err
	}
	logger.Info().Msg("zmonvif exiting")
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
