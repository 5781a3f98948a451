package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/guided-traffic/secret-cipher/internal/api"
	"github.com/guided-traffic/secret-cipher/internal/monitoring"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the cipher and vault over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logrus.WithFields(logrus.Fields{
		"version":   version,
		"commit":    commit,
		"buildTime": buildTime,
	}).Info("Secret Cipher build information")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := newCipher(cfg)
	if err != nil {
		return err
	}
	monitoring.SetServerInfo(version, commit, buildTime, c.Engine())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v, records, err := newVault(ctx, cfg, c)
	if err != nil {
		return err
	}
	if v == nil {
		logrus.Warn("No secret backend configured; /v1/secrets is disabled")
	} else if cfg.KeyStore.Type == "memory" {
		logrus.Warn("Vault keys are held in memory and are lost on restart")
	}

	server := api.NewServer(cfg, c, v, api.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime})
	if records != nil {
		server.AddHealthCheck("backend", records.Ping)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	if cfg.Monitoring.Enabled {
		metrics := monitoring.NewServer(&monitoring.Config{
			BindAddress: cfg.Monitoring.BindAddress,
			MetricsPath: cfg.Monitoring.MetricsPath,
		})
		g.Go(func() error {
			return metrics.Start(ctx)
		})
	}

	err = g.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		logrus.Info("Server stopped")
		return nil
	}
	return err
}
