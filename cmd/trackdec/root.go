// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ik5/gapless"
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/config"
	"github.com/ik5/gapless/internal/logging"
	"github.com/ik5/gapless/metrics"
	"github.com/ik5/gapless/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share once the root command has loaded
// the configuration.
type app struct {
	cfgFile     string
	metricsAddr string

	newRegistry func(ttl time.Duration) *audio.Registry

	cfg     *config.Config
	log     *slog.Logger
	prom    *prometheus.Registry
	metrics *metrics.Metrics
}

func newApp() *app {
	return &app{newRegistry: gapless.DefaultRegistry}
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trackdec",
		Short:         "Gapless MP3 decoder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while decoding")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.initialize(cmd)
	}

	rootCmd.AddCommand(
		probeCommand(a),
		decodeCommand(a),
		gaplessCommand(a),
	)
	return rootCmd
}

func (a *app) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	a.prom = prometheus.NewRegistry()
	a.metrics, err = metrics.New(a.prom)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	return nil
}

func (a *app) registry() *audio.Registry {
	return a.newRegistry(a.cfg.MetadataCacheTTL)
}

func (a *app) sessionOptions() session.Options {
	return session.Options{
		Pool: audio.NewPool(
			audio.WithCeiling(a.cfg.PoolCeiling),
			audio.WithPoolLogger(a.log),
			audio.WithObserver(a.metrics),
		),
		Registry:    a.registry(),
		DstRate:     a.cfg.SampleRate,
		DstChannels: a.cfg.Channels,
		BufferTime:  a.cfg.BufferTime,
		Effects:     a.cfg.Effects,
		Logger:      a.log,
		Metrics:     a.metrics,
		ReplyBuffer: a.cfg.ReplyBuffer,
	}
}
