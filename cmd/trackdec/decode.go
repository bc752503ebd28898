// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ik5/gapless"
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/ik5/gapless/formats/wav"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func decodeCommand(a *app) *cobra.Command {
	var (
		out  string
		seek float64
	)

	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Decode a track into a 16-bit WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd, out, seek, args)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "WAV file to write")
	cmd.Flags().Float64Var(&seek, "seek", 0, "start position in seconds")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func gaplessCommand(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "gapless FILE FILE...",
		Short: "Join tracks into one WAV file without gaps",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd, out, 0, args)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "WAV file to write")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// render streams paths into the WAV file out, serving metrics alongside
// when an address is configured.
func (a *app) render(cmd *cobra.Command, out string, seek float64, paths []string) error {
	sources := make([]fileview.Source, 0, len(paths))
	for _, p := range paths {
		src, err := fileview.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		sources = append(sources, src)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.metricsAddr != "" {
		srv := &http.Server{
			Addr:              a.metricsAddr,
			Handler:           promhttp.HandlerFor(a.prom, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: shutdownTimeout,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			return srv.Shutdown(sctx)
		})
	}

	w := wav.NewWriter(f, a.cfg.SampleRate, a.cfg.Channels)
	var res *gapless.Result
	g.Go(func() error {
		defer cancel()

		var err error
		res, err = gapless.Stream(gctx, w, a.sessionOptions(), seek, sources...)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	a.log.Info("decoded",
		"output", out,
		"tracks", len(res.Tracks),
		"frames", w.Frames(),
		"codecs", lo.Uniq(lo.Map(res.Tracks, func(m *audio.Metadata, _ int) string { return m.Codec })))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames at %d Hz, %d channels to %s\n",
		w.Frames(), a.cfg.SampleRate, a.cfg.Channels, out)
	return nil
}
