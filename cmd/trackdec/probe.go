// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"io"

	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func probeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE",
		Short: "Print the stream parameters of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := fileview.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			reg := a.registry()
			codec, err := reg.Detect(cmd.Context(), src)
			if err != nil {
				return err
			}
			meta, err := reg.Demux(cmd.Context(), codec, fileview.NewView(src))
			if err != nil {
				return err
			}

			printMetadata(cmd.OutOrStdout(), src.Name(), meta)
			return nil
		},
	}
}

func printMetadata(w io.Writer, name string, m *audio.Metadata) {
	fmt.Fprintf(w, "file:           %s\n", name)
	fmt.Fprintf(w, "codec:          %s\n", m.Codec)
	fmt.Fprintf(w, "sample rate:    %d Hz\n", m.SampleRate)
	fmt.Fprintf(w, "channels:       %d\n", m.Channels)
	fmt.Fprintf(w, "bit rate:       %d kbit/s %s\n", m.BitRate/1000, lo.Ternary(m.VBR, "vbr", "cbr"))
	fmt.Fprintf(w, "frames:         %d x %d\n", m.Frames, m.SamplesPerFrame)
	fmt.Fprintf(w, "duration:       %.3f s\n", m.Duration)
	fmt.Fprintf(w, "encoder delay:  %d\n", m.EncoderDelay)
	fmt.Fprintf(w, "encoder pad:    %d\n", m.EncoderPadding)
	fmt.Fprintf(w, "audio data:     %d-%d\n", m.DataStart, m.DataEnd)
	fmt.Fprintf(w, "seek table:     %s\n", lo.Ternary(len(m.TOC) > 0, "xing toc", lo.Ternary(m.SeekTable != nil && m.SeekTable.FromMetadata(), "vbri", "none")))
}
