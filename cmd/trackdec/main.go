// SPDX-License-Identifier: EPL-2.0

// Command trackdec probes MP3 files, decodes them to WAV and joins
// several tracks into one gapless WAV file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "trackdec:", err)
		stop()
		os.Exit(1)
	}
}
