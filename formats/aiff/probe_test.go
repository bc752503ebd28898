// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/ik5/gapless/fileview"
)

func writeAIFF(t *testing.T, sampleRate, channels int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.aiff")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	enc := aiff.NewEncoder(f, sampleRate, 16, channels)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, 1000*channels),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestProbe(t *testing.T) {
	t.Parallel()

	data := writeAIFF(t, 22050, 2)

	info, ok := Probe(fileview.FromBytes("test.aiff", data))
	if !ok {
		t.Fatal("Probe() did not recognize AIFF")
	}
	if info.Format != "aiff" || info.SampleRate != 22050 || info.Channels != 2 {
		t.Errorf("Probe() = %+v", info)
	}
}

func TestInspect_NotAIFF(t *testing.T) {
	t.Parallel()

	_, err := Inspect(fileview.FromBytes("x", []byte("RIFF....WAVEfmt ")))
	if !errors.Is(err, ErrNotAiffFile) {
		t.Errorf("Inspect() error = %v, want ErrNotAiffFile", err)
	}
}
