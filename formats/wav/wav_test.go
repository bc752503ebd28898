// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/ik5/gapless/fileview"
)

// mp3WAV builds an MPEG Layer III WAVE file around payload.
func mp3WAV(sampleRate, channels, codecDelay, blockSize int, factSamples uint32, payload []byte) []byte {
	le16 := func(b []byte, v int) []byte { return binary.LittleEndian.AppendUint16(b, uint16(v)) }
	le32 := func(b []byte, v int) []byte { return binary.LittleEndian.AppendUint32(b, uint32(v)) }

	var fmtChunk []byte
	fmtChunk = le16(fmtChunk, FormatMPEGLayer3)
	fmtChunk = le16(fmtChunk, channels)
	fmtChunk = le32(fmtChunk, sampleRate)
	fmtChunk = le32(fmtChunk, 16000) // 128 kbit/s
	fmtChunk = le16(fmtChunk, 1)
	fmtChunk = le16(fmtChunk, 0)
	fmtChunk = le16(fmtChunk, 12) // cbSize
	fmtChunk = le16(fmtChunk, 1)  // wID
	fmtChunk = le32(fmtChunk, 0)  // fdwFlags
	fmtChunk = le16(fmtChunk, blockSize)
	fmtChunk = le16(fmtChunk, 1)
	fmtChunk = le16(fmtChunk, codecDelay)

	var body []byte
	body = append(body, "WAVE"...)
	body = append(body, "fmt "...)
	body = le32(body, len(fmtChunk))
	body = append(body, fmtChunk...)
	body = append(body, "fact"...)
	body = le32(body, 4)
	body = le32(body, int(factSamples))
	body = append(body, "data"...)
	body = le32(body, len(payload))
	body = append(body, payload...)

	out := append([]byte("RIFF"), binary.LittleEndian.AppendUint32(nil, uint32(len(body)))...)
	return append(out, body...)
}

func TestInspect_MP3InWAV(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 4000)
	file := mp3WAV(44100, 2, 1105, 417, 441000, payload)

	info, err := Inspect(fileview.FromBytes("a.wav", file), 0)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if info.AudioFormat != FormatMPEGLayer3 {
		t.Errorf("AudioFormat = %#x, want %#x", info.AudioFormat, FormatMPEGLayer3)
	}
	if info.SampleRate != 44100 || info.Channels != 2 {
		t.Errorf("got %d Hz, %d ch", info.SampleRate, info.Channels)
	}
	if info.ByteRate != 16000 {
		t.Errorf("ByteRate = %d, want 16000", info.ByteRate)
	}
	if info.CodecDelay != 1105 {
		t.Errorf("CodecDelay = %d, want 1105", info.CodecDelay)
	}
	if info.BlockSize != 417 {
		t.Errorf("BlockSize = %d, want 417", info.BlockSize)
	}
	if info.FactSamples != 441000 {
		t.Errorf("FactSamples = %d, want 441000", info.FactSamples)
	}

	wantStart := int64(len(file) - len(payload))
	if info.DataStart != wantStart || info.DataEnd != int64(len(file)) {
		t.Errorf("data = [%d, %d), want [%d, %d)", info.DataStart, info.DataEnd, wantStart, len(file))
	}
}

func TestInspect_AtOffset(t *testing.T) {
	t.Parallel()

	prefix := make([]byte, 100)
	file := append(prefix, mp3WAV(48000, 1, 576, 288, 0, make([]byte, 10))...)

	info, err := Inspect(fileview.FromBytes("b.wav", file), 100)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.DataStart != int64(len(file)-10) {
		t.Errorf("DataStart = %d, want %d", info.DataStart, len(file)-10)
	}
	if info.FactSamples != 0 {
		t.Errorf("FactSamples = %d, want 0", info.FactSamples)
	}
}

func TestInspect_NotWAV(t *testing.T) {
	t.Parallel()

	_, err := Inspect(fileview.FromBytes("x", []byte("definitely not a riff file at all")), 0)
	if !errors.Is(err, ErrNotWavFile) {
		t.Errorf("Inspect() error = %v, want ErrNotWavFile", err)
	}

	if _, ok := Probe(fileview.FromBytes("x", []byte("ID3"))); ok {
		t.Error("Probe() accepted non-WAV data")
	}
}

func TestWriteWAV16_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	samples := []int16{0, 100, -100, 200, -200, 32767}
	if err := WriteWAV16(f, 8000, 2, samples); err != nil {
		t.Fatalf("WriteWAV16() error = %v", err)
	}
	_ = f.Close()

	buf := readPCM(t, path)
	if buf.Format.SampleRate != 8000 || buf.Format.NumChannels != 2 {
		t.Errorf("format = %d Hz %d ch, want 8000 Hz 2 ch", buf.Format.SampleRate, buf.Format.NumChannels)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("read %d samples, want %d", len(buf.Data), len(samples))
	}
	for i, s := range samples {
		if buf.Data[i] != int(s) {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], s)
		}
	}
}

func TestWriter_Stream(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stream.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	w := NewWriter(f, 44100, 2)
	if err := w.Write([]float32{0.5, -0.5}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]float32{2, -2, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]float32{1}); !errors.Is(err, ErrUnsupportedWavLayout) {
		t.Errorf("ragged Write() error = %v, want ErrUnsupportedWavLayout", err)
	}
	if w.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", w.Frames())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	want := []int{16384, -16384, 32767, -32768, 0, 0}
	got := readPCM(t, path).Data
	if len(got) != len(want) {
		t.Fatalf("read %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	info, ok := Probe(fileview.FromBytes("stream.wav", raw))
	if !ok || info.Format != "wav/pcm" || info.SampleRate != 44100 {
		t.Errorf("Probe() = %v, %v", info, ok)
	}
}

func readPCM(t *testing.T, path string) *goaudio.IntBuffer {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error = %v", err)
	}
	return buf
}
