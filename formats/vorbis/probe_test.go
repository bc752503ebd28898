// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"testing"

	"github.com/ik5/gapless/fileview"
)

func TestProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   []byte
		ok     bool
		format string
	}{
		{"empty", nil, false, ""},
		{"mp3 frame", []byte{0xff, 0xfb, 0x90, 0x64, 0, 0, 0, 0}, false, ""},
		{"truncated ogg", []byte("OggS\x00\x02"), true, "ogg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info, ok := Probe(fileview.FromBytes(tt.name, tt.data))
			if ok != tt.ok {
				t.Fatalf("Probe() ok = %v, want %v", ok, tt.ok)
			}
			if info.Format != tt.format {
				t.Errorf("Probe() format = %q, want %q", info.Format, tt.format)
			}
		})
	}
}
