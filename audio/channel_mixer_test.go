// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"testing"
)

func TestChannelMixer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		out    int
		srcCh  int
		src    []float32
		expect []float32
	}{
		{"same layout", 2, 2, []float32{0.1, 0.2, 0.3, 0.4}, []float32{0.1, 0.2, 0.3, 0.4}},
		{"stereo to mono", 1, 2, []float32{0.2, 0.4, -1, 1}, []float32{0.3, 0}},
		{"quad to mono", 1, 4, []float32{1, 1, 0, 0}, []float32{0.5}},
		{"three to mono", 1, 3, []float32{0.3, 0.3, 0.3}, []float32{0.3}},
		{"mono to stereo", 2, 1, []float32{0.5, -0.5}, []float32{0.5, 0.5, -0.5, -0.5}},
		{"quad to stereo", 2, 4, []float32{0.1, 0.2, 0.4, 0.6}, []float32{0.1, 0.4}},
		{"stereo to quad", 4, 2, []float32{0.2, 0.4}, []float32{0.2, 0.4, 0.3, 0.3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := NewChannelMixer(tt.out)
			if err != nil {
				t.Fatalf("NewChannelMixer() error = %v", err)
			}

			dst := make([]float32, m.OutputLength(len(tt.src), tt.srcCh))
			frames, err := m.Mix(dst, tt.src, tt.srcCh)
			if err != nil {
				t.Fatalf("Mix() error = %v", err)
			}
			if frames*tt.out != len(tt.expect) {
				t.Fatalf("Mix() = %d frames, want %d", frames, len(tt.expect)/tt.out)
			}
			for i, want := range tt.expect {
				if diff := dst[i] - want; diff > 1e-6 || diff < -1e-6 {
					t.Errorf("dst[%d] = %v, want %v", i, dst[i], want)
				}
			}
		})
	}
}

func TestChannelMixer_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewChannelMixer(0); !errors.Is(err, ErrChannelCount) {
		t.Errorf("NewChannelMixer(0) error = %v, want ErrChannelCount", err)
	}
	if _, err := NewChannelMixer(MaxMixerChannels + 1); !errors.Is(err, ErrChannelCount) {
		t.Errorf("NewChannelMixer(6) error = %v, want ErrChannelCount", err)
	}

	m, _ := NewChannelMixer(2)
	if _, err := m.Mix(make([]float32, 8), make([]float32, 4), 6); !errors.Is(err, ErrChannelCount) {
		t.Errorf("6 input channels: error = %v, want ErrChannelCount", err)
	}
	if _, err := m.Mix(make([]float32, 8), make([]float32, 3), 2); !errors.Is(err, ErrInvalidDstSize) {
		t.Errorf("ragged input: error = %v, want ErrInvalidDstSize", err)
	}
	if _, err := m.Mix(make([]float32, 2), make([]float32, 4), 1); !errors.Is(err, ErrDstTooSmall) {
		t.Errorf("short dst: error = %v, want ErrDstTooSmall", err)
	}
}
