// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"math"
)

// Effect processes interleaved samples in place before channel mixing.
type Effect interface {
	Apply(samples []float32, channels, sampleRate int)
	// Reset clears any state carried between calls.
	Reset()
}

// EffectSpec configures one effect by name.
type EffectSpec struct {
	Name string  `mapstructure:"name"`
	Size float64 `mapstructure:"size"`
}

// BuildEffects instantiates specs. Specs that would not alter the signal
// are skipped.
func BuildEffects(specs []EffectSpec) ([]Effect, error) {
	var out []Effect
	for _, s := range specs {
		switch s.Name {
		case "gain":
			if s.Size != 1 {
				out = append(out, &Gain{Factor: float32(s.Size)})
			}
		case "noise-sharpening":
			if s.Size > 0 {
				out = append(out, &NoiseSharpening{Amount: float32(s.Size)})
			}
		default:
			return nil, fmt.Errorf("%q: %w", s.Name, ErrUnknownEffect)
		}
	}
	return out, nil
}

// Gain scales every sample.
type Gain struct {
	Factor float32
}

func (g *Gain) Apply(samples []float32, _, _ int) {
	for i := range samples {
		samples[i] *= g.Factor
	}
}

func (g *Gain) Reset() {}

// NoiseSharpening emphasizes the difference between consecutive samples
// of each channel: y[n] = x[n] + amount*(x[n]-x[n-1]), clamped to [-1, 1].
type NoiseSharpening struct {
	Amount float32

	prev []float32
}

func (n *NoiseSharpening) Apply(samples []float32, channels, _ int) {
	if len(n.prev) != channels {
		n.prev = make([]float32, channels)
	}

	for i := 0; i+channels <= len(samples); i += channels {
		for c := range channels {
			x := samples[i+c]
			y := x + n.Amount*(x-n.prev[c])
			n.prev[c] = x
			samples[i+c] = float32(math.Max(-1, math.Min(1, float64(y))))
		}
	}
}

func (n *NoiseSharpening) Reset() {
	clear(n.prev)
}
