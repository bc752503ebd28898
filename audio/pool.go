// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"log/slog"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/samber/lo"
)

// DefaultPoolCeiling is the number of decoder or resampler entries per
// key a pool creates before it reports a probable leak. PCM buffers are
// held by callers in varying numbers and have no ceiling.
const DefaultPoolCeiling = 6

// Kind groups pool entries by the pipeline stage that uses them.
type Kind int

const (
	KindDecoder Kind = iota
	KindResampler
	KindPCM
)

func (k Kind) String() string {
	switch k {
	case KindDecoder:
		return "decoder"
	case KindResampler:
		return "resampler"
	case KindPCM:
		return "pcm"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key identifies a free list: entries with equal keys are interchangeable.
type Key struct {
	Kind  Kind
	Class string
}

func (k Key) String() string { return k.Kind.String() + "/" + k.Class }

// PCMKey is the key of interleaved float32 buffers of the given shape.
func PCMKey(channels, frames int) Key {
	return Key{Kind: KindPCM, Class: fmt.Sprintf("%dx%d", channels, frames)}
}

// Resetter is implemented by pooled values that must be cleared before reuse.
type Resetter interface {
	Reset()
}

// PoolObserver receives pool events, typically for metrics.
type PoolObserver interface {
	Allocated(key Key)
	Reused(key Key)
	Released(key Key)
	LeakSuspected(key Key, created int)
}

// PoolStats is a point-in-time view of a pool.
type PoolStats struct {
	Created     int
	Reused      int
	Outstanding int
	Free        int
	ByKind      map[Kind]int
}

// Handle is a checked-out pool entry. It belongs to exactly one holder
// until Release.
type Handle struct {
	pool  *Pool
	key   Key
	value any
	out   bool
}

func (h *Handle) Key() Key   { return h.key }
func (h *Handle) Value() any { return h.value }

// Release returns the entry to its free list. Releasing twice is an error.
func (h *Handle) Release() error {
	return h.pool.release(h)
}

// Pool recycles decoder contexts, resamplers and PCM buffers across
// sessions. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	free        map[Key][]*Handle
	created     map[Key]int
	outByKind   map[Kind]int
	outstanding int
	reused      int

	ceiling  int
	logger   *slog.Logger
	observer PoolObserver
}

type PoolOption func(*Pool)

func WithCeiling(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.ceiling = n
		}
	}
}

func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithObserver(o PoolObserver) PoolOption {
	return func(p *Pool) { p.observer = o }
}

func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		free:      make(map[Key][]*Handle),
		created:   make(map[Key]int),
		outByKind: make(map[Kind]int),
		ceiling:   DefaultPoolCeiling,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pool")

	return p
}

// Get checks out an entry for key, creating one with newFn when the free
// list is empty.
func (p *Pool) Get(key Key, newFn func() (any, error)) (*Handle, error) {
	p.mu.Lock()
	if list := p.free[key]; len(list) > 0 {
		h := list[len(list)-1]
		p.free[key] = list[:len(list)-1]
		h.out = true
		p.outstanding++
		p.outByKind[key.Kind]++
		p.reused++
		p.mu.Unlock()

		if p.observer != nil {
			p.observer.Reused(key)
		}
		return h, nil
	}
	p.mu.Unlock()

	v, err := newFn()
	if err != nil {
		return nil, fmt.Errorf("allocating %s: %w", key, err)
	}

	h := &Handle{pool: p, key: key, value: v, out: true}

	p.mu.Lock()
	p.created[key]++
	created := p.created[key]
	p.outstanding++
	p.outByKind[key.Kind]++
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.Allocated(key)
	}
	if key.Kind != KindPCM && created > p.ceiling {
		p.logger.Warn("probable buffer pool leak",
			"key", key.String(),
			"created", created,
			"ceiling", p.ceiling)
		if p.observer != nil {
			p.observer.LeakSuspected(key, created)
		}
	}

	return h, nil
}

// GetPCM checks out an interleaved float32 buffer of channels*frames
// samples tagged with sampleRate.
func (p *Pool) GetPCM(channels, frames, sampleRate int) (*Handle, error) {
	h, err := p.Get(PCMKey(channels, frames), func() (any, error) {
		return &goaudio.Float32Buffer{
			Format: &goaudio.Format{NumChannels: channels},
			Data:   make([]float32, channels*frames),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	h.value.(*goaudio.Float32Buffer).Format.SampleRate = sampleRate
	return h, nil
}

func (p *Pool) release(h *Handle) error {
	p.mu.Lock()
	if !h.out {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", h.key, ErrDoubleRelease)
	}
	h.out = false
	p.outstanding--
	p.outByKind[h.key.Kind]--
	p.mu.Unlock()

	if r, ok := h.value.(Resetter); ok {
		r.Reset()
	}

	p.mu.Lock()
	p.free[h.key] = append(p.free[h.key], h)
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.Released(h.key)
	}
	return nil
}

// Outstanding is the number of checked-out entries.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.outstanding
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	byKind := make(map[Kind]int, len(p.outByKind))
	for k, v := range p.outByKind {
		byKind[k] = v
	}

	return PoolStats{
		Created:     lo.Sum(lo.Values(p.created)),
		Reused:      p.reused,
		Outstanding: p.outstanding,
		Free:        lo.SumBy(lo.Values(p.free), func(l []*Handle) int { return len(l) }),
		ByKind:      byKind,
	}
}
