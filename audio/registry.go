// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ik5/gapless/fileview"
	"github.com/patrickmn/go-cache"
)

// SniffLength is how many leading bytes are handed to Codec.Sniff.
const SniffLength = 4096

// Codec binds a codec name to its decoder constructor and collaborators.
type Codec struct {
	Name    string
	New     func(targetBufferFrames int) (Decoder, error)
	Demuxer Demuxer
	Locator FrameLocator
	// Sniff reports whether head looks like this codec's bitstream.
	Sniff func(head []byte) bool
}

// StreamInfo describes a container recognized by a Probe.
type StreamInfo struct {
	Format     string
	SampleRate int
	Channels   int
}

func (s StreamInfo) String() string {
	if s.SampleRate == 0 {
		return s.Format
	}
	return fmt.Sprintf("%s (%d Hz, %d ch)", s.Format, s.SampleRate, s.Channels)
}

// Probe identifies a container that has no registered codec, so that
// loading it can fail with a precise message.
type Probe func(src fileview.Source) (StreamInfo, bool)

// Registry resolves codec names and sniffs sources. It also caches demux
// results per source name and size.
type Registry struct {
	codecs map[string]Codec
	probes map[string]Probe
	meta   *cache.Cache

	mtx *sync.Mutex
}

// DefaultMetadataTTL is how long demux results stay cached.
const DefaultMetadataTTL = 10 * time.Minute

func NewRegistry() *Registry {
	return NewRegistryWithTTL(DefaultMetadataTTL)
}

func NewRegistryWithTTL(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	return &Registry{
		codecs: make(map[string]Codec),
		probes: make(map[string]Probe),
		meta:   cache.New(ttl, 2*ttl),
		mtx:    &sync.Mutex{},
	}
}

func (r *Registry) Register(c Codec) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.codecs[c.Name] = c
}

func (r *Registry) RegisterProbe(name string, p Probe) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.probes[name] = p
}

func (r *Registry) Get(name string) (Codec, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	c, ok := r.codecs[name]
	return c, ok
}

// Names lists the registered codecs in sorted order.
func (r *Registry) Names() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	names := make([]string, 0, len(r.codecs))
	for n := range r.codecs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Detect finds the codec of src from its leading bytes. When no codec
// matches it consults the probes and returns an ErrCodecNotSupported error
// naming the container.
func (r *Registry) Detect(ctx context.Context, src fileview.Source) (Codec, error) {
	head := make([]byte, min(int64(SniffLength), src.Size()))
	n, err := fileview.ReadAt(ctx, src, head, 0)
	if err != nil && n < len(head) {
		return Codec{}, fmt.Errorf("%w: %w", ErrIO, err)
	}

	for _, name := range r.Names() {
		c, _ := r.Get(name)
		if c.Sniff != nil && c.Sniff(head) {
			return c, nil
		}
	}

	r.mtx.Lock()
	names := make([]string, 0, len(r.probes))
	for k := range r.probes {
		names = append(names, k)
	}
	probes := make([]Probe, 0, len(names))
	sort.Strings(names)
	for _, k := range names {
		probes = append(probes, r.probes[k])
	}
	r.mtx.Unlock()

	for _, p := range probes {
		if info, ok := p(src); ok {
			return Codec{}, fmt.Errorf("%s: %w", info, ErrCodecNotSupported)
		}
	}

	return Codec{}, fmt.Errorf("%s: unrecognized format: %w", src.Name(), ErrCodecNotSupported)
}

func metadataKey(codec string, view *fileview.View) string {
	return codec + ":" + view.Name() + ":" + strconv.FormatInt(view.Size(), 10)
}

// Demux runs the codec's demuxer, reusing a cached result for the same
// source. A source the demuxer rejects yields ErrCodecNotSupported.
func (r *Registry) Demux(ctx context.Context, c Codec, view *fileview.View) (*Metadata, error) {
	key := metadataKey(c.Name, view)
	if v, ok := r.meta.Get(key); ok {
		return v.(*Metadata), nil
	}

	if c.Demuxer == nil {
		return nil, fmt.Errorf("%s: no demuxer: %w", c.Name, ErrCodecNotSupported)
	}

	meta, err := c.Demuxer.Demux(ctx, view)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("invalid %s file: %w", c.Name, ErrCodecNotSupported)
	}

	r.meta.Set(key, meta, cache.DefaultExpiration)
	return meta, nil
}

// ForgetMetadata drops cached metadata for a source.
func (r *Registry) ForgetMetadata(codec string, view *fileview.View) {
	r.meta.Delete(metadataKey(codec, view))
}
