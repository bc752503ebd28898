// SPDX-License-Identifier: EPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
	"github.com/ik5/gapless/metrics"
	"github.com/ik5/gapless/pipeline"
)

// DefaultReplyBuffer is the capacity of the reply channel.
const DefaultReplyBuffer = 16

// nestedBuffer is the capacity of the channel a replacement session
// reports on.
const nestedBuffer = 4

// Options configure a Session. Pool and Registry are required.
type Options struct {
	Pool     *audio.Pool
	Registry *audio.Registry

	// DstRate and DstChannels default to the format of each track.
	DstRate     int
	DstChannels int
	BufferTime  time.Duration
	// Effects are instantiated for every loaded track.
	Effects []audio.EffectSpec

	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	ReplyBuffer int
}

func (o Options) validate() error {
	if o.Pool == nil || o.Registry == nil {
		return fmt.Errorf("session needs a pool and a registry: %w", audio.ErrInvalidConfig)
	}
	if o.DstRate < 0 || o.BufferTime < 0 || o.ReplyBuffer < 0 {
		return fmt.Errorf("negative rate, buffer time or reply buffer: %w", audio.ErrInvalidConfig)
	}
	if o.DstChannels < 0 || o.DstChannels > audio.MaxMixerChannels {
		return fmt.Errorf("%d output channels: %w", o.DstChannels, audio.ErrChannelCount)
	}
	if _, err := audio.BuildEffects(o.Effects); err != nil {
		return err
	}
	return nil
}

// Session decodes one track at a time on its own goroutine. Requests are
// queued by Submit and answered on Replies in admission order, except for
// no-delay requests which are answered at once.
type Session struct {
	id      uuid.UUID
	opts    Options
	base    *slog.Logger
	logger  *slog.Logger
	metrics *metrics.Metrics
	parent  *Session

	mtx         sync.Mutex
	queue       queue
	closed      bool
	epoch       context.Context
	cancelEpoch context.CancelFunc

	root       context.Context
	cancelRoot context.CancelFunc

	wake    chan struct{}
	replies chan Message
	nested  chan envelope

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	destroyed    atomic.Bool
	keepPipeline atomic.Bool
	replState    atomic.Int32
	// lastRepl is the most recent nested session.
	lastRepl atomic.Pointer[Session]

	// Owned by the actor goroutine.
	pipe *pipeline.Pipeline
	repl *replacement
	// kept is the pipeline handed to the parent after the actor exited.
	kept *pipeline.Pipeline
}

// New starts a session. It is idle until a LoadBlob arrives.
func New(opts Options) (*Session, error) {
	return newSession(opts, nil)
}

func newSession(opts Options, parent *Session) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.ReplyBuffer == 0 {
		opts.ReplyBuffer = DefaultReplyBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		id:      uuid.New(),
		opts:    opts,
		metrics: opts.Metrics,
		parent:  parent,
		wake:    make(chan struct{}, 1),
		replies: make(chan Message, opts.ReplyBuffer),
		nested:  make(chan envelope, nestedBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	s.base = opts.Logger.With("session_id", s.id.String())
	if parent != nil {
		s.base = s.base.With("parent_id", parent.id.String())
	}
	s.logger = s.base.With("component", "session")

	s.root, s.cancelRoot = context.WithCancel(context.Background())
	s.epoch, s.cancelEpoch = context.WithCancel(s.root)

	s.metrics.SessionCreated()
	go s.run()

	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

// Replies delivers the answers to submitted requests. It is closed when
// the session is torn down.
func (s *Session) Replies() <-chan Message { return s.replies }

// Done is closed once the session goroutine exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Destroyed() bool { return s.destroyed.Load() }

func (s *Session) ReplacementState() ReplacementState {
	return ReplacementState(s.replState.Load())
}

func (s *Session) setReplacementState(st ReplacementState) {
	s.replState.Store(int32(st))
}

// Submit admits req. It fails with audio.ErrDestroyed once the session
// was torn down.
func (s *Session) Submit(req Request) error {
	switch req.(type) {
	case LoadBlob, Seek, FillBuffers, LoadReplacement, SourceEndedPing:
	default:
		return fmt.Errorf("%T: %w", req, ErrUnknownRequest)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed {
		return audio.ErrDestroyed
	}

	class := req.Class()
	s.metrics.RequestAdmitted(class.String())

	// A ping is answered here unless the reply buffer is full or earlier
	// pings still wait, in which case the actor answers it next.
	if ping, ok := req.(SourceEndedPing); ok && !s.queue.pingsPending() {
		select {
		case s.replies <- SourceEndedPong{RequestID: ping.RequestID}:
			return nil
		default:
		}
	}

	if class == ClassObsoleting {
		s.bumpEpochLocked()
	}
	if dropped := s.queue.admit(req); dropped > 0 {
		s.logger.Debug("pending requests dropped",
			"class", class.String(),
			"request", fmt.Sprintf("%T", req),
			"dropped", dropped,
			"pending", s.queue.len())
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// bumpEpochLocked cancels the work in flight.
func (s *Session) bumpEpochLocked() {
	s.cancelEpoch()
	s.epoch, s.cancelEpoch = context.WithCancel(s.root)
}

func (s *Session) next() (Request, context.Context, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	req, ok := s.queue.pop()
	return req, s.epoch, ok
}

func (s *Session) dropQueuedFills() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.queue.dropFills()
}

func (s *Session) run() {
	defer s.exit()

	for {
		select {
		case <-s.stop:
			return
		case env := <-s.nested:
			s.handleNested(env)
			continue
		default:
		}

		if req, ctx, ok := s.next(); ok {
			if !s.handle(ctx, req) {
				return
			}
			continue
		}

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case env := <-s.nested:
			s.handleNested(env)
		}
	}
}

// handle runs one request and reports whether the session survives it.
func (s *Session) handle(ctx context.Context, req Request) bool {
	switch r := req.(type) {
	case LoadBlob:
		return s.loadBlob(ctx, r)
	case Seek:
		return s.seek(ctx, r)
	case FillBuffers:
		return s.fillBuffers(ctx, r)
	case LoadReplacement:
		s.loadReplacement(ctx, r)
	case SourceEndedPing:
		s.reply(SourceEndedPong{RequestID: r.RequestID})
	}
	return true
}

func (s *Session) loadBlob(ctx context.Context, r LoadBlob) bool {
	s.abortReplacement("load")
	s.closePipeline()

	if r.Source == nil {
		s.reply(newError(r.RequestID, fmt.Errorf("load without a source: %w", audio.ErrInvalidConfig)))
		return true
	}

	p, err := s.openPipeline(ctx, r)
	if err != nil {
		return s.fail(ctx, r.RequestID, err, false)
	}
	if ctx.Err() != nil {
		p.Close()
		s.logger.Debug("load abandoned", "request_id", r.RequestID)
		return true
	}

	s.pipe = p
	meta := p.Meta()
	s.logger.Info("blob loaded",
		"request_id", r.RequestID,
		"source", r.Source.Name(),
		"codec", p.Codec().Name,
		"sample_rate", meta.SampleRate,
		"channels", meta.Channels,
		"duration", meta.Duration,
		"frames", meta.Frames)

	s.reply(BlobLoaded{RequestID: r.RequestID, Meta: meta})
	return true
}

func (s *Session) openPipeline(ctx context.Context, r LoadBlob) (*pipeline.Pipeline, error) {
	codec, err := s.resolveCodec(ctx, r.Source, r.Codec)
	if err != nil {
		return nil, err
	}

	view := fileview.NewView(r.Source)
	meta, err := s.opts.Registry.Demux(ctx, codec, view)
	if err != nil {
		return nil, err
	}

	effects, err := audio.BuildEffects(s.opts.Effects)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(pipeline.Config{
		Pool:        s.opts.Pool,
		Codec:       codec,
		Meta:        meta,
		View:        view,
		DstRate:     s.opts.DstRate,
		DstChannels: s.opts.DstChannels,
		BufferTime:  s.opts.BufferTime,
		Effects:     effects,
		Logger:      s.base,
	})
	if err != nil {
		return nil, err
	}

	if r.SeekTimeHint > 0 {
		if _, err := p.Seek(ctx, r.SeekTimeHint); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

func (s *Session) resolveCodec(ctx context.Context, src fileview.Source, name string) (audio.Codec, error) {
	if name == "" {
		return s.opts.Registry.Detect(ctx, src)
	}
	c, ok := s.opts.Registry.Get(name)
	if !ok {
		return audio.Codec{}, fmt.Errorf("%s: %w", name, audio.ErrCodecNotSupported)
	}
	return c, nil
}

func (s *Session) seek(ctx context.Context, r Seek) bool {
	s.abortReplacement("seek")

	if s.pipe == nil {
		s.reply(newError(r.RequestID, audio.ErrNotLoaded))
		return true
	}

	base, err := s.pipe.Seek(ctx, r.Time)
	if err != nil {
		return s.fail(ctx, r.RequestID, err, true)
	}
	res, err := s.pipe.FillBuffers(ctx, r.Count)
	if err != nil {
		return s.fail(ctx, r.RequestID, err, true)
	}
	if ctx.Err() != nil {
		s.discard(res, "seek")
		return true
	}

	if n := s.dropQueuedFills(); n > 0 {
		s.logger.Debug("queued fills dropped after seek", "dropped", n)
	}

	s.reply(Seeked{
		RequestID:        r.RequestID,
		BaseTime:         base,
		Count:            len(res.Buffers),
		ChannelCount:     s.pipe.Channels(),
		Buffers:          res.Buffers,
		TrackEndingIndex: res.TrackEndingIndex,
		IsUserSeek:       r.IsUserSeek,
	})
	return true
}

func (s *Session) fillBuffers(ctx context.Context, r FillBuffers) bool {
	if s.pipe == nil {
		s.reply(newError(0, audio.ErrNotLoaded))
		return true
	}
	if s.pipe.Ended() {
		s.reply(BuffersFilled{ChannelCount: s.pipe.Channels(), TrackEndingIndex: -1})
		return true
	}

	res, err := s.pipe.FillBuffers(ctx, r.Count)
	if err != nil {
		return s.fail(ctx, 0, err, true)
	}
	if ctx.Err() != nil {
		s.discard(res, "fill")
		return true
	}

	s.reply(BuffersFilled{
		ChannelCount:     s.pipe.Channels(),
		Count:            len(res.Buffers),
		Buffers:          res.Buffers,
		TrackEndingIndex: res.TrackEndingIndex,
	})
	return true
}

// discard drops a result that an obsoleting request overtook.
func (s *Session) discard(res pipeline.Result, op string) {
	s.logger.Debug("result obsoleted", "op", op, "buffers", len(res.Buffers))
	s.metrics.ReplyDropped("obsoleted")
	if err := res.Release(); err != nil {
		s.logger.Warn("releasing obsoleted buffers", "error", err)
	}
}

// fail reports err for request id. Abandoned work is dropped silently. It
// returns false when err ends the session, which only fill and seek
// errors may do.
func (s *Session) fail(ctx context.Context, id int64, err error, mayEnd bool) bool {
	if errors.Is(err, pipeline.ErrAbandoned) || ctx.Err() != nil {
		s.logger.Debug("request abandoned", "request_id", id, "error", err)
		return true
	}

	kind := errorKind(err)
	s.metrics.DecodeError(kind)

	terminal := mayEnd && (errors.Is(err, audio.ErrIO) || errors.Is(err, audio.ErrInvalidFrame))
	if terminal {
		s.logger.Error("session failed", "request_id", id, "kind", kind, "error", err)
	} else {
		s.logger.Warn("request failed", "request_id", id, "kind", kind, "error", err)
	}

	s.reply(newError(id, err))
	return !terminal
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, audio.ErrIO):
		return "io"
	case errors.Is(err, audio.ErrInvalidFrame):
		return "invalid_frame"
	case errors.Is(err, audio.ErrCodecNotSupported):
		return "codec_not_supported"
	case errors.Is(err, audio.ErrNotLoaded):
		return "not_loaded"
	case errors.Is(err, audio.ErrDestroyed):
		return "destroyed"
	default:
		return "other"
	}
}

// reply hands msg to the receiver: the reply channel, or the parent when
// this is a replacement session.
func (s *Session) reply(msg Message) {
	if s.parent != nil {
		select {
		case s.parent.nested <- envelope{from: s, msg: msg}:
			return
		case <-s.stop:
		case <-s.parent.stop:
		}
	} else {
		select {
		case s.replies <- msg:
			s.metrics.BuffersEmitted(len(Buffers(msg)))
			return
		case <-s.stop:
		}
	}
	s.drop(msg, "destroyed")
}

func (s *Session) drop(msg Message, reason string) {
	s.metrics.ReplyDropped(reason)
	if err := Release(msg); err != nil {
		s.logger.Warn("releasing dropped reply", "reason", reason, "error", err)
	}
}

func (s *Session) closePipeline() {
	if s.pipe != nil {
		s.pipe.Close()
		s.pipe = nil
	}
}

// Destroy stops the session, waits for its goroutine and returns every
// pool entry it holds, including the buffers of undelivered replies. It
// is safe to call more than once and from any goroutine.
func (s *Session) Destroy() {
	s.shutdown(false)
}

// detach stops the session and returns its pipeline instead of closing
// it.
func (s *Session) detach() *pipeline.Pipeline {
	return s.shutdown(true)
}

func (s *Session) shutdown(keep bool) *pipeline.Pipeline {
	s.stopOnce.Do(func() {
		s.keepPipeline.Store(keep)
		close(s.stop)
		s.cancelRoot()
	})
	<-s.done

	for msg := range s.replies {
		s.drop(msg, "destroyed")
	}
	if !keep {
		return nil
	}
	return s.kept
}

func (s *Session) exit() {
	s.mtx.Lock()
	s.closed = true
	s.queue.reset()
	s.cancelEpoch()
	s.mtx.Unlock()
	s.cancelRoot()

	s.abortReplacement("destroyed")
	s.drainNested()

	if s.pipe != nil {
		if s.keepPipeline.Load() {
			s.kept = s.pipe
		} else {
			s.pipe.Close()
		}
		s.pipe = nil
	}

	s.destroyed.Store(true)

	s.mtx.Lock()
	close(s.replies)
	s.mtx.Unlock()

	s.metrics.SessionDestroyed()
	s.logger.Debug("session destroyed")
	close(s.done)
}

func (s *Session) drainNested() {
	for {
		select {
		case env := <-s.nested:
			s.drop(env.msg, "destroyed")
		default:
			return
		}
	}
}
