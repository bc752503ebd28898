// SPDX-License-Identifier: EPL-2.0

package session

import (
	"context"
	"fmt"

	"github.com/ik5/gapless/audio"
)

// ReplacementState tracks the preparation of the next track.
type ReplacementState int32

const (
	ReplacementIdle ReplacementState = iota
	// ReplacementLoading waits for the nested session to load the blob.
	ReplacementLoading
	// ReplacementSeeking waits for the first buffers of the nested session.
	ReplacementSeeking
	// ReplacementReady is the hand-off in progress.
	ReplacementReady
	// ReplacementSwapped means the last replacement drives the session.
	ReplacementSwapped
)

func (s ReplacementState) String() string {
	switch s {
	case ReplacementIdle:
		return "idle"
	case ReplacementLoading:
		return "loading"
	case ReplacementSeeking:
		return "seeking"
	case ReplacementReady:
		return "ready"
	case ReplacementSwapped:
		return "swapped"
	default:
		return fmt.Sprintf("ReplacementState(%d)", int32(s))
	}
}

// envelope carries a reply of a nested session to its parent.
type envelope struct {
	from *Session
	msg  Message
}

type replacement struct {
	req     LoadReplacement
	session *Session
	// epoch is the parent's epoch when the replacement started. Once it
	// is cancelled, replies of the nested session are obsolete.
	epoch context.Context
}

func (s *Session) loadReplacement(ctx context.Context, r LoadReplacement) {
	s.abortReplacement("replaced")

	if r.Source == nil {
		s.reply(newError(r.RequestID, fmt.Errorf("replacement without a source: %w", audio.ErrInvalidConfig)))
		return
	}

	child, err := newSession(s.opts, s)
	if err != nil {
		s.reply(newError(r.RequestID, err))
		return
	}

	s.repl = &replacement{req: r, session: child, epoch: ctx}
	s.lastRepl.Store(child)
	s.setReplacementState(ReplacementLoading)
	s.logger.Debug("loading replacement",
		"request_id", r.RequestID,
		"source", r.Source.Name(),
		"replacement_id", child.ID().String())

	err = child.Submit(LoadBlob{RequestID: r.RequestID, Source: r.Source, Codec: r.Codec})
	if err != nil {
		s.replacementFailed(err)
	}
}

// handleNested advances the replacement with a reply of a nested
// session. Replies of aborted sessions or earlier requests are released.
func (s *Session) handleNested(env envelope) {
	rp := s.repl
	id := requestID(env.msg)
	if rp == nil || env.from != rp.session || id != rp.req.RequestID {
		s.logger.Debug("stale replacement reply dropped",
			"request_id", id,
			"reply", fmt.Sprintf("%T", env.msg),
			"error", audio.ErrReplacementMismatch)
		s.drop(env.msg, "stale")
		return
	}
	// A Seek or LoadBlob admitted after the replacement started wins over
	// replies already on their way.
	if rp.epoch.Err() != nil {
		s.abortReplacement("obsoleted")
		s.drop(env.msg, "stale")
		return
	}

	switch m := env.msg.(type) {
	case BlobLoaded:
		s.setReplacementState(ReplacementSeeking)
		err := rp.session.Submit(Seek{RequestID: id, Count: rp.req.Count, Time: rp.req.SeekTime})
		if err != nil {
			s.replacementFailed(err)
		}

	case Seeked:
		s.setReplacementState(ReplacementReady)
		s.handOff(m)

	case Error:
		s.replacementFailed(m.Err)

	default:
		s.drop(env.msg, "stale")
	}
}

// handOff makes the replacement's pipeline the session's pipeline.
// Decoding state moves over as is, so the next fill continues the new
// track.
func (s *Session) handOff(m Seeked) {
	rp := s.repl
	s.repl = nil

	s.mtx.Lock()
	s.bumpEpochLocked()
	dropped := s.queue.dropFills()
	s.mtx.Unlock()

	p := rp.session.detach()
	if p == nil {
		s.setReplacementState(ReplacementIdle)
		s.drop(m, "destroyed")
		s.reply(newError(rp.req.RequestID, fmt.Errorf("replacement gone before hand-off: %w", audio.ErrDestroyed)))
		return
	}

	s.closePipeline()
	s.pipe = p
	s.setReplacementState(ReplacementSwapped)
	s.metrics.HandOffCompleted()

	s.logger.Info("replacement handed off",
		"request_id", rp.req.RequestID,
		"source", rp.req.Source.Name(),
		"base_time", m.BaseTime,
		"buffers", len(m.Buffers),
		"dropped_fills", dropped)

	s.reply(ReplacementLoaded{
		RequestID:        rp.req.RequestID,
		Meta:             p.Meta(),
		IsUserSeek:       m.IsUserSeek,
		GaplessPreload:   rp.req.GaplessPreload,
		BaseTime:         m.BaseTime,
		Count:            m.Count,
		ChannelCount:     m.ChannelCount,
		Buffers:          m.Buffers,
		TrackEndingIndex: m.TrackEndingIndex,
	})
}

// replacementFailed destroys the nested session and reports err under
// the replacement's request id. The current track is not affected.
func (s *Session) replacementFailed(err error) {
	rp := s.repl
	s.repl = nil
	rp.session.Destroy()
	s.setReplacementState(ReplacementIdle)

	s.metrics.DecodeError(errorKind(err))
	s.logger.Warn("replacement failed", "request_id", rp.req.RequestID, "error", err)
	s.reply(newError(rp.req.RequestID, err))
}

// abortReplacement destroys a replacement in preparation without a reply.
func (s *Session) abortReplacement(reason string) {
	if s.repl == nil {
		return
	}
	rp := s.repl
	s.repl = nil
	rp.session.Destroy()
	s.setReplacementState(ReplacementIdle)

	s.logger.Debug("replacement aborted", "request_id", rp.req.RequestID, "reason", reason)
}
