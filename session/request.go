// SPDX-License-Identifier: EPL-2.0

package session

import (
	"github.com/ik5/gapless/audio"
	"github.com/ik5/gapless/fileview"
)

// Class decides where an admitted request goes in the queue.
type Class int

const (
	// ClassNormal requests are appended.
	ClassNormal Class = iota
	// ClassNoDelay requests are answered without entering the queue.
	ClassNoDelay
	// ClassObsoleting requests cancel the work in flight and replace
	// everything pending.
	ClassObsoleting
	// ClassPriority requests replace pending requests of their own type
	// and go to the head of the queue.
	ClassPriority
)

func (c Class) String() string {
	switch c {
	case ClassNormal:
		return "normal"
	case ClassNoDelay:
		return "no_delay"
	case ClassObsoleting:
		return "obsoleting"
	case ClassPriority:
		return "priority"
	default:
		return "unknown"
	}
}

// Request is a message to a Session.
type Request interface {
	Class() Class
}

// LoadBlob opens Source and demuxes it. Codec names a registered codec;
// when empty the codec is detected from the source. A positive
// SeekTimeHint positions the track before the first fill.
type LoadBlob struct {
	RequestID    int64
	Source       fileview.Source
	Codec        string
	SeekTimeHint float64
}

// Seek repositions the track to Time seconds and decodes Count buffers
// from there.
type Seek struct {
	RequestID  int64
	Count      int
	Time       float64
	IsUserSeek bool
}

// FillBuffers decodes the next Count buffers.
type FillBuffers struct {
	Count int
}

// LoadReplacement prepares the next track in a nested session and swaps
// it in once its first Count buffers from SeekTime are decoded.
type LoadReplacement struct {
	RequestID      int64
	Source         fileview.Source
	Codec          string
	SeekTime       float64
	Count          int
	GaplessPreload bool
}

// SourceEndedPing asks for a SourceEndedPong. It overtakes queued work.
type SourceEndedPing struct {
	RequestID int64
}

func (LoadBlob) Class() Class        { return ClassObsoleting }
func (Seek) Class() Class            { return ClassObsoleting }
func (FillBuffers) Class() Class     { return ClassNormal }
func (LoadReplacement) Class() Class { return ClassPriority }
func (SourceEndedPing) Class() Class { return ClassNoDelay }

// Message is a reply of a Session. Buffers in a message belong to its
// receiver, which returns them with Release.
type Message interface {
	message()
}

type BlobLoaded struct {
	RequestID int64
	Meta      *audio.Metadata
}

// Seeked answers a Seek. BaseTime is the presentation time of the first
// buffer.
type Seeked struct {
	RequestID        int64
	BaseTime         float64
	Count            int
	ChannelCount     int
	Buffers          []*audio.BufferDescriptor
	TrackEndingIndex int
	IsUserSeek       bool
}

// BuffersFilled answers a FillBuffers. TrackEndingIndex is the index of
// the track's last buffer in Buffers, or -1.
type BuffersFilled struct {
	ChannelCount     int
	Count            int
	Buffers          []*audio.BufferDescriptor
	TrackEndingIndex int
}

// ReplacementLoaded reports that the replacement track now drives the
// session. Buffers are its first buffers from BaseTime.
type ReplacementLoaded struct {
	RequestID        int64
	Meta             *audio.Metadata
	IsUserSeek       bool
	GaplessPreload   bool
	BaseTime         float64
	Count            int
	ChannelCount     int
	Buffers          []*audio.BufferDescriptor
	TrackEndingIndex int
}

type SourceEndedPong struct {
	RequestID int64
}

// Error reports a failed request. RequestID is zero for FillBuffers.
type Error struct {
	RequestID int64
	Err       error
	Message   string
}

func (BlobLoaded) message()        {}
func (Seeked) message()            {}
func (BuffersFilled) message()     {}
func (ReplacementLoaded) message() {}
func (SourceEndedPong) message()   {}
func (Error) message()             {}

// Buffers returns the buffers carried by msg.
func Buffers(msg Message) []*audio.BufferDescriptor {
	switch m := msg.(type) {
	case Seeked:
		return m.Buffers
	case BuffersFilled:
		return m.Buffers
	case ReplacementLoaded:
		return m.Buffers
	default:
		return nil
	}
}

// Release returns the buffers carried by msg to their pool.
func Release(msg Message) error {
	return audio.ReleaseAll(Buffers(msg))
}

func requestID(msg Message) int64 {
	switch m := msg.(type) {
	case BlobLoaded:
		return m.RequestID
	case Seeked:
		return m.RequestID
	case ReplacementLoaded:
		return m.RequestID
	case SourceEndedPong:
		return m.RequestID
	case Error:
		return m.RequestID
	default:
		return 0
	}
}

func newError(id int64, err error) Error {
	return Error{RequestID: id, Err: err, Message: err.Error()}
}
