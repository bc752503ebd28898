// SPDX-License-Identifier: EPL-2.0

// Package session runs track sessions: one goroutine per session that
// owns a decoding pipeline and answers requests in order.
//
// Requests are queued by class. A SourceEndedPing is answered at once.
// Seek and LoadBlob cancel the work in flight and replace every pending
// request. A LoadReplacement replaces pending replacements and goes to
// the head of the queue. FillBuffers requests are appended.
//
// A LoadReplacement prepares the next track in a nested session that
// reports to its parent. Once the nested session has decoded its first
// buffers, its pipeline moves into the parent and the nested session is
// destroyed, so the next FillBuffers continues with the new track
// without a gap:
//
//	s, err := session.New(session.Options{Pool: pool, Registry: reg})
//	if err != nil {
//		return err
//	}
//	defer s.Destroy()
//
//	_ = s.Submit(session.LoadBlob{RequestID: 1, Source: src})
//	for msg := range s.Replies() {
//		switch m := msg.(type) {
//		case session.BlobLoaded:
//			_ = s.Submit(session.FillBuffers{Count: 4})
//		case session.BuffersFilled:
//			play(m.Buffers)
//			_ = session.Release(m)
//		}
//	}
//
// Buffers in replies belong to the receiver. Destroy releases whatever
// is still queued.
package session
