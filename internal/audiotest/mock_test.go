// SPDX-License-Identifier: EPL-2.0

package audiotest

import "testing"

func TestSignalRead(t *testing.T) {
	t.Parallel()

	s := NewChannelIndex(8000, 3, 5)
	buf := make([]float32, 7) // room for two frames

	if n := s.Read(buf); n != 2 {
		t.Fatalf("Read = %d frames, want 2", n)
	}
	if buf[0] != 0 || buf[1] != 1 || buf[2] != 2 {
		t.Errorf("first frame = %v, want [0 1 2]", buf[:3])
	}
	if s.Remaining() != 3 {
		t.Errorf("Remaining = %d, want 3", s.Remaining())
	}

	rest := s.All()
	if len(rest) != 9 {
		t.Errorf("All returned %d samples, want 9", len(rest))
	}

	s.Reset()
	if s.Remaining() != 5 {
		t.Errorf("Remaining after Reset = %d, want 5", s.Remaining())
	}
}
