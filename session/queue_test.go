// SPDX-License-Identifier: EPL-2.0

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(q *queue) []Request {
	var out []Request
	for {
		r, ok := q.pop()
		if !ok {
			return out
		}
		out = append(out, r)
	}
}

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()

	var q queue
	for i := 1; i <= 3; i++ {
		assert.Zero(t, q.admit(FillBuffers{Count: i}))
	}

	assert.Equal(t, []Request{FillBuffers{Count: 1}, FillBuffers{Count: 2}, FillBuffers{Count: 3}}, drain(&q))
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestQueue_ObsoletingReplacesPending(t *testing.T) {
	t.Parallel()

	var q queue
	q.admit(FillBuffers{Count: 1})
	q.admit(LoadReplacement{RequestID: 4})
	q.admit(FillBuffers{Count: 2})

	assert.Equal(t, 3, q.admit(Seek{RequestID: 5, Time: 1}))
	assert.Equal(t, 1, q.admit(LoadBlob{RequestID: 6}))
	q.admit(FillBuffers{Count: 3})

	assert.Equal(t, []Request{LoadBlob{RequestID: 6}, FillBuffers{Count: 3}}, drain(&q))
}

func TestQueue_PriorityGoesFirst(t *testing.T) {
	t.Parallel()

	var q queue
	q.admit(FillBuffers{Count: 1})
	q.admit(LoadReplacement{RequestID: 1})
	q.admit(FillBuffers{Count: 2})

	assert.Equal(t, 1, q.admit(LoadReplacement{RequestID: 2}))

	assert.Equal(t, []Request{
		LoadReplacement{RequestID: 2},
		FillBuffers{Count: 1},
		FillBuffers{Count: 2},
	}, drain(&q))
}

func TestQueue_PingsGoFirst(t *testing.T) {
	t.Parallel()

	var q queue
	q.admit(FillBuffers{Count: 1})
	assert.Zero(t, q.admit(SourceEndedPing{RequestID: 1}))
	assert.True(t, q.pingsPending())
	assert.Equal(t, 1, q.admit(Seek{RequestID: 2}), "only the fill is displaced")
	q.admit(SourceEndedPing{RequestID: 3})
	assert.Equal(t, 3, q.len())

	assert.Equal(t, []Request{
		SourceEndedPing{RequestID: 1},
		SourceEndedPing{RequestID: 3},
		Seek{RequestID: 2},
	}, drain(&q))
	assert.False(t, q.pingsPending())
}

func TestQueue_DropFills(t *testing.T) {
	t.Parallel()

	var q queue
	assert.Zero(t, q.dropFills())

	q.admit(FillBuffers{Count: 1})
	q.admit(LoadReplacement{RequestID: 1})
	q.admit(FillBuffers{Count: 2})

	assert.Equal(t, 2, q.dropFills())
	require.Equal(t, 1, q.len())
	assert.Equal(t, []Request{LoadReplacement{RequestID: 1}}, drain(&q))
}

func TestClass_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		req  Request
		want string
	}{
		{FillBuffers{}, "normal"},
		{SourceEndedPing{}, "no_delay"},
		{Seek{}, "obsoleting"},
		{LoadBlob{}, "obsoleting"},
		{LoadReplacement{}, "priority"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.req.Class().String(), "%T", tt.req)
	}
	assert.Equal(t, "unknown", Class(42).String())
}
