// SPDX-License-Identifier: EPL-2.0

package metrics

import (
	"testing"

	"github.com/ik5/gapless/audio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetrics(t *testing.T) *Metrics {
	t.Helper()

	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestPoolObserver(t *testing.T) {
	m := newMetrics(t)
	key := audio.Key{Kind: audio.KindDecoder, Class: "mp3"}

	m.Allocated(key)
	m.Allocated(key)
	m.Reused(key)
	m.Released(key)
	m.LeakSuspected(key, 7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.poolAllocations.WithLabelValues("decoder")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.poolReuses.WithLabelValues("decoder")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.poolReleases.WithLabelValues("decoder")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.poolLeaks.WithLabelValues("decoder")))
}

func TestPoolObserver_WiredIntoPool(t *testing.T) {
	m := newMetrics(t)
	pool := audio.NewPool(audio.WithObserver(m))

	h, err := pool.GetPCM(2, 16, 48000)
	require.NoError(t, err)
	require.NoError(t, h.Release())
	h, err = pool.GetPCM(2, 16, 48000)
	require.NoError(t, err)
	require.NoError(t, h.Release())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.poolAllocations.WithLabelValues("pcm")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.poolReuses.WithLabelValues("pcm")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.poolReleases.WithLabelValues("pcm")))
}

func TestSessionHooks(t *testing.T) {
	m := newMetrics(t)

	m.SessionCreated()
	m.SessionCreated()
	m.SessionDestroyed()
	m.RequestAdmitted("normal")
	m.RequestAdmitted("obsoleting")
	m.RequestAdmitted("normal")
	m.ReplyDropped("stale")
	m.BuffersEmitted(3)
	m.BuffersEmitted(0)
	m.HandOffCompleted()
	m.DecodeError("invalid_frame")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.sessionsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("normal")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("obsoleting")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.repliesDropped.WithLabelValues("stale")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.buffersEmitted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.handOffs))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.decodeErrors.WithLabelValues("invalid_frame")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	key := audio.Key{Kind: audio.KindPCM}

	assert.NotPanics(t, func() {
		m.Allocated(key)
		m.Reused(key)
		m.Released(key)
		m.LeakSuspected(key, 1)
		m.SessionCreated()
		m.SessionDestroyed()
		m.RequestAdmitted("normal")
		m.ReplyDropped("stale")
		m.BuffersEmitted(1)
		m.HandOffCompleted()
		m.DecodeError("io")
	})
}
