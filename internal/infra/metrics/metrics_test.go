package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveBarrier("timeout", 5*time.Second)
	m.ObserveBarrier("all_ready", 800*time.Millisecond)
	m.ObserveBarrier("all_ready", 300*time.Millisecond)
	m.ObserveCorrection("rate", "nudge_slow", 0.06)
	m.ObserveCorrection("seek", "seek_hard", -1.3)
	m.ObserveKindSwitch()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.barriers.WithLabelValues("all_ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.barriers.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.corrections.WithLabelValues("seek", "seek_hard")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.kindSwitch))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBarrier("timeout", time.Second)
		m.ObserveCorrection("rate", "snap", 1)
		m.ObserveKindSwitch()
	})
}
