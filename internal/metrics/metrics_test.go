package metrics_test

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/metrics"
	"github.com/arung-agamani/soundhost/internal/sink"
)

func gatherValue(t *testing.T, m *metrics.Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.GetGauge() != nil {
				return metric.GetGauge().GetValue()
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetrics_ObserveSinkStateSetsExactlyOneLabel(t *testing.T) {
	m := metrics.New()
	m.ObserveSinkState(sink.Playing)

	assert.Equal(t, 1.0, gatherValue(t, m, "soundhost_sink_state", map[string]string{"state": "playing"}))
	assert.Equal(t, 0.0, gatherValue(t, m, "soundhost_sink_state", map[string]string{"state": "stopped"}))
	assert.Equal(t, 0.0, gatherValue(t, m, "soundhost_sink_state", map[string]string{"state": "paused"}))
}

func TestMetrics_ObserveAudioThreadUp(t *testing.T) {
	m := metrics.New()
	m.ObserveAudioThreadUp(true)
	assert.Equal(t, 1.0, gatherValue(t, m, "soundhost_sink_audio_thread_up", nil))

	m.ObserveAudioThreadUp(false)
	assert.Equal(t, 0.0, gatherValue(t, m, "soundhost_sink_audio_thread_up", nil))
}

func TestMetrics_ObserveRingOccupancy(t *testing.T) {
	m := metrics.New()
	m.ObserveRingOccupancy(4096)
	assert.Equal(t, 4096.0, gatherValue(t, m, "soundhost_streamer_ring_occupancy_bytes", nil))
}

func TestMetrics_ObserveEventIncrementsByKind(t *testing.T) {
	m := metrics.New()
	m.ObserveEvent(event.SongStarted)
	m.ObserveEvent(event.SongStarted)
	m.ObserveEvent(event.Paused)

	assert.Equal(t, 2.0, gatherValue(t, m, "soundhost_event_emitted_total", map[string]string{"kind": event.SongStarted.String()}))
	assert.Equal(t, 1.0, gatherValue(t, m, "soundhost_event_emitted_total", map[string]string{"kind": event.Paused.String()}))
}

func TestMetrics_ObservePluginLoadFailureIncrementsByReason(t *testing.T) {
	m := metrics.New()
	m.ObservePluginLoadFailure("open")
	m.ObservePluginLoadFailure("open")
	m.ObservePluginLoadFailure("register")

	assert.Equal(t, 2.0, gatherValue(t, m, "soundhost_plugin_load_failures_total", map[string]string{"reason": "open"}))
	assert.Equal(t, 1.0, gatherValue(t, m, "soundhost_plugin_load_failures_total", map[string]string{"reason": "register"}))
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveSinkState(sink.Stopped)
		m.ObserveAudioThreadUp(true)
		m.ObserveRingOccupancy(0)
		m.ObserveEvent(event.Stopped)
		m.ObservePluginLoadFailure("open")
		assert.Nil(t, m.Registry())
	})
}
