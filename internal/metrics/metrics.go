// Package metrics exposes the host's Prometheus instrumentation. It has no
// opinion on transport (cmd/soundhost wires the registry's handler onto an
// HTTP mux); it only owns metric definitions and the update methods, which
// cmd/soundhost installs as hooks on the core packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/sink"
)

// Metrics bundles every collector the host registers. A nil *Metrics is
// valid everywhere it's accepted (every Observe* method is a guarded no-op),
// so wiring it in is optional.
type Metrics struct {
	reg *prometheus.Registry

	sinkState       *prometheus.GaugeVec
	audioThreadUp   prometheus.Gauge
	ringOccupancy   prometheus.Gauge
	eventsEmitted   *prometheus.CounterVec
	pluginLoadFails *prometheus.CounterVec
}

// New creates a fresh registry and every collector, registering them eagerly
// so /metrics is never empty before the first observation.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		sinkState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "soundhost",
			Subsystem: "sink",
			Name:      "state",
			Help:      "Current sink state (1 for the active state label, 0 otherwise).",
		}, []string{"state"}),
		audioThreadUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soundhost",
			Subsystem: "sink",
			Name:      "audio_thread_up",
			Help:      "1 if the sink's audio goroutine is currently running.",
		}),
		ringOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soundhost",
			Subsystem: "streamer",
			Name:      "ring_occupancy_bytes",
			Help:      "Bytes currently buffered in the streamer's decode ring.",
		}),
		eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundhost",
			Subsystem: "event",
			Name:      "emitted_total",
			Help:      "Events emitted on the bus, by kind.",
		}, []string{"kind"}),
		pluginLoadFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundhost",
			Subsystem: "plugin",
			Name:      "load_failures_total",
			Help:      "Plugin load failures, by reason.",
		}, []string{"reason"}),
	}

	m.reg.MustRegister(m.sinkState, m.audioThreadUp, m.ringOccupancy, m.eventsEmitted, m.pluginLoadFails)
	return m
}

// Registry returns the underlying prometheus.Registry for cmd/soundhost to
// mount behind an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveSinkState records the sink's current state, zeroing every other
// state label.
func (m *Metrics) ObserveSinkState(s sink.State) {
	if m == nil {
		return
	}
	for _, st := range []sink.State{sink.Stopped, sink.Paused, sink.Playing} {
		v := 0.0
		if st == s {
			v = 1.0
		}
		m.sinkState.WithLabelValues(st.String()).Set(v)
	}
}

// ObserveAudioThreadUp records whether the sink's audio goroutine is alive.
func (m *Metrics) ObserveAudioThreadUp(up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.audioThreadUp.Set(v)
}

// ObserveRingOccupancy records the streamer's decode ring occupancy in bytes.
func (m *Metrics) ObserveRingOccupancy(bytes int) {
	if m == nil {
		return
	}
	m.ringOccupancy.Set(float64(bytes))
}

// ObserveEvent increments the emitted-events counter for kind.
func (m *Metrics) ObserveEvent(kind event.Kind) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(kind.String()).Inc()
}

// ObservePluginLoadFailure increments the load-failure counter for reason.
func (m *Metrics) ObservePluginLoadFailure(reason string) {
	if m == nil {
		return
	}
	m.pluginLoadFails.WithLabelValues(reason).Inc()
}
