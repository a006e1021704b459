package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects dispatch counters and cache population gauges. All
// methods are nil-safe so an engine without metrics pays only a nil check.
type Metrics struct {
	packetsDispatched *prometheus.CounterVec
	packetsUnknown    prometheus.Counter
	packetsDenied     prometheus.Counter
	handlerFailures   prometheus.Counter
}

// NewMetrics registers engine metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		packetsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disgate",
			Name:      "packets_dispatched_total",
			Help:      "Dispatch packets routed to a handler, by gateway event name.",
		}, []string{"event"}),
		packetsUnknown: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "disgate",
			Name:      "packets_unknown_total",
			Help:      "Dispatch packets with no registered handler.",
		}),
		packetsDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "disgate",
			Name:      "packets_denied_total",
			Help:      "Dispatch packets suppressed by the event deny-list.",
		}),
		handlerFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "disgate",
			Name:      "handler_failures_total",
			Help:      "Handler invocations that returned an error or panicked.",
		}),
	}
}

// RegisterStoreGauges exposes live cache population for one store.
func (m *Metrics) RegisterStoreGauges(reg prometheus.Registerer, store *Store) {
	if m == nil || reg == nil || store == nil {
		return
	}
	gauge := func(kind string, count func() int) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "disgate",
			Name:        "cache_entities",
			Help:        "Cached entity count by kind.",
			ConstLabels: prometheus.Labels{"kind": kind},
		}, func() float64 { return float64(count()) }))
	}
	gauge("user", store.Users.Len)
	gauge("guild", store.Guilds.Len)
	gauge("channel", store.Channels.Len)
	gauge("message", store.Messages.Len)
	gauge("emoji", store.Emojis.Len)
	gauge("member", store.Members.Len)
	gauge("presence", store.Presences.Len)
	gauge("voice_state", store.VoiceStates.Len)
}

// ObserveDispatched counts one routed dispatch packet.
func (m *Metrics) ObserveDispatched(event string) {
	if m != nil {
		m.packetsDispatched.WithLabelValues(event).Inc()
	}
}

// ObserveUnknown counts one unroutable dispatch packet.
func (m *Metrics) ObserveUnknown() {
	if m != nil {
		m.packetsUnknown.Inc()
	}
}

// ObserveDenied counts one deny-listed dispatch packet.
func (m *Metrics) ObserveDenied() {
	if m != nil {
		m.packetsDenied.Inc()
	}
}

// ObserveHandlerFailure counts one failed handler invocation.
func (m *Metrics) ObserveHandlerFailure() {
	if m != nil {
		m.handlerFailures.Inc()
	}
}
