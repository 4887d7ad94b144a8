package hub

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Rooms   prometheus.Gauge
	Members prometheus.Gauge
	Signals prometheus.Counter
	Dropped prometheus.Counter
	Flags   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "proctor", Subsystem: "hub", Name: "rooms",
			Help: "Open rooms.",
		}),
		Members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "proctor", Subsystem: "hub", Name: "members",
			Help: "Connected room members.",
		}),
		Signals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor", Subsystem: "hub", Name: "signals_total",
			Help: "Relayed signaling payloads.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor", Subsystem: "hub", Name: "signals_dropped_total",
			Help: "Signaling payloads to unknown peers.",
		}),
		Flags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor", Subsystem: "hub", Name: "flags_total",
			Help: "Relayed disallowed site flags.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Rooms, m.Members, m.Signals, m.Dropped, m.Flags)
	}
	return m
}
