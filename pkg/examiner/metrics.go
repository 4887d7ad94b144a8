package examiner

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Tracked   prometheus.Gauge
	Created   prometheus.Counter
	Retries   prometheus.Counter
	Failures  prometheus.Counter
	Dropped   prometheus.Counter
	Flags     prometheus.Counter
	Streaming prometheus.Gauge
}

// NewMetrics registers the examiner metrics with reg, nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "proctor", Subsystem: "examiner", Name: "peers_tracked",
			Help: "Number of descriptors in the connection table.",
		}),
		Streaming: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "proctor", Subsystem: "examiner", Name: "peers_streaming",
			Help: "Number of peers with a remote stream.",
		}),
		Created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor", Subsystem: "examiner", Name: "transports_created_total",
			Help: "Transport handles created, retries included.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor", Subsystem: "examiner", Name: "retries_total",
			Help: "Automatic reconnect attempts.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor", Subsystem: "examiner", Name: "failures_total",
			Help: "Peers given up after the retry limit.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor", Subsystem: "examiner", Name: "signals_dropped_total",
			Help: "Inbound signals without a live transport.",
		}),
		Flags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proctor", Subsystem: "examiner", Name: "flags_total",
			Help: "Disallowed site flags raised by students.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Tracked, m.Streaming, m.Created, m.Retries, m.Failures, m.Dropped, m.Flags)
	}
	return m
}
