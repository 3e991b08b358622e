package wserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the server with Prometheus collectors: active
// connections, request totals by status class, bytes in/out and a
// latency histogram (P50/P95 derivable from the buckets).
type Metrics struct {
	activeConnections prometheus.Gauge
	requestsTotal     *prometheus.CounterVec
	bytesIn           prometheus.Counter
	bytesOut          prometheus.Counter
	latency           prometheus.Histogram

	// droppedLogLines surfaces logstream back-pressure drops.
	droppedLogLines prometheus.CounterFunc
}

// NewMetrics creates and registers the collectors on reg. Passing
// prometheus.DefaultRegisterer wires the default exposition path.
// droppedLines, when non-nil, surfaces the log stream's drop counter.
func NewMetrics(reg prometheus.Registerer, droppedLines func() float64) *Metrics {
	m := &Metrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "volt",
			Name:      "active_connections",
			Help:      "Currently open client connections.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "volt",
			Name:      "requests_total",
			Help:      "Requests served, by status class.",
		}, []string{"class"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volt",
			Name:      "request_bytes_total",
			Help:      "Request body bytes consumed.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "volt",
			Name:      "response_bytes_total",
			Help:      "Response body bytes written.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "volt",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}),
	}

	collectors := []prometheus.Collector{
		m.activeConnections, m.requestsTotal, m.bytesIn, m.bytesOut, m.latency,
	}
	if droppedLines != nil {
		m.droppedLogLines = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "volt",
			Name:      "dropped_log_lines_total",
			Help:      "Access/error log lines dropped by back-pressure.",
		}, droppedLines)
		collectors = append(collectors, m.droppedLogLines)
	}
	if reg != nil {
		for _, c := range collectors {
			reg.MustRegister(c)
		}
	}
	return m
}

// ConnectionOpened bumps the active-connection gauge.
func (m *Metrics) ConnectionOpened() {
	m.activeConnections.Inc()
}

// ConnectionClosed drops the active-connection gauge.
func (m *Metrics) ConnectionClosed() {
	m.activeConnections.Dec()
}

// RequestServed records one completed request.
func (m *Metrics) RequestServed(status int, bytesIn, bytesOut int64, elapsed time.Duration) {
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	case status < 200:
		class = "1xx"
	}
	m.requestsTotal.WithLabelValues(class).Inc()
	m.bytesIn.Add(float64(bytesIn))
	m.bytesOut.Add(float64(bytesOut))
	m.latency.Observe(elapsed.Seconds())
}
