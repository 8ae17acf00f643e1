package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Buckets span 1ms to ~16s. Handlers that consult the audit log sit in the
// upper half.
var handlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "nervesx_event_handler_seconds",
	Help:    "Time spent handling one gateway event",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
}, []string{"event"})

// ObserveHandler records the time since start for event. Use with defer:
//
//	defer metrics.ObserveHandler("message_create", time.Now())
func ObserveHandler(event string, start time.Time) {
	handlerLatency.WithLabelValues(event).Observe(time.Since(start).Seconds())
}
