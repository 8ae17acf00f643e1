package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var logSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_log_sent_total",
	Help: "Number of log channel messages delivered",
}, []string{"channel_type"})

var logDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_log_dropped_total",
	Help: "Number of log channel messages dropped by the per-guild rate limit",
}, []string{"channel_type"})
