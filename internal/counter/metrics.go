package counter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var counterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_counter_errors_total",
	Help: "Number of counter store operations that failed",
}, []string{"op"})
