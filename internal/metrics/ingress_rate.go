package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gatewayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_gateway_events_total",
	Help: "Gateway events received, by event type",
}, []string{"event"})

func IncrementIngress(event string) {
	gatewayEvents.WithLabelValues(event).Inc()
}
