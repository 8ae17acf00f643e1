package decision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var punishments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_punishments_total",
	Help: "Punishment engine operations by kind and outcome",
}, []string{"kind", "outcome"})

var lockdowns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nervesx_lockdowns_total",
	Help: "Guild lockdowns engaged and reverted",
}, []string{"phase"})
