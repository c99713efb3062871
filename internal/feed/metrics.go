package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var enrichmentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "diary",
		Subsystem: "feed",
		Name:      "enrichment_total",
		Help:      "Publish time enrichment attempts by outcome.",
	},
	[]string{"outcome"},
)
