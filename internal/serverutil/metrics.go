package serverutil

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "diary",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served by method and status code.",
	},
	[]string{"method", "code"},
)
