package wordpress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diary",
		Subsystem: "wordpress",
		Name:      "pages_fetched_total",
		Help:      "Post pages successfully read from WordPress.",
	})

	fetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "diary",
		Subsystem: "wordpress",
		Name:      "fetch_failures_total",
		Help:      "Post page fetches that failed after retries.",
	})
)
