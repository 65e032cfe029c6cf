// Package metrics exposes Prometheus counters for the ingestion path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TracesIngested counts traces accepted on the ingestion path.
	TracesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracehub",
		Name:      "traces_ingested_total",
		Help:      "Number of traces accepted for storage.",
	})

	// AuthFailures counts rejected authentication attempts by surface.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracehub",
		Name:      "auth_failures_total",
		Help:      "Number of rejected authentication attempts.",
	}, []string{"surface"})

	// ContactSends counts contact form deliveries by outcome.
	ContactSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracehub",
		Name:      "contact_sends_total",
		Help:      "Number of contact form delivery attempts.",
	}, []string{"outcome"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
