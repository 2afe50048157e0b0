package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netdoc",
		Name:      "inventory_mutations_total",
		Help:      "Inventory commands by operation and result.",
	}, []string{"op", "result"})

	changesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netdoc",
		Name:      "store_changes_total",
		Help:      "Change notifications reconciled into memory, by collection.",
	}, []string{"kind"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netdoc",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Mutation records the outcome of an inventory command. rejected lists the
// errors that count as an expected refusal rather than a failure.
func Mutation(op string, err error, rejected ...error) {
	result := ResultOK
	if err != nil {
		result = ResultError
		for _, r := range rejected {
			if errors.Is(err, r) {
				result = ResultRejected
				break
			}
		}
	}
	mutationsTotal.WithLabelValues(op, result).Inc()
}

func Change(kind string) { changesTotal.WithLabelValues(kind).Inc() }

func ObserveHTTP(method, route, code string, seconds float64) {
	httpDuration.WithLabelValues(method, route, code).Observe(seconds)
}

func Handler() http.Handler { return promhttp.Handler() }
