package propcore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type clientMetrics struct {
	requestDuration prometheus.Histogram
	requestRetries  prometheus.Counter
}

var metrics *clientMetrics

func init() {
	metrics = new(clientMetrics)

	metrics.requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "propsync_remote_request_duration_seconds",
		Help: "The amount of time an outbound PropCore API request took",
	})

	metrics.requestRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propsync_remote_request_retries_total",
		Help: "The number of PropCore API requests that were retried after a transient failure",
	})
}
