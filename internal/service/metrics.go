package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serviceMetrics struct {
	runsTotal        *prometheus.CounterVec
	recordsProcessed *prometheus.CounterVec
	alertsSent       prometheus.Counter
}

var metrics *serviceMetrics

func init() {
	metrics = new(serviceMetrics)

	metrics.runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propsync_runs_total",
		Help: "The number of sync runs by terminal status",
	}, []string{"status"})

	metrics.recordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propsync_records_processed_total",
		Help: "The number of remote records processed by resource and outcome",
	}, []string{"resource", "outcome"})

	metrics.alertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propsync_failure_alerts_sent_total",
		Help: "The number of sync failure notifications sent",
	})
}
