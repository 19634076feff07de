package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orchestrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecall_orchestrations_total",
		Help: "Orchestration outcomes by operation and result kind",
	}, []string{"operation", "outcome"})

	bestEffortFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecall_best_effort_failures_total",
		Help: "Suppressed failures of best-effort steps",
	}, []string{"operation", "step"})
)

func observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
	}
	orchestrationsTotal.WithLabelValues(operation, outcome).Inc()
}
