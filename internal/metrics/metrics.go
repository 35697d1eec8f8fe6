// Package metrics exposes Prometheus collectors for the command pipeline and
// the async workers.
package metrics

import (
	"errors"
	"time"

	"settlepos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlepos",
		Name:      "commands_total",
		Help:      "Commands processed, by command name and result code.",
	}, []string{"command", "result"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "settlepos",
		Name:      "command_duration_seconds",
		Help:      "Time from serializer admission to commit.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command"})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlepos",
		Name:      "jobs_total",
		Help:      "Async jobs handled, by queue and outcome.",
	}, []string{"queue", "outcome"})

	activeLanes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settlepos",
		Name:      "serializer_active_orders",
		Help:      "Orders with queued or running commands.",
	})
)

// ObserveCommand records one command. Replays count as "replayed"; failures
// are labelled with their error code.
func ObserveCommand(command string, replayed bool, err error, took time.Duration) {
	result := "ok"
	switch {
	case replayed:
		result = "replayed"
	case err != nil:
		var e *apierror.Error
		if errors.As(err, &e) {
			result = string(e.Code)
		} else {
			result = string(apierror.ErrInternal.Code)
		}
	}
	commandsTotal.WithLabelValues(command, result).Inc()
	commandDuration.WithLabelValues(command).Observe(took.Seconds())
}

// ObserveJob records the outcome of an async job: done, retry or dlq.
func ObserveJob(queue, outcome string) {
	jobsTotal.WithLabelValues(queue, outcome).Inc()
}

// SetActiveLanes reports the serializer lane count.
func SetActiveLanes(n int) {
	activeLanes.Set(float64(n))
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
