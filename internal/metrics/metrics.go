package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "erotify_jobs_created_total",
		Help: "Total number of download jobs created",
	})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "erotify_jobs_finished_total",
		Help: "Total number of download jobs reaching a terminal status",
	}, []string{"status"})

	GatewayOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "erotify_gateway_outcomes_total",
		Help: "Downloader tool invocations by outcome",
	}, []string{"outcome"})

	FilesReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "erotify_files_reconciled_total",
		Help: "Total number of downloaded files found after a successful run",
	})

	CatalogForwards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "erotify_catalog_forwards_total",
		Help: "Catalog forward attempts by result",
	}, []string{"result"})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "erotify_download_duration_seconds",
		Help:    "Downloader tool run time in seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 180, 240, 300},
	})
)

// Gateway outcome labels
const (
	OutcomeSuccess   = "success"
	OutcomeToolError = "tool_error"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeFault     = "fault"
)

// RegisterPoolGauges exposes worker pool depth. Registering twice is a no-op.
func RegisterPoolGauges(pending, active func() int) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "erotify_pool_pending_tasks",
			Help: "Tasks waiting for a free worker",
		}, func() float64 { return float64(pending()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "erotify_pool_active_tasks",
			Help: "Tasks currently running",
		}, func() float64 { return float64(active()) }),
	}
	for _, g := range gauges {
		if err := prometheus.Register(g); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
