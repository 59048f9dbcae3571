package catchup

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChannelRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_catchup_channel_requests_total",
			Help: "Total number of requests for transaction log channels.",
		},
	)

	BulkAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_catchup_bulk_appends_total",
			Help: "Total number of bulk appends to the transaction log.",
		},
	)

	RestoresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_catchup_restores_total",
			Help: "Total number of restores of the transaction log.",
		},
	)

	CheckpointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_catchup_checkpoints_total",
			Help: "Total number of checkpoints appended after bulk appends.",
		},
	)

	RejectedRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_catchup_rejected_requests_total",
			Help: "Total number of bulk operations rejected because the database was available.",
		},
	)
)

// RegisterMetrics registers all metrics collectors with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	metrics := []prometheus.Collector{
		ChannelRequestsTotal,
		BulkAppendsTotal,
		RestoresTotal,
		CheckpointsTotal,
		RejectedRequestsTotal,
	}
	for _, metric := range metrics {
		if err := registerer.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
