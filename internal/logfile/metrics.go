package logfile

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RotationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_rotation_total",
			Help: "Total number of segment rotations executed.",
		},
	)

	RotationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txlog_rotation_duration_seconds",
			Help:    "Duration of segment rotations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	AppendedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_appended_bytes_total",
			Help: "Total number of bytes appended to the transaction log.",
		},
	)

	TruncationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_truncation_total",
			Help: "Total number of truncations of the transaction log.",
		},
	)

	PrunedSegmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txlog_pruned_segments_total",
			Help: "Total number of segment files deleted by pruning.",
		},
	)

	ExternalReaders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txlog_external_readers",
			Help: "Number of read-only channels currently registered as external readers.",
		},
	)
)

// RegisterMetrics registers all metrics collectors with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	metrics := []prometheus.Collector{
		RotationTotal,
		RotationDuration,
		AppendedBytesTotal,
		TruncationTotal,
		PrunedSegmentsTotal,
		ExternalReaders,
	}
	for _, metric := range metrics {
		if err := registerer.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
