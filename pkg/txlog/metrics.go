package txlog

import (
	"github.com/prometheus/client_golang/prometheus"

	intcatchup "github.com/backbone81/graph-txlog/internal/catchup"
	intlogfile "github.com/backbone81/graph-txlog/internal/logfile"
)

// RegisterMetrics registers all metrics collectors with the given prometheus registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	if err := intlogfile.RegisterMetrics(registerer); err != nil {
		return err
	}
	if err := intcatchup.RegisterMetrics(registerer); err != nil {
		return err
	}
	return nil
}
