package baseline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type BaselineMetrics struct {
	LinesReadTotal        prometheus.Counter
	LineParseErrorsTotal  prometheus.Counter
	RecordsRoutedTotal    prometheus.Counter
	BaselinesWrittenTotal prometheus.Counter
	ModellingUnitsSkipped prometheus.Counter
	EngineDuration        prometheus.Histogram
}

func NewBaselineMetrics(reg prometheus.Registerer) *BaselineMetrics {
	factory := promauto.With(reg)

	return &BaselineMetrics{
		LinesReadTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "baseline_lines_read_total",
			Help: "Total number of input lines read by the map phase",
		}),
		LineParseErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "baseline_line_parse_errors_total",
			Help: "Total number of input lines dropped because they could not be parsed or routed",
		}),
		RecordsRoutedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "baseline_records_routed_total",
			Help: "Total number of records emitted to a modelling unit",
		}),
		BaselinesWrittenTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "baselines_written_total",
			Help: "Total number of baseline documents upserted",
		}),
		ModellingUnitsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "baseline_modelling_units_skipped_total",
			Help: "Total number of modelling units whose baseline could not be produced",
		}),
		EngineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "baseline_engine_duration_seconds",
			Help: "Duration of baseline engine invocations in seconds",
		}),
	}
}
