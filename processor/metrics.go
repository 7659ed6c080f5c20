package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type IngestMetrics struct {
	MeasurementsProcessedTotal   prometheus.Counter
	MeasurementsQuarantinedTotal prometheus.Counter
	MeasurementsMalformedTotal   prometheus.Counter
	ChannelsExcludedTotal        prometheus.Counter
	RowsWrittenTotal             prometheus.Counter
	TablesCreatedTotal           prometheus.Counter
	ReadingLookupsTotal          *prometheus.CounterVec
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	factory := promauto.With(reg)

	return &IngestMetrics{
		MeasurementsProcessedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "measurements_processed_total",
			Help: "Total number of measurements read by the ingestion workers",
		}),
		MeasurementsQuarantinedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "measurements_quarantined_total",
			Help: "Total number of measurements routed to quarantine",
		}),
		MeasurementsMalformedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "measurements_malformed_total",
			Help: "Total number of source records skipped because they could not be decoded",
		}),
		ChannelsExcludedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "channels_excluded_total",
			Help: "Total number of channels dropped because their value is not a finite number",
		}),
		RowsWrittenTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rows_written_total",
			Help: "Total number of column rows written to the wide-column store",
		}),
		TablesCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tables_created_total",
			Help: "Total number of wide-column tables created",
		}),
		ReadingLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reading_lookups_total",
			Help: "Reading lookups by result (hit, miss)",
		}, []string{"result"}),
	}
}
