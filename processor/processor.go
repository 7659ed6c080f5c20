package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"meterdata-etl/config"
	"meterdata-etl/input"
	"meterdata-etl/models"
	"meterdata-etl/repository"
)

// Stores groups the stores the ingestion workers share
type Stores struct {
	Readings   repository.ReadingRepository
	Quarantine repository.QuarantineRepository
	WideColumn repository.WideColumnStore
	// Diagnostics receives an error entry per malformed record when set
	Diagnostics repository.DiagnosticsRepository
}

type IngestConfig struct {
	TaskId        string
	Workers       int
	Workload      int
	CacheSize     uint64
	RowKey        []string
	QuarantineDir string
	Clock         clockwork.Clock
	Metrics       *IngestMetrics
}

// Stats summarizes what the workers did with the measurements they read
type Stats struct {
	Processed        int
	Written          int
	Quarantined      int
	ExcludedChannels int
	Malformed        int
}

func (s *Stats) add(other Stats) {
	s.Processed += other.Processed
	s.Written += other.Written
	s.Quarantined += other.Quarantined
	s.ExcludedChannels += other.ExcludedChannels
	s.Malformed += other.Malformed
}

type result struct {
	stats   Stats
	mainErr error
}

// IngestMeasurements reads the measurements of source and writes them, normalized, to the wide-column
// store. Measurements without a known reading are quarantined instead.
func IngestMeasurements(ctx context.Context, source input.MeasurementSource, stores Stores, cfg IngestConfig) (Stats, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = config.GetDefaultWorkers()
	}
	if cfg.Workload <= 0 {
		cfg.Workload = config.GetDefaultWorkload()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if len(cfg.RowKey) == 0 {
		cfg.RowKey = config.GetDefaultRowKey()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewIngestMetrics(prometheus.NewRegistry())
	}

	if cfg.QuarantineDir != "" {
		//Remove leftovers of an earlier failed run
		if err := RemoveFiles(cfg.QuarantineDir, config.GetTmpExtension()); err != nil {
			return Stats{}, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	//Create the channel that the workers will fetch measurements from
	measurements := make(chan []models.Measurement, cfg.Workers*2)

	//Only the source goroutine touches malformed until sourceErr is received
	malformed := 0
	reject := func(position string, err error) {
		malformed++
		cfg.Metrics.MeasurementsMalformedTotal.Inc()
		if stores.Diagnostics == nil {
			return
		}
		if err := stores.Diagnostics.AppendError(ctx, cfg.TaskId, "malformed measurement at "+position+": "+err.Error()); err != nil {
			log.WithError(err).Warn("could not write error entry")
		}
	}

	//Populate the channel with the measurements to ingest
	sourceErr := make(chan error, 1)
	go func() {
		defer close(measurements)
		sourceErr <- source.Measurements(ctx, measurements, cfg.Workload, reject)
	}()

	//WaitGroup used to ensure the function doesn't end before all the workers are finished
	wg := sync.WaitGroup{}

	// We just want to return one of the errors from the worker threads (if any)
	resultChannel := make(chan result, cfg.Workers)

	for worker := 0; worker < cfg.Workers; worker++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			stats, err := ingestWorker(ctx, id, measurements, stores, cfg)
			if err != nil {
				cancel()
			}
			resultChannel <- result{stats: stats, mainErr: err}
		}(worker)
	}

	wg.Wait()
	close(resultChannel)

	var total Stats
	var mainErr error
	keep := func(err error) {
		// workers stopped by the cancellation report context.Canceled; the cause wins
		if err != nil && (mainErr == nil || errors.Is(mainErr, context.Canceled)) {
			mainErr = err
		}
	}
	for res := range resultChannel {
		total.add(res.stats)
		keep(res.mainErr)
	}
	keep(<-sourceErr)
	total.Malformed = malformed
	if mainErr != nil {
		log.Error(mainErr)
		return total, mainErr
	}

	if cfg.QuarantineDir != "" {
		//Rename .tmp to .json in the folder
		if _, err := renameFiles(cfg.QuarantineDir, config.GetTmpExtension(), config.GetFinalExtension()); err != nil {
			return total, err
		}
	}

	log.WithFields(log.Fields{
		"processed":        total.Processed,
		"written":          total.Written,
		"quarantined":      total.Quarantined,
		"excludedChannels": total.ExcludedChannels,
		"malformed":        total.Malformed,
	}).Info("ingestion finished")
	return total, nil
}

type ingester struct {
	rowKey   []string
	enricher *ReadingEnricher
	router   *TableRouter
	sink     QuarantineSink
	metrics  *IngestMetrics
	stats    Stats
}

//ingestWorker reads the measurements channel until it is closed. Caches and table snapshot are private to the worker.
func ingestWorker(ctx context.Context, id int, measurements <-chan []models.Measurement, stores Stores, cfg IngestConfig) (Stats, error) {
	timer := time.Now()

	sink := QuarantineSink(NewStoreQuarantineSink(stores.Quarantine))
	if cfg.QuarantineDir != "" {
		fileSink, err := NewFileQuarantineSink(cfg.QuarantineDir, cfg.TaskId, id)
		if err != nil {
			return Stats{}, err
		}
		sink = teeSink{sink, fileSink}
	}
	defer sink.Close()

	w := &ingester{
		rowKey:   cfg.RowKey,
		enricher: NewReadingEnricher(stores.Readings, cfg.CacheSize, cfg.Clock, cfg.Metrics),
		router:   NewTableRouter(stores.WideColumn, cfg.Metrics),
		sink:     sink,
		metrics:  cfg.Metrics,
	}

	for batch := range measurements {
		for _, measurement := range batch {
			if err := ctx.Err(); err != nil {
				return w.stats, err
			}
			if err := w.process(ctx, measurement); err != nil {
				return w.stats, err
			}
		}
	}

	log.WithFields(log.Fields{"worker": id, "readingsCached": w.enricher.CacheLen()}).
		Info("Time since ingestWorker started: ", time.Since(timer))
	return w.stats, nil
}

func (w *ingester) process(ctx context.Context, measurement models.Measurement) error {
	w.stats.Processed++
	w.metrics.MeasurementsProcessedTotal.Inc()

	enriched, quarantined, err := w.enricher.Enrich(ctx, measurement)
	if err != nil {
		return err
	}
	if quarantined != nil {
		if err := w.sink.Save(ctx, *quarantined); err != nil {
			return err
		}
		w.stats.Quarantined++
		w.metrics.MeasurementsQuarantinedTotal.Inc()
		log.WithFields(log.Fields{"deviceId": measurement.DeviceId, "reading": measurement.Reading}).
			Debug("measurement quarantined")
		return nil
	}

	row, excluded := AssembleColumnRow(*enriched)
	if len(excluded) > 0 {
		w.stats.ExcludedChannels += len(excluded)
		w.metrics.ChannelsExcludedTotal.Add(float64(len(excluded)))
		log.WithFields(log.Fields{"deviceId": measurement.DeviceId, "channels": excluded}).
			Debug("channels without a numeric value excluded")
	}
	if len(row) == 0 {
		return nil
	}

	rowKey, err := RowKey(w.rowKey, *enriched)
	if err != nil {
		return err
	}
	if err := w.router.Write(ctx, TableName(*enriched), rowKey, row); err != nil {
		return err
	}
	w.stats.Written++
	return nil
}
