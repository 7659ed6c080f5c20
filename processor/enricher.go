package processor

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"

	"meterdata-etl/config"
	"meterdata-etl/models"
	"meterdata-etl/repository"
)

var quarantineNamespace = uuid.MustParse("6f1c2a64-8d0e-4c55-9a4b-3d2f7e915c01")

// cachedReading wraps the lookup result so unknown readings are memoized too
type cachedReading struct {
	reading *models.Reading
}

// ReadingEnricher resolves the reading of each measurement through a bounded cache owned by one worker
type ReadingEnricher struct {
	readings repository.ReadingRepository
	cache    *ttlcache.Cache[string, cachedReading]
	clock    clockwork.Clock
	metrics  *IngestMetrics
}

func NewReadingEnricher(readings repository.ReadingRepository, capacity uint64, clock clockwork.Clock, metrics *IngestMetrics) *ReadingEnricher {
	return &ReadingEnricher{
		readings: readings,
		cache: ttlcache.New(
			ttlcache.WithCapacity[string, cachedReading](capacity),
			ttlcache.WithDisableTouchOnHit[string, cachedReading](),
		),
		clock:   clock,
		metrics: metrics,
	}
}

// Enrich returns the measurement with its reading attached. When the reading cannot be found the
// quarantine record is returned instead. Only store failures are returned as errors.
func (e *ReadingEnricher) Enrich(ctx context.Context, measurement models.Measurement) (*models.EnrichedMeasurement, *models.QuarantinedMeasurement, error) {
	reading, err := e.lookup(ctx, measurement.Reading)
	if err != nil {
		return nil, nil, err
	}
	if reading == nil {
		return nil, e.quarantine(measurement, config.GetMissingReadingError()), nil
	}
	return &models.EnrichedMeasurement{Measurement: measurement, Reading: *reading}, nil, nil
}

func (e *ReadingEnricher) lookup(ctx context.Context, readingId string) (*models.Reading, error) {
	if item := e.cache.Get(readingId); item != nil {
		e.metrics.ReadingLookupsTotal.WithLabelValues("hit").Inc()
		return item.Value().reading, nil
	}
	e.metrics.ReadingLookupsTotal.WithLabelValues("miss").Inc()

	reading, err := e.readings.FindReading(ctx, readingId)
	if err != nil {
		return nil, err
	}
	e.cache.Set(readingId, cachedReading{reading: reading}, ttlcache.NoTTL)
	return reading, nil
}

func (e *ReadingEnricher) quarantine(measurement models.Measurement, reason string) *models.QuarantinedMeasurement {
	return &models.QuarantinedMeasurement{
		Id:              QuarantineId(measurement),
		Timestamp:       measurement.Timestamp,
		Reading:         measurement.Reading,
		DeviceId:        measurement.DeviceId,
		Values:          measurement.Values,
		CompanyId:       measurement.CompanyId,
		Error:           reason,
		ErrorDetectedAt: e.clock.Now().UTC(),
	}
}

// QuarantineId is stable for the same measurement so a re-executed task replaces its earlier records
func QuarantineId(measurement models.Measurement) string {
	name := measurement.Reading + config.GetRowKeySeparator() +
		measurement.DeviceId + config.GetRowKeySeparator() +
		measurement.CompanyId + config.GetRowKeySeparator() +
		strconv.FormatInt(measurement.Timestamp.Unix(), 10)
	return uuid.NewSHA1(quarantineNamespace, []byte(name)).String()
}

func (e *ReadingEnricher) CacheLen() int {
	return e.cache.Len()
}
