package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"meterdata-etl/config"
	"meterdata-etl/input"
	"meterdata-etl/models"
	"meterdata-etl/repository"
)

type fakeReadings struct {
	mu       sync.Mutex
	readings map[string]models.Reading
	calls    map[string]int
	err      error
}

func newFakeReadings(readings ...models.Reading) *fakeReadings {
	f := &fakeReadings{readings: map[string]models.Reading{}, calls: map[string]int{}}
	for _, r := range readings {
		f.readings[r.Id] = r
	}
	return f
}

func (f *fakeReadings) FindReading(_ context.Context, readingId string) (*models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[readingId]++
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.readings[readingId]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

type fakeQuarantine struct {
	mu      sync.Mutex
	records map[string]models.QuarantinedMeasurement
}

func (f *fakeQuarantine) SaveQuarantined(_ context.Context, record models.QuarantinedMeasurement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = map[string]models.QuarantinedMeasurement{}
	}
	f.records[record.Id] = record
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	tables  map[string]bool
	rows    map[string]map[string]models.ColumnRow
	creates int
	putErr  error
	// hidden tables exist in the store but are not reported by ListTables
	hidden map[string]bool
}

func newFakeStore(tables ...string) *fakeStore {
	s := &fakeStore{tables: map[string]bool{}, rows: map[string]map[string]models.ColumnRow{}, hidden: map[string]bool{}}
	for _, t := range tables {
		s.tables[t] = true
	}
	return s
}

func (s *fakeStore) ListTables(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tables []string
	for t := range s.tables {
		if !s.hidden[t] {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

func (s *fakeStore) CreateTable(_ context.Context, table string, families []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return repository.ErrTableExists
	}
	s.creates++
	s.tables[table] = true
	return nil
}

func (s *fakeStore) Put(_ context.Context, table, rowKey string, row models.ColumnRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if !s.tables[table] {
		return fmt.Errorf("table %s not found", table)
	}
	if s.rows[table] == nil {
		s.rows[table] = map[string]models.ColumnRow{}
	}
	s.rows[table][rowKey] = row
	return nil
}

func (s *fakeStore) Close() {}

type sliceSource []models.Measurement

func (s sliceSource) Measurements(ctx context.Context, batches chan<- []models.Measurement, workload int, reject input.RejectFunc) error {
	for start := 0; start < len(s); start += workload {
		end := start + workload
		if end > len(s) {
			end = len(s)
		}
		select {
		case batches <- s[start:end]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

var (
	instantReading    = models.Reading{Id: "r1", Period: "INSTANT", Unit: "", Type: "electricityConsumption"}
	cumulativeReading = models.Reading{Id: "r2", Period: "CUMULATIVE", Unit: "Wh", Type: "electricityConsumption"}
	testTime          = time.Date(2013, 12, 1, 0, 0, 0, 0, time.UTC)
)

func enriched(reading models.Reading, values map[string]interface{}) models.EnrichedMeasurement {
	return models.EnrichedMeasurement{
		Measurement: models.Measurement{
			Timestamp: testTime,
			Reading:   reading.Id,
			DeviceId:  "d1",
			Values:    values,
			CompanyId: "42",
		},
		Reading: reading,
	}
}

func TestAssembleColumnRowInstant(t *testing.T) {
	row, excluded := AssembleColumnRow(enriched(instantReading, map[string]interface{}{"p1": 10.0, "p2": "bad"}))

	require.Equal(t, models.ColumnRow{"m:p1": "10.0", "m:v": "10.0", "m:calc": "0"}, row)
	require.Equal(t, []string{"p2"}, excluded)
}

func TestAssembleColumnRowSumsInstantChannels(t *testing.T) {
	reading := instantReading
	reading.Period = "PULSE"
	reading.Unit = "kWh"
	row, excluded := AssembleColumnRow(enriched(reading, map[string]interface{}{"p1": 1.5, "p2": " 2 ", "p3": nil}))

	require.Equal(t, models.ColumnRow{"m:p1": "1.5", "m:p2": "2.0", "m:v": "3.5", "m:calc": "0"}, row)
	require.Equal(t, []string{"p3"}, excluded)
}

func TestAssembleColumnRowAccumulated(t *testing.T) {
	row, excluded := AssembleColumnRow(enriched(cumulativeReading, map[string]interface{}{"p1": 1500.0, "p2": "NaN"}))

	require.Equal(t, models.ColumnRow{"m:p1a": "1.5"}, row)
	require.Equal(t, []string{"p2"}, excluded)
}

func TestRowKey(t *testing.T) {
	m := enriched(instantReading, nil)
	m.Timestamp = time.Unix(154000, 0).UTC()

	key, err := RowKey([]string{"deviceId", "bucket", "timestamp", "type"}, m)
	require.NoError(t, err)
	require.Equal(t, "d1~40~154000~electricityConsumption", key)

	_, err = RowKey([]string{"deviceId", "nope"}, m)
	require.Error(t, err)
}

func TestTableName(t *testing.T) {
	require.Equal(t, "electricityConsumption_42", TableName(enriched(instantReading, nil)))
}

func TestReadingEnricherCachesHitsAndMisses(t *testing.T) {
	readings := newFakeReadings(instantReading)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	metrics := NewIngestMetrics(prometheus.NewRegistry())
	enricher := NewReadingEnricher(readings, 10, clock, metrics)
	ctx := context.Background()

	known := models.Measurement{Timestamp: testTime, Reading: "r1", DeviceId: "d1", CompanyId: "42"}
	unknown := models.Measurement{Timestamp: testTime, Reading: "missing", DeviceId: "d1", CompanyId: "42"}

	for i := 0; i < 3; i++ {
		e, q, err := enricher.Enrich(ctx, known)
		require.NoError(t, err)
		require.Nil(t, q)
		require.Equal(t, instantReading, e.Reading)

		e, q, err = enricher.Enrich(ctx, unknown)
		require.NoError(t, err)
		require.Nil(t, e)
		require.NotNil(t, q)
		require.Equal(t, config.GetMissingReadingError(), q.Error)
		require.Equal(t, clock.Now(), q.ErrorDetectedAt)
		require.Equal(t, QuarantineId(unknown), q.Id)
	}

	require.Equal(t, 1, readings.calls["r1"])
	require.Equal(t, 1, readings.calls["missing"])
	require.Equal(t, 4.0, testutil.ToFloat64(metrics.ReadingLookupsTotal.WithLabelValues("hit")))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.ReadingLookupsTotal.WithLabelValues("miss")))
}

func TestReadingEnricherPropagatesStoreErrors(t *testing.T) {
	readings := newFakeReadings()
	readings.err = fmt.Errorf("%w: boom", repository.ErrStoreUnavailable)
	enricher := NewReadingEnricher(readings, 10, clockwork.NewFakeClock(), NewIngestMetrics(prometheus.NewRegistry()))

	_, _, err := enricher.Enrich(context.Background(), models.Measurement{Reading: "r1"})
	require.ErrorIs(t, err, repository.ErrStoreUnavailable)
}

func TestQuarantineIdIsStable(t *testing.T) {
	m := models.Measurement{Timestamp: testTime, Reading: "r9", DeviceId: "d1", CompanyId: "42"}
	other := m
	other.DeviceId = "d2"

	require.Equal(t, QuarantineId(m), QuarantineId(m))
	require.NotEqual(t, QuarantineId(m), QuarantineId(other))
}

func TestTableRouterCreatesMissingTablesOnce(t *testing.T) {
	store := newFakeStore("existing_42")
	metrics := NewIngestMetrics(prometheus.NewRegistry())
	router := NewTableRouter(store, metrics)
	ctx := context.Background()

	require.NoError(t, router.Write(ctx, "existing_42", "k1", models.ColumnRow{"m:p1": "1.0"}))
	require.Equal(t, 0, store.creates)

	require.NoError(t, router.Write(ctx, "new_42", "k1", models.ColumnRow{"m:p1": "1.0"}))
	require.NoError(t, router.Write(ctx, "new_42", "k2", models.ColumnRow{"m:p1": "2.0"}))
	require.Equal(t, 1, store.creates)
	require.Len(t, store.rows["new_42"], 2)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.TablesCreatedTotal))
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.RowsWrittenTotal))
}

func TestTableRouterToleratesConcurrentCreate(t *testing.T) {
	// the table exists but was created after the snapshot was taken
	store := newFakeStore("race_42")
	store.hidden["race_42"] = true
	router := NewTableRouter(store, NewIngestMetrics(prometheus.NewRegistry()))

	require.NoError(t, router.Write(context.Background(), "race_42", "k1", models.ColumnRow{"m:p1": "1.0"}))
	require.Equal(t, models.ColumnRow{"m:p1": "1.0"}, store.rows["race_42"]["k1"])
}

func testMeasurements() sliceSource {
	var measurements sliceSource
	for i := 0; i < 20; i++ {
		ts := testTime.Add(time.Duration(i) * time.Hour)
		measurements = append(measurements,
			models.Measurement{Timestamp: ts, Reading: "r1", DeviceId: "d1", CompanyId: "42", Values: map[string]interface{}{"p1": 10.0, "p2": "bad"}},
			models.Measurement{Timestamp: ts, Reading: "r2", DeviceId: "d2", CompanyId: "7", Values: map[string]interface{}{"p1": 2000.0}},
			models.Measurement{Timestamp: ts, Reading: "r9", DeviceId: "d3", CompanyId: "42", Values: map[string]interface{}{"p1": 1.0}},
		)
	}
	return measurements
}

func TestIngestMeasurements(t *testing.T) {
	readings := newFakeReadings(instantReading, cumulativeReading)
	quarantine := &fakeQuarantine{}
	store := newFakeStore()
	metrics := NewIngestMetrics(prometheus.NewRegistry())
	dir := t.TempDir()

	stats, err := IngestMeasurements(context.Background(), testMeasurements(),
		Stores{Readings: readings, Quarantine: quarantine, WideColumn: store},
		IngestConfig{
			TaskId:        "task-1",
			Workers:       3,
			Workload:      7,
			CacheSize:     100,
			RowKey:        []string{"deviceId", "timestamp"},
			QuarantineDir: dir,
			Clock:         clockwork.NewFakeClock(),
			Metrics:       metrics,
		})
	require.NoError(t, err)

	require.Equal(t, Stats{Processed: 60, Written: 40, Quarantined: 20, ExcludedChannels: 20}, stats)
	require.Len(t, quarantine.records, 20)
	require.Len(t, store.rows["electricityConsumption_42"], 20)
	require.Len(t, store.rows["electricityConsumption_7"], 20)
	require.Equal(t, 2, store.creates)

	key := fmt.Sprintf("d2~%d", testTime.Unix())
	require.Equal(t, models.ColumnRow{"m:p1a": "2.0"}, store.rows["electricityConsumption_7"][key])

	require.Equal(t, 60.0, testutil.ToFloat64(metrics.MeasurementsProcessedTotal))
	require.Equal(t, 20.0, testutil.ToFloat64(metrics.MeasurementsQuarantinedTotal))
	require.Equal(t, 20.0, testutil.ToFloat64(metrics.ChannelsExcludedTotal))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	lines := 0
	for _, file := range files {
		require.Equal(t, config.GetFinalExtension(), filepath.Ext(file.Name()))
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		require.NoError(t, err)
		lines += strings.Count(string(data), "\n")
	}
	require.Equal(t, 20, lines)
}

func TestIngestMeasurementsIsIdempotent(t *testing.T) {
	readings := newFakeReadings(instantReading, cumulativeReading)
	quarantine := &fakeQuarantine{}
	store := newFakeStore()
	stores := Stores{Readings: readings, Quarantine: quarantine, WideColumn: store}

	for run := 0; run < 2; run++ {
		_, err := IngestMeasurements(context.Background(), testMeasurements(), stores, IngestConfig{
			Workers: 2,
			RowKey:  []string{"deviceId", "timestamp"},
			Metrics: NewIngestMetrics(prometheus.NewRegistry()),
		})
		require.NoError(t, err)
	}

	require.Len(t, quarantine.records, 20)
	require.Len(t, store.rows["electricityConsumption_42"], 20)
}

func TestIngestMeasurementsStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.putErr = fmt.Errorf("%w: put: connection refused", repository.ErrStoreUnavailable)

	_, err := IngestMeasurements(context.Background(), testMeasurements(),
		Stores{Readings: newFakeReadings(instantReading, cumulativeReading), Quarantine: &fakeQuarantine{}, WideColumn: store},
		IngestConfig{Workers: 4, Workload: 1, Metrics: NewIngestMetrics(prometheus.NewRegistry())})

	require.ErrorIs(t, err, repository.ErrStoreUnavailable)
	require.False(t, errors.Is(err, context.Canceled))
}

type fakeDiagnostics struct {
	mu     sync.Mutex
	errors map[string][]string
	err    error
}

func (f *fakeDiagnostics) AppendError(ctx context.Context, taskId, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.errors == nil {
		f.errors = map[string][]string{}
	}
	f.errors[taskId] = append(f.errors[taskId], message)
	return nil
}

func (f *fakeDiagnostics) AppendDebug(ctx context.Context, taskId, message string) error {
	return nil
}

func TestIngestMeasurementsReportsMalformedRecords(t *testing.T) {
	data := `{"timestamp":1385856000,"reading":"r1","deviceId":"d1","values":{"p1":10},"companyId":42}
{"timestamp":
{"timestamp":"yesterday","reading":"r1","deviceId":"d1","values":{},"companyId":42}
{"timestamp":1385859600,"reading":"r1","deviceId":"d1","values":{"p1":11},"companyId":42}
`
	diagnostics := &fakeDiagnostics{}
	store := newFakeStore()
	metrics := NewIngestMetrics(prometheus.NewRegistry())

	stats, err := IngestMeasurements(context.Background(), input.NewJSONLinesSource(strings.NewReader(data)),
		Stores{Readings: newFakeReadings(instantReading), Quarantine: &fakeQuarantine{}, WideColumn: store, Diagnostics: diagnostics},
		IngestConfig{TaskId: "task-1", Workers: 2, Metrics: metrics})
	require.NoError(t, err)

	require.Equal(t, 2, stats.Processed)
	require.Equal(t, 2, stats.Malformed)
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.MeasurementsMalformedTotal))
	require.Len(t, diagnostics.errors["task-1"], 2)
	require.Contains(t, diagnostics.errors["task-1"][0], "line 2")
	require.Contains(t, diagnostics.errors["task-1"][1], "line 3")
}

func TestIngestMeasurementsIgnoresDiagnosticsFailure(t *testing.T) {
	diagnostics := &fakeDiagnostics{err: errors.New("diagnostics down")}

	stats, err := IngestMeasurements(context.Background(), input.NewJSONLinesSource(strings.NewReader("not json\n")),
		Stores{Readings: newFakeReadings(instantReading), Quarantine: &fakeQuarantine{}, WideColumn: newFakeStore(), Diagnostics: diagnostics},
		IngestConfig{TaskId: "task-1", Metrics: NewIngestMetrics(prometheus.NewRegistry())})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Malformed)
}
