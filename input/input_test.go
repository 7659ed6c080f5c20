package input

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"meterdata-etl/models"
)

func collect(t *testing.T, source MeasurementSource, workload int) ([][]models.Measurement, []string) {
	t.Helper()
	batches := make(chan []models.Measurement, 100)
	var rejected []string
	reject := func(position string, err error) {
		require.Error(t, err)
		rejected = append(rejected, position)
	}
	require.NoError(t, source.Measurements(context.Background(), batches, workload, reject))
	close(batches)
	var out [][]models.Measurement
	for b := range batches {
		out = append(out, b)
	}
	return out, rejected
}

func TestJSONLinesSource(t *testing.T) {
	data := `{"timestamp":"2013-12-01T00:00:00Z","reading":"r1","deviceId":"d1","values":{"p1":10},"companyId":42}
{"timestamp":1385856000,"reading":"r1","deviceId":"d2","values":{"p1":"bad"},"companyId":"42"}

not json
{"timestamp":"2013-12-01 01:00:00","reading":"r2","deviceId":"d1","values":{},"companyId":42}
`
	source := NewJSONLinesSource(strings.NewReader(data))
	batches, rejected := collect(t, source, 2)

	require.Len(t, batches, 2)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[1], 1)
	require.Equal(t, 1, source.Malformed)
	require.Equal(t, []string{"line 4"}, rejected)

	first := batches[0][0]
	require.Equal(t, "d1", first.DeviceId)
	require.Equal(t, "42", first.CompanyId)
	require.Equal(t, "r1", first.Reading)
	require.Equal(t, int64(1385856000), first.Timestamp.Unix())
	require.Equal(t, "42", batches[0][1].CompanyId)
	require.Equal(t, int64(1385859600), batches[1][0].Timestamp.Unix())
}

func TestJSONLinesSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source := NewJSONLinesSource(strings.NewReader(`{"timestamp":1,"reading":"r","deviceId":"d","values":{},"companyId":1}`))
	err := source.Measurements(ctx, make(chan []models.Measurement), 1, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseMeasurementBadTimestamp(t *testing.T) {
	_, err := ParseMeasurement([]byte(`{"timestamp":"yesterday","reading":"r","deviceId":"d"}`))
	require.Error(t, err)
}

func TestSQLSource(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE raw_measurements (
		reading_id TEXT, device_id TEXT, company_id TEXT, ts INTEGER, measurement_values TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO raw_measurements VALUES
		('r1', 'd1', '42', 1385856000, '{"p1": 10, "p2": "bad"}'),
		('r1', 'd1', '42', 1385859600, 'broken'),
		('r2', 'd2', '42', 1385856000, NULL)`)
	require.NoError(t, err)

	source := NewSQLSource(db, "raw_measurements")
	count, err := source.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, count)

	batches, rejected := collect(t, source, 10)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	require.Equal(t, 1, source.Malformed)
	require.Equal(t, []string{"raw_measurements device d1 ts 1385859600"}, rejected)

	m := batches[0][0]
	require.Equal(t, "d1", m.DeviceId)
	require.Equal(t, time.Unix(1385856000, 0).UTC(), m.Timestamp)
	require.Equal(t, float64(10), m.Values["p1"])
	require.Equal(t, "bad", m.Values["p2"])
	require.Nil(t, batches[0][1].Values)
}

func TestReadLines(t *testing.T) {
	lines := make(chan Line, 10)
	require.NoError(t, ReadLines(context.Background(), strings.NewReader("a\tb\r\n\nc\n"), lines))
	close(lines)
	var got []Line
	for l := range lines {
		got = append(got, l)
	}
	require.Equal(t, []Line{{Number: 1, Text: "a\tb"}, {Number: 3, Text: "c"}}, got)
}
