// Package input reads the raw records both pipelines consume and hands them to the workers
// in batches over a channel.
package input

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"meterdata-etl/models"
	"meterdata-etl/utils"
)

// RejectFunc is told about every record a source drops. position locates the record in the source.
type RejectFunc func(position string, err error)

// MeasurementSource populates batches with slices of at most workload measurements. Malformed records
// are skipped and passed to reject when it is not nil.
type MeasurementSource interface {
	Measurements(ctx context.Context, batches chan<- []models.Measurement, workload int, reject RejectFunc) error
}

type rawMeasurement struct {
	Timestamp json.RawMessage        `json:"timestamp"`
	Reading   json.RawMessage        `json:"reading"`
	DeviceId  string                 `json:"deviceId"`
	Values    map[string]interface{} `json:"values"`
	CompanyId json.RawMessage        `json:"companyId"`
}

// JSONLinesSource reads one JSON encoded measurement per line
type JSONLinesSource struct {
	reader    io.Reader
	Malformed int
}

func NewJSONLinesSource(reader io.Reader) *JSONLinesSource {
	return &JSONLinesSource{reader: reader}
}

func (s *JSONLinesSource) Measurements(ctx context.Context, batches chan<- []models.Measurement, workload int, reject RejectFunc) error {
	scanner := newScanner(s.reader)
	batch := make([]models.Measurement, 0, workload)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		measurement, err := ParseMeasurement([]byte(line))
		if err != nil {
			s.Malformed++
			log.WithFields(log.Fields{"line": lineNumber, "error": err}).Warn("skipping malformed measurement")
			if reject != nil {
				reject(fmt.Sprintf("line %d", lineNumber), err)
			}
			continue
		}
		batch = append(batch, measurement)
		if len(batch) == workload {
			if err := send(ctx, batches, batch); err != nil {
				return err
			}
			batch = make([]models.Measurement, 0, workload)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading measurements: %w", err)
	}
	if len(batch) > 0 {
		return send(ctx, batches, batch)
	}
	return nil
}

// ParseMeasurement decodes one measurement. Reading and company ids may be given as strings or numbers.
func ParseMeasurement(data []byte) (models.Measurement, error) {
	var raw rawMeasurement
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Measurement{}, err
	}
	ts, err := utils.ParseTimestamp(string(raw.Timestamp))
	if err != nil {
		return models.Measurement{}, err
	}
	return models.Measurement{
		Timestamp: ts,
		Reading:   unquote(raw.Reading),
		DeviceId:  raw.DeviceId,
		Values:    raw.Values,
		CompanyId: unquote(raw.CompanyId),
	}, nil
}

func unquote(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func send(ctx context.Context, batches chan<- []models.Measurement, batch []models.Measurement) error {
	select {
	case batches <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Line is one line of a delimited input together with its position in the input
type Line struct {
	Number int
	Text   string
}

// ReadLines sends every non-empty line of reader to lines
func ReadLines(ctx context.Context, reader io.Reader, lines chan<- Line) error {
	scanner := newScanner(reader)
	number := 0
	for scanner.Scan() {
		number++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		select {
		case lines <- Line{Number: number, Text: text}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading lines: %w", err)
	}
	return nil
}

func newScanner(reader io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return scanner
}
