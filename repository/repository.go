package repository

import (
	"context"
	"errors"
	"fmt"

	"meterdata-etl/models"
)

// ErrStoreUnavailable marks failures of the backing stores. They are not retried here and are
// propagated so the job execution can retry the whole task.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrTableExists is returned by CreateTable when another worker created the table first
var ErrTableExists = errors.New("table already exists")

type ReadingRepository interface {
	// FindReading returns nil without error when the reading does not exist
	FindReading(ctx context.Context, readingId string) (*models.Reading, error)
}

type QuarantineRepository interface {
	SaveQuarantined(ctx context.Context, record models.QuarantinedMeasurement) error
}

type DiagnosticsRepository interface {
	AppendError(ctx context.Context, taskId, message string) error
	AppendDebug(ctx context.Context, taskId, message string) error
}

type BaselineRepository interface {
	UpsertBaseline(ctx context.Context, baseline models.BaselineDocument) error
}

type Repository interface {
	ReadingRepository
	QuarantineRepository
	DiagnosticsRepository
	BaselineRepository
	Close(ctx context.Context) error
}

// WideColumnStore is the subset of wide-column operations the ingestion pipeline needs
type WideColumnStore interface {
	ListTables(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, table string, families []string) error
	Put(ctx context.Context, table, rowKey string, row models.ColumnRow) error
	Close()
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
