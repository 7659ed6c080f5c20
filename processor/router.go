package processor

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"meterdata-etl/config"
	"meterdata-etl/models"
	"meterdata-etl/repository"
)

// TableRouter writes rows to their table, creating the table on first use. The snapshot of
// existing tables is loaded once and only grows; it belongs to a single worker.
type TableRouter struct {
	store   repository.WideColumnStore
	tables  map[string]struct{}
	loaded  bool
	metrics *IngestMetrics
}

func NewTableRouter(store repository.WideColumnStore, metrics *IngestMetrics) *TableRouter {
	return &TableRouter{store: store, tables: map[string]struct{}{}, metrics: metrics}
}

// Write puts row under rowKey in table
func (r *TableRouter) Write(ctx context.Context, table, rowKey string, row models.ColumnRow) error {
	if err := r.ensureTable(ctx, table); err != nil {
		return err
	}
	if err := r.store.Put(ctx, table, rowKey, row); err != nil {
		return err
	}
	r.metrics.RowsWrittenTotal.Inc()
	return nil
}

func (r *TableRouter) ensureTable(ctx context.Context, table string) error {
	if !r.loaded {
		tables, err := r.store.ListTables(ctx)
		if err != nil {
			return err
		}
		for _, t := range tables {
			r.tables[t] = struct{}{}
		}
		r.loaded = true
	}
	if _, ok := r.tables[table]; ok {
		return nil
	}

	err := r.store.CreateTable(ctx, table, []string{config.GetColumnFamily()})
	switch {
	case err == nil:
		r.metrics.TablesCreatedTotal.Inc()
	case errors.Is(err, repository.ErrTableExists):
		log.WithField("table", table).Debug("table created by another worker")
	default:
		return err
	}
	r.tables[table] = struct{}{}
	return nil
}
