package repository

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tsuna/gohbase"
	"github.com/tsuna/gohbase/hrpc"

	"meterdata-etl/models"
)

// HBaseStore writes column rows to HBase tables
type HBaseStore struct {
	client gohbase.Client
	admin  gohbase.AdminClient
}

var NewHBaseStore = func(quorum string) WideColumnStore {
	return &HBaseStore{
		client: gohbase.NewClient(quorum),
		admin:  gohbase.NewAdminClient(quorum),
	}
}

func newHBaseStoreWithClients(client gohbase.Client, admin gohbase.AdminClient) *HBaseStore {
	return &HBaseStore{client: client, admin: admin}
}

// ListTables returns the tables of every namespace; tables outside the default namespace are
// prefixed with "namespace:"
func (h *HBaseStore) ListTables(ctx context.Context) ([]string, error) {
	req, err := hrpc.NewListTableNames(ctx)
	if err != nil {
		return nil, err
	}
	names, err := h.admin.ListTableNames(req)
	if err != nil {
		return nil, storeError("list tables", err)
	}
	tables := make([]string, 0, len(names))
	for _, name := range names {
		namespace := string(name.GetNamespace())
		if namespace == "" || namespace == "default" {
			tables = append(tables, string(name.GetQualifier()))
		} else {
			tables = append(tables, namespace+":"+string(name.GetQualifier()))
		}
	}
	return tables, nil
}

// CreateTable creates table with the given column families. ErrTableExists is returned when
// the table was created in the meantime.
func (h *HBaseStore) CreateTable(ctx context.Context, table string, families []string) error {
	cf := make(map[string]map[string]string, len(families))
	for _, family := range families {
		cf[family] = map[string]string{}
	}
	err := h.admin.CreateTable(hrpc.NewCreateTable(ctx, []byte(table), cf))
	if err == nil {
		log.WithField("table", table).Info("created table")
		return nil
	}
	if strings.Contains(err.Error(), "TableExistsException") {
		return ErrTableExists
	}
	return storeError("create table "+table, err)
}

// Put writes row under rowKey. Columns are named family:qualifier; writing the same row and
// column again overwrites the previous value.
func (h *HBaseStore) Put(ctx context.Context, table, rowKey string, row models.ColumnRow) error {
	values := map[string]map[string][]byte{}
	for column, value := range row {
		family, qualifier, ok := strings.Cut(column, ":")
		if !ok {
			return fmt.Errorf("column %q has no family", column)
		}
		if values[family] == nil {
			values[family] = map[string][]byte{}
		}
		values[family][qualifier] = []byte(value)
	}
	put, err := hrpc.NewPutStr(ctx, table, rowKey, values)
	if err != nil {
		return err
	}
	if _, err := h.client.Put(put); err != nil {
		return storeError("put "+table+"/"+rowKey, err)
	}
	return nil
}

func (h *HBaseStore) Close() {
	h.client.Close()
}
