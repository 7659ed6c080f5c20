package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tsuna/gohbase"
	"github.com/tsuna/gohbase/hrpc"
	"github.com/tsuna/gohbase/pb"

	"meterdata-etl/models"
)

type fakeHBaseClient struct {
	gohbase.Client
	puts   []*hrpc.Mutate
	putErr error
}

func (f *fakeHBaseClient) Put(p *hrpc.Mutate) (*hrpc.Result, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, p)
	return &hrpc.Result{}, nil
}

type fakeHBaseAdmin struct {
	gohbase.AdminClient
	tables    []*pb.TableName
	created   []string
	createErr error
}

func (f *fakeHBaseAdmin) ListTableNames(t *hrpc.ListTableNames) ([]*pb.TableName, error) {
	return f.tables, nil
}

func (f *fakeHBaseAdmin) CreateTable(t *hrpc.CreateTable) error {
	f.created = append(f.created, string(t.Table()))
	return f.createErr
}

func TestHBaseStoreListTables(t *testing.T) {
	admin := &fakeHBaseAdmin{tables: []*pb.TableName{
		{Namespace: []byte("default"), Qualifier: []byte("electricityConsumption_1234")},
		{Namespace: []byte("etl"), Qualifier: []byte("audit")},
	}}
	store := newHBaseStoreWithClients(&fakeHBaseClient{}, admin)

	tables, err := store.ListTables(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"electricityConsumption_1234", "etl:audit"}, tables)
}

func TestHBaseStoreCreateTable(t *testing.T) {
	admin := &fakeHBaseAdmin{}
	store := newHBaseStoreWithClients(&fakeHBaseClient{}, admin)
	require.NoError(t, store.CreateTable(context.Background(), "gas_42", []string{"m"}))
	require.Equal(t, []string{"gas_42"}, admin.created)

	admin.createErr = errors.New("org.apache.hadoop.hbase.TableExistsException: gas_42")
	require.ErrorIs(t, store.CreateTable(context.Background(), "gas_42", []string{"m"}), ErrTableExists)

	admin.createErr = errors.New("connection refused")
	err := store.CreateTable(context.Background(), "gas_42", []string{"m"})
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestHBaseStorePut(t *testing.T) {
	client := &fakeHBaseClient{}
	store := newHBaseStoreWithClients(client, &fakeHBaseAdmin{})

	err := store.Put(context.Background(), "gas_42", "dev-1~154000", models.ColumnRow{"m:p1": "10.0", "m:v": "10.0", "m:calc": "0"})
	require.NoError(t, err)
	require.Len(t, client.puts, 1)
	require.Equal(t, "gas_42", string(client.puts[0].Table()))
	require.Equal(t, "dev-1~154000", string(client.puts[0].Key()))

	err = store.Put(context.Background(), "gas_42", "dev-1~154000", models.ColumnRow{"p1": "10.0"})
	require.ErrorContains(t, err, "no family")

	client.putErr = errors.New("region server down")
	err = store.Put(context.Background(), "gas_42", "dev-1~154000", models.ColumnRow{"m:p1": "10.0"})
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
