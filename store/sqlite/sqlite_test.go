package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/store/sqlite"
	"github.com/warp/warehouse-engine/store/storetest"
	"github.com/warp/warehouse-engine/warehousing"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) warehousing.TxStore {
		return newStore(t)
	})
}

func TestSQLiteStore_Ping(t *testing.T) {
	st := newStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	// GIVEN: A file-backed store with one warehouse
	path := filepath.Join(t.TempDir(), "warehouse.db")
	st, err := sqlite.New(path)
	require.NoError(t, err)
	svc := warehousing.NewService(st, zerolog.Nop())
	_, err = svc.CreateWarehouse(context.Background(), warehousing.Identity{UserID: "owner-1", Role: warehousing.RoleOwner},
		warehousing.CreateWarehouseCommand{Name: "Nashik Central", TotalCapacity: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// WHEN: It is opened again, running the migration a second time
	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	// THEN: The warehouse is still there
	all, err := reopened.ListWarehouses(context.Background(), warehousing.WarehouseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "owner-1", all[0].OwnerID)
}
