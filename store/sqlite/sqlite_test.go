package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lot-ledger/inventory"
	"github.com/warp/lot-ledger/inventory/storetest"
	"github.com/warp/lot-ledger/store/sqlite"
)

func newStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_Contract(t *testing.T) {
	storetest.Run(t, newStore(t, ":memory:"))
}

func TestSQLite_FileBackedContract(t *testing.T) {
	storetest.Run(t, newStore(t, filepath.Join(t.TempDir(), "ledger.db")))
}

func TestSQLite_Ping(t *testing.T) {
	s := newStore(t, ":memory:")
	assert.NoError(t, s.Ping(context.Background()))
}

func TestSQLite_Reopen(t *testing.T) {
	// GIVEN: A lot written to a database file
	// WHEN: The file is opened again
	// THEN: The migration is idempotent and the lot is still there
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	tenant := &inventory.Tenant{ID: inventory.NewTenantID(), BusinessName: "Acme", Email: "a@example.com", LotPrefix: "LOT-", CreatedAt: time.Now()}
	require.NoError(t, s.InsertTenant(ctx, tenant))
	lot := inventory.NewLot(tenant.ID, inventory.NewUserID(), inventory.LotInput{
		LotNumber: "LOT-0001",
		Items: []inventory.ColorInput{{Color: "Red", Sizes: []inventory.SizeInput{
			{Size: "M", Quantity: 3, PurchaseCostPerPiece: inventory.MustParseMoney("0.10"), SellCostPerPiece: inventory.MustParseMoney("0.20")},
		}}},
	}, time.Now())
	require.NoError(t, s.InsertLot(ctx, lot))
	require.NoError(t, s.Close())

	reopened := newStore(t, path)
	got, err := reopened.GetLot(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	assert.True(t, inventory.MustParseMoney("0.30").Equal(got.TotalInvestment))
}
