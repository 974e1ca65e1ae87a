// Package storetest is the behavioural contract every inventory.TxStore
// must satisfy. Backend packages call Run from their own tests.
//
// Each case seeds its own tenant, so a single store (for example one
// Postgres container) can be shared by the whole suite.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lot-ledger/inventory"
)

// Run executes the contract suite against s.
func Run(t *testing.T, s inventory.TxStore) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s inventory.TxStore)
	}{
		{"LotRoundTrip", testLotRoundTrip},
		{"LotTenantScoping", testLotTenantScoping},
		{"DuplicateLotNumber", testDuplicateLotNumber},
		{"UpdateAndDeleteMissing", testUpdateAndDeleteMissing},
		{"ListLots", testListLots},
		{"TransactionViews", testTransactionViews},
		{"TransactionSearch", testTransactionSearch},
		{"UnicodeSearch", testUnicodeSearch},
		{"TransactionsSince", testTransactionsSince},
		{"WithTxRollback", testWithTxRollback},
		{"WithTxCommit", testWithTxCommit},
		{"Accounts", testAccounts},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) { c.fn(t, s) })
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

var base = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func seedTenant(t *testing.T, s inventory.TxStore) *inventory.Tenant {
	t.Helper()
	tenant := &inventory.Tenant{
		ID:           inventory.NewTenantID(),
		BusinessName: "Acme",
		Email:        uuid.NewString() + "@example.com",
		LotPrefix:    inventory.DefaultLotPrefix,
		CreatedAt:    base,
	}
	require.NoError(t, s.InsertTenant(context.Background(), tenant))
	return tenant
}

func seedUser(t *testing.T, s inventory.TxStore, tenantID inventory.TenantID, name string) *inventory.User {
	t.Helper()
	u := &inventory.User{
		ID:           inventory.NewUserID(),
		TenantID:     tenantID,
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         inventory.RoleStaff,
		CreatedAt:    base,
	}
	require.NoError(t, s.InsertUser(context.Background(), u))
	return u
}

func newLot(tenantID inventory.TenantID, number string, created time.Time) *inventory.Lot {
	in := inventory.LotInput{
		LotNumber: number,
		Items: []inventory.ColorInput{
			{Color: "Red", Sizes: []inventory.SizeInput{
				{Size: "S", Quantity: 2, PurchaseCostPerPiece: inventory.MustParseMoney("1.125"), SellCostPerPiece: inventory.MustParseMoney("3")},
				{Size: "M", Quantity: 5, PurchaseCostPerPiece: inventory.MustParseMoney("5.00"), SellCostPerPiece: inventory.MustParseMoney("8.00")},
			}},
			{Color: "Blue", Sizes: []inventory.SizeInput{
				{Size: "L", Quantity: 1, PurchaseCostPerPiece: inventory.MustParseMoney("10"), SellCostPerPiece: inventory.MustParseMoney("15")},
			}},
		},
	}
	return inventory.NewLot(tenantID, inventory.NewUserID(), in, created)
}

func insertLot(t *testing.T, s inventory.TxStore, tenantID inventory.TenantID, number string, created time.Time) *inventory.Lot {
	t.Helper()
	lot := newLot(tenantID, number, created)
	require.NoError(t, s.InsertLot(context.Background(), lot))
	return lot
}

func insertSale(t *testing.T, s inventory.TxStore, lot *inventory.Lot, seller *inventory.User, customer, invoice string, at time.Time) *inventory.Transaction {
	t.Helper()
	tx := &inventory.Transaction{
		ID:       inventory.NewTransactionID(),
		TenantID: lot.TenantID,
		LotID:    lot.ID,
		Items: []inventory.SoldItem{{
			Color: "Red", Size: "M", Quantity: 1,
			SellPricePerPiece:    inventory.MustParseMoney("8.00"),
			PurchaseCostPerPiece: inventory.MustParseMoney("5.00"),
			Total:                inventory.MustParseMoney("8.00"),
		}},
		TotalAmount:   inventory.MustParseMoney("8.00"),
		TotalProfit:   inventory.MustParseMoney("3.00"),
		SoldBy:        seller.ID,
		CustomerName:  customer,
		InvoiceNumber: invoice,
		CreatedAt:     at,
	}
	require.NoError(t, s.InsertTransaction(context.Background(), tx))
	return tx
}

func assertMoney(t *testing.T, want string, got inventory.Money) {
	t.Helper()
	assert.True(t, inventory.MustParseMoney(want).Equal(got), "want %s, got %s", want, got.String())
}

// =============================================================================
// LOTS
// =============================================================================

func testLotRoundTrip(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	lot := insertLot(t, s, tenant.ID, "LOT-0001", base)

	got, err := s.GetLot(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, lot.ID, got.ID)
	assert.Equal(t, "LOT-0001", got.LotNumber)
	assert.Equal(t, lot.CreatedBy, got.CreatedBy)
	assert.True(t, base.Equal(got.CreatedAt), "created at %s", got.CreatedAt)
	assertMoney(t, "37.25", got.TotalInvestment) // 2.25 + 25 + 10
	assert.True(t, got.TotalRevenue.IsZero())

	items := got.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Red", items[0].Color)
	assert.Equal(t, []string{"S", "M"}, []string{items[0].Sizes[0].Size, items[0].Sizes[1].Size})
	assertMoney(t, "1.125", items[0].Sizes[0].PurchaseCostPerPiece)
	assert.Equal(t, 2, items[0].Sizes[0].RemainingQuantity)

	// The color index is rebuilt on load.
	_, err = got.Lookup("Blue", "L")
	assert.NoError(t, err)

	byNumber, err := s.FindLotByNumber(ctx, tenant.ID, "LOT-0001")
	require.NoError(t, err)
	assert.Equal(t, lot.ID, byNumber.ID)

	// Sale mutations survive UpdateLot.
	_, err = got.ApplySale([]inventory.SaleItem{{Color: "Red", Size: "M", Quantity: 2}})
	require.NoError(t, err)
	require.NoError(t, s.UpdateLot(ctx, got))

	reloaded, err := s.GetLotForUpdate(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	m, err := reloaded.Lookup("Red", "M")
	require.NoError(t, err)
	assert.Equal(t, 3, m.RemainingQuantity)
	assertMoney(t, "16.00", reloaded.TotalRevenue)
	assertMoney(t, "6.00", reloaded.TotalProfit)
}

func testLotTenantScoping(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	mine := seedTenant(t, s)
	theirs := seedTenant(t, s)
	lot := insertLot(t, s, mine.ID, "LOT-0001", base)

	_, err := s.GetLot(ctx, theirs.ID, lot.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = s.FindLotByNumber(ctx, theirs.ID, "LOT-0001")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	assert.ErrorIs(t, s.DeleteLot(ctx, theirs.ID, lot.ID), inventory.ErrNotFound)

	all, err := s.AllLots(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Lot numbers are unique per tenant only.
	insertLot(t, s, theirs.ID, "LOT-0001", base)
}

func testDuplicateLotNumber(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	insertLot(t, s, tenant.ID, "LOT-0001", base)
	second := insertLot(t, s, tenant.ID, "LOT-0002", base.Add(time.Minute))

	err := s.InsertLot(ctx, newLot(tenant.ID, "LOT-0001", base))
	assert.ErrorIs(t, err, inventory.ErrDuplicateLotNumber)

	second.LotNumber = "LOT-0001"
	assert.ErrorIs(t, s.UpdateLot(ctx, second), inventory.ErrDuplicateLotNumber)
}

func testUpdateAndDeleteMissing(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	ghost := newLot(tenant.ID, "LOT-0404", base)

	assert.ErrorIs(t, s.UpdateLot(ctx, ghost), inventory.ErrNotFound)
	assert.ErrorIs(t, s.DeleteLot(ctx, tenant.ID, ghost.ID), inventory.ErrNotFound)
	_, err := s.GetLot(ctx, tenant.ID, ghost.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = s.LatestLot(ctx, tenant.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	lot := insertLot(t, s, tenant.ID, "LOT-0001", base)
	require.NoError(t, s.DeleteLot(ctx, tenant.ID, lot.ID))
	_, err = s.GetLot(ctx, tenant.ID, lot.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func testListLots(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	for i := 1; i <= 5; i++ {
		insertLot(t, s, tenant.ID, fmt.Sprintf("LOT-%04d", i), base.Add(time.Duration(i)*time.Hour))
	}
	// Same timestamp as LOT-0005: insertion order breaks the tie.
	insertLot(t, s, tenant.ID, "SALE_50%", base.Add(5*time.Hour))

	latest, err := s.LatestLot(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "SALE_50%", latest.LotNumber)

	lots, total, err := s.ListLots(ctx, tenant.ID, inventory.LotFilter{Offset: 0, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, lots, 4)
	assert.Equal(t, []string{"SALE_50%", "LOT-0005", "LOT-0004", "LOT-0003"}, numbers(lots))

	lots, total, err = s.ListLots(ctx, tenant.ID, inventory.LotFilter{Offset: 4, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Equal(t, []string{"LOT-0002", "LOT-0001"}, numbers(lots))

	tests := []struct {
		search string
		want   int
	}{
		{"lot-", 5},
		{"LOT-0003", 1},
		{"_50%", 1},
		{"%", 1}, // literal percent
		{"_", 1}, // literal underscore
		{"X", 0},
	}
	for _, tt := range tests {
		_, total, err := s.ListLots(ctx, tenant.ID, inventory.LotFilter{Search: tt.search, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, tt.want, total, "search %q", tt.search)
	}

	all, err := s.AllLots(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func numbers(lots []*inventory.Lot) []string {
	out := make([]string, len(lots))
	for i, l := range lots {
		out[i] = l.LotNumber
	}
	return out
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func testTransactionViews(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	seller := seedUser(t, s, tenant.ID, "sam")
	lot := insertLot(t, s, tenant.ID, "LOT-0001", base)
	tx := insertSale(t, s, lot, seller, "Zoe", "INV-1", base.Add(time.Hour))

	v, err := s.GetTransaction(ctx, tenant.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "LOT-0001", v.LotNumber)
	assert.False(t, v.LotDeleted)
	assert.Equal(t, "sam", v.SellerName)
	assert.Equal(t, "Zoe", v.CustomerName)
	require.Len(t, v.Items, 1)
	assertMoney(t, "8.00", v.Items[0].Total)
	assertMoney(t, "3.00", v.TotalProfit)

	_, err = s.GetTransaction(ctx, seedTenant(t, s).ID, tx.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	require.NoError(t, s.DeleteLot(ctx, tenant.ID, lot.ID))
	v, err = s.GetTransaction(ctx, tenant.ID, tx.ID)
	require.NoError(t, err)
	assert.True(t, v.LotDeleted)
	assert.Equal(t, inventory.DeletedLotNumber, v.LotNumber)
	assert.Equal(t, lot.ID, v.LotID)
}

func testTransactionSearch(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	sam := seedUser(t, s, tenant.ID, "sam")
	olga := seedUser(t, s, tenant.ID, "olga")
	red := insertLot(t, s, tenant.ID, "LOT-0001", base)
	blue := insertLot(t, s, tenant.ID, "SUMMER-7", base)

	first := insertSale(t, s, red, sam, "Zoe Bakery", "INV-100", base.Add(time.Hour))
	insertSale(t, s, blue, olga, "Max", "INV-200", base.Add(2*time.Hour))
	third := insertSale(t, s, red, olga, "", "", base.Add(2*time.Hour))

	views, total, err := s.ListTransactions(ctx, tenant.ID, inventory.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, views, 3)
	assert.Equal(t, third.ID, views[0].ID, "newest first, insertion order breaks ties")
	assert.Equal(t, first.ID, views[2].ID)

	views, total, err = s.ListTransactions(ctx, tenant.ID, inventory.TransactionFilter{LotID: red.ID, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, views, 1)
	assert.Equal(t, third.ID, views[0].ID)

	tests := []struct {
		search string
		want   int
	}{
		{"zoe", 1},
		{"INV-2", 1},
		{"OLGA", 2},
		{"summer", 1},
		{"lot-0001", 2},
		{"%", 0},
	}
	for _, tt := range tests {
		_, total, err := s.ListTransactions(ctx, tenant.ID, inventory.TransactionFilter{Search: tt.search})
		require.NoError(t, err)
		assert.Equal(t, tt.want, total, "search %q", tt.search)
	}

	// A deleted lot's number no longer matches, but its sales stay listed.
	require.NoError(t, s.DeleteLot(ctx, tenant.ID, blue.ID))
	_, total, err = s.ListTransactions(ctx, tenant.ID, inventory.TransactionFilter{Search: "summer"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	_, total, err = s.ListTransactions(ctx, tenant.ID, inventory.TransactionFilter{LotID: blue.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func testUnicodeSearch(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	seller := seedUser(t, s, tenant.ID, "Øyvind")
	lot := insertLot(t, s, tenant.ID, "ÉTÉ-2025", base)
	insertSale(t, s, lot, seller, "Zoë Ärger", "INV-1", base.Add(time.Hour))

	lotTests := []struct {
		search string
		want   int
	}{
		{"été", 1},
		{"ÉTÉ", 1},
		{"-2025", 1},
		{"ete", 0}, // accents are not stripped
	}
	for _, tt := range lotTests {
		_, total, err := s.ListLots(ctx, tenant.ID, inventory.LotFilter{Search: tt.search, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, tt.want, total, "lot search %q", tt.search)
	}

	txTests := []struct {
		search string
		want   int
	}{
		{"ärger", 1},
		{"ZOË", 1},
		{"øyvind", 1},
		{"été-2025", 1},
	}
	for _, tt := range txTests {
		_, total, err := s.ListTransactions(ctx, tenant.ID, inventory.TransactionFilter{Search: tt.search})
		require.NoError(t, err)
		assert.Equal(t, tt.want, total, "transaction search %q", tt.search)
	}
}

func testTransactionsSince(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	seller := seedUser(t, s, tenant.ID, "sam")
	lot := insertLot(t, s, tenant.ID, "LOT-0001", base)

	insertSale(t, s, lot, seller, "old", "", base.Add(-48*time.Hour))
	late := insertSale(t, s, lot, seller, "late", "", base.Add(3*time.Hour))
	edge := insertSale(t, s, lot, seller, "edge", "", base)

	txs, err := s.TransactionsSince(ctx, tenant.ID, base)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, edge.ID, txs[0].ID, "oldest first, inclusive bound")
	assert.Equal(t, late.ID, txs[1].ID)
}

// =============================================================================
// UNITS OF WORK
// =============================================================================

var errAbort = errors.New("abort")

func testWithTxRollback(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)
	seller := seedUser(t, s, tenant.ID, "sam")
	lot := insertLot(t, s, tenant.ID, "LOT-0001", base)

	err := s.WithTx(ctx, func(tx inventory.Store) error {
		locked, err := tx.GetLotForUpdate(ctx, tenant.ID, lot.ID)
		if err != nil {
			return err
		}
		if _, err := locked.ApplySale([]inventory.SaleItem{{Color: "Red", Size: "M", Quantity: 5}}); err != nil {
			return err
		}
		if err := tx.UpdateLot(ctx, locked); err != nil {
			return err
		}
		if err := tx.InsertLot(ctx, newLot(tenant.ID, "LOT-0002", base)); err != nil {
			return err
		}
		sale := &inventory.Transaction{
			ID: inventory.NewTransactionID(), TenantID: tenant.ID, LotID: lot.ID,
			Items:       []inventory.SoldItem{},
			TotalAmount: inventory.MustParseMoney("40"), TotalProfit: inventory.MustParseMoney("15"),
			SoldBy: seller.ID, CreatedAt: base,
		}
		if err := tx.InsertTransaction(ctx, sale); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	got, err := s.GetLot(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	m, _ := got.Lookup("Red", "M")
	assert.Equal(t, 5, m.RemainingQuantity)
	assert.True(t, got.TotalRevenue.IsZero())

	_, err = s.FindLotByNumber(ctx, tenant.ID, "LOT-0002")
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	_, total, err := s.ListTransactions(ctx, tenant.ID, inventory.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func testWithTxCommit(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)

	err := s.WithTx(ctx, func(tx inventory.Store) error {
		if err := tx.InsertLot(ctx, newLot(tenant.ID, "LOT-0001", base)); err != nil {
			return err
		}
		// Reads inside the unit of work see its own writes.
		_, err := tx.FindLotByNumber(ctx, tenant.ID, "LOT-0001")
		return err
	})
	require.NoError(t, err)

	_, err = s.FindLotByNumber(ctx, tenant.ID, "LOT-0001")
	assert.NoError(t, err)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func testAccounts(t *testing.T, s inventory.TxStore) {
	ctx := context.Background()
	tenant := seedTenant(t, s)

	got, err := s.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.Email, got.Email)
	assert.Equal(t, inventory.DefaultLotPrefix, got.LotPrefix)

	dup := *tenant
	dup.ID = inventory.NewTenantID()
	dup.Email = strings.ToUpper(tenant.Email)
	assert.ErrorIs(t, s.InsertTenant(ctx, &dup), inventory.ErrDuplicateEmail)

	got.BusinessName = "Acme Textiles"
	got.LotPrefix = "AT-"
	require.NoError(t, s.UpdateTenant(ctx, got))
	got, err = s.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Textiles", got.BusinessName)
	assert.Equal(t, "AT-", got.LotPrefix)

	_, err = s.GetTenant(ctx, inventory.NewTenantID())
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	alice := &inventory.User{
		ID: inventory.NewUserID(), TenantID: tenant.ID, Name: "Alice", Email: "alice@acme.com",
		PasswordHash: "hash", Role: inventory.RoleAdmin, CreatedAt: base,
	}
	require.NoError(t, s.InsertUser(ctx, alice))

	byEmail, err := s.FindUserByEmail(ctx, tenant.ID, "ALICE@acme.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)
	assert.Equal(t, inventory.RoleAdmin, byEmail.Role)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	clash := *alice
	clash.ID = inventory.NewUserID()
	clash.Email = "Alice@Acme.com"
	assert.ErrorIs(t, s.InsertUser(ctx, &clash), inventory.ErrDuplicateEmail)

	// The same email may exist in another tenant.
	other := seedTenant(t, s)
	elsewhere := *alice
	elsewhere.ID = inventory.NewUserID()
	elsewhere.TenantID = other.ID
	require.NoError(t, s.InsertUser(ctx, &elsewhere))

	_, err = s.GetUser(ctx, other.ID, alice.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = s.FindUserByEmail(ctx, tenant.ID, "nobody@acme.com")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}
