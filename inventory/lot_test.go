package inventory_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lot-ledger/inventory"
)

func money(s string) inventory.Money { return inventory.MustParseMoney(s) }

func sampleInput() inventory.LotInput {
	return inventory.LotInput{
		LotNumber: "LOT-0001",
		Items: []inventory.ColorInput{
			{Color: "Red", Sizes: []inventory.SizeInput{
				{Size: "M", Quantity: 10, PurchaseCostPerPiece: money("5.00"), SellCostPerPiece: money("8.00")},
				{Size: "L", Quantity: 4, PurchaseCostPerPiece: money("6.00"), SellCostPerPiece: money("9.50")},
			}},
			{Color: "Black", Sizes: []inventory.SizeInput{
				{Size: "M", Quantity: 3, PurchaseCostPerPiece: money("7.25"), SellCostPerPiece: money("7.00")},
			}},
		},
	}
}

func newSampleLot(t *testing.T) *inventory.Lot {
	t.Helper()
	in := sampleInput()
	require.NoError(t, in.Validate())
	return inventory.NewLot("tenant-1", "user-1", in, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
}

func TestNewLot_SeedsRemainingAndInvestment(t *testing.T) {
	lot := newSampleLot(t)

	assertEqualMoney(t, "95.75", lot.TotalInvestment) // 50 + 24 + 21.75
	assert.True(t, lot.TotalRevenue.IsZero())
	assert.True(t, lot.TotalProfit.IsZero())

	quantity, remaining := lot.Quantities()
	assert.Equal(t, 17, quantity)
	assert.Equal(t, 17, remaining)
	assert.True(t, lot.InStock())
	assert.NoError(t, lot.CheckInvariants())
}

func TestLot_Lookup(t *testing.T) {
	lot := newSampleLot(t)

	s, err := lot.Lookup("Black", "M")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Quantity)

	_, err = lot.Lookup("Green", "M")
	var vErr *inventory.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "color")

	_, err = lot.Lookup("Black", "L")
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "size")
}

func TestLot_ApplySale_AccumulatesRevenueAndMargin(t *testing.T) {
	lot := newSampleLot(t)

	sale, err := lot.ApplySale([]inventory.SaleItem{
		{Color: "Red", Size: "M", Quantity: 3},
		{Color: "Black", Size: "M", Quantity: 2}, // sold below cost
	})
	require.NoError(t, err)

	require.Len(t, sale.Items, 2)
	assertEqualMoney(t, "24.00", sale.Items[0].Total)
	assertEqualMoney(t, "5.00", sale.Items[0].PurchaseCostPerPiece)
	assertEqualMoney(t, "38.00", sale.Revenue) // 24 + 14
	assertEqualMoney(t, "8.50", sale.Profit)   // 9 − 0.5

	assertEqualMoney(t, "38.00", lot.TotalRevenue)
	assertEqualMoney(t, "8.50", lot.TotalProfit)
	assertEqualMoney(t, "95.75", lot.TotalInvestment)

	s, _ := lot.Lookup("Red", "M")
	assert.Equal(t, 7, s.RemainingQuantity)
	assert.Equal(t, 3, s.Sold())
}

func TestLot_ApplySale_FailureLeavesLotUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		lines []inventory.SaleItem
		kind  inventory.Kind
	}{
		{"later line oversells", []inventory.SaleItem{
			{Color: "Red", Size: "M", Quantity: 1},
			{Color: "Red", Size: "L", Quantity: 5},
		}, inventory.KindInsufficientStock},
		{"later line unknown", []inventory.SaleItem{
			{Color: "Red", Size: "M", Quantity: 1},
			{Color: "Blue", Size: "M", Quantity: 1},
		}, inventory.KindValidation},
		{"split lines oversell together", []inventory.SaleItem{
			{Color: "Black", Size: "M", Quantity: 2},
			{Color: "Black", Size: "M", Quantity: 2},
		}, inventory.KindInsufficientStock},
		{"zero quantity", []inventory.SaleItem{
			{Color: "Red", Size: "M", Quantity: 0},
		}, inventory.KindValidation},
		{"no lines", nil, inventory.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot := newSampleLot(t)
			before := lot.Items()

			_, err := lot.ApplySale(tt.lines)
			require.Error(t, err)
			assert.Equal(t, tt.kind, inventory.KindOf(err))
			assert.Equal(t, before, lot.Items())
			assert.True(t, lot.TotalRevenue.IsZero())
			assert.True(t, lot.TotalProfit.IsZero())
		})
	}
}

func TestLot_ApplySale_ExactStockSucceeds(t *testing.T) {
	lot := newSampleLot(t)
	_, err := lot.ApplySale([]inventory.SaleItem{{Color: "Red", Size: "L", Quantity: 4}})
	require.NoError(t, err)

	s, _ := lot.Lookup("Red", "L")
	assert.Equal(t, 0, s.RemainingQuantity)

	_, err = lot.ApplySale([]inventory.SaleItem{{Color: "Red", Size: "L", Quantity: 1}})
	var stock *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 0, stock.Available)
	assert.Equal(t, 1, stock.Requested)
}

func TestLot_ApplySale_HugeQuantitiesCannotWrap(t *testing.T) {
	// GIVEN: Red/M has 10 pieces
	// WHEN: Two lines for Red/M whose sum overflows int
	// THEN: Insufficient stock, and the lot keeps its invariants
	tests := []struct {
		name  string
		lines []inventory.SaleItem
	}{
		{"summed lines", []inventory.SaleItem{
			{Color: "Red", Size: "M", Quantity: 5},
			{Color: "Red", Size: "M", Quantity: math.MaxInt - 2},
		}},
		{"single line", []inventory.SaleItem{
			{Color: "Red", Size: "M", Quantity: math.MaxInt},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot := newSampleLot(t)

			_, err := lot.ApplySale(tt.lines)
			var stock *inventory.InsufficientStockError
			require.ErrorAs(t, err, &stock)
			assert.Equal(t, 10, stock.Available)
			assert.Positive(t, stock.Requested)

			s, _ := lot.Lookup("Red", "M")
			assert.Equal(t, 10, s.RemainingQuantity)
			assert.True(t, lot.TotalRevenue.IsZero())
			assert.NoError(t, lot.CheckInvariants())
		})
	}
}

func TestLot_Replace_ResetsStockKeepsTotals(t *testing.T) {
	lot := newSampleLot(t)
	_, err := lot.ApplySale([]inventory.SaleItem{{Color: "Red", Size: "M", Quantity: 5}})
	require.NoError(t, err)

	in := inventory.LotInput{
		LotNumber: "LOT-0001-B",
		Items: []inventory.ColorInput{{Color: "White", Sizes: []inventory.SizeInput{
			{Size: "S", Quantity: 2, PurchaseCostPerPiece: money("1.00"), SellCostPerPiece: money("2.00")},
		}}},
	}
	require.NoError(t, in.Validate())
	later := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	lot.Replace(in, later)

	assert.Equal(t, "LOT-0001-B", lot.LotNumber)
	assert.Equal(t, later, lot.UpdatedAt)
	assertEqualMoney(t, "2.00", lot.TotalInvestment)
	assertEqualMoney(t, "40.00", lot.TotalRevenue)
	assertEqualMoney(t, "15.00", lot.TotalProfit)

	s, err := lot.Lookup("White", "S")
	require.NoError(t, err)
	assert.Equal(t, 2, s.RemainingQuantity)
	_, err = lot.Lookup("Red", "M")
	assert.Error(t, err, "old items are gone")
}

func TestLot_CloneIsIndependent(t *testing.T) {
	lot := newSampleLot(t)
	clone := lot.Clone()

	_, err := clone.ApplySale([]inventory.SaleItem{{Color: "Red", Size: "M", Quantity: 1}})
	require.NoError(t, err)

	s, _ := lot.Lookup("Red", "M")
	assert.Equal(t, 10, s.RemainingQuantity)
	assert.True(t, lot.TotalRevenue.IsZero())
}

func TestLot_ItemsReturnsCopy(t *testing.T) {
	lot := newSampleLot(t)
	items := lot.Items()
	items[0].Sizes[0].RemainingQuantity = -5

	assert.NoError(t, lot.CheckInvariants())
}

func TestLot_CheckInvariants_DetectsOutOfRange(t *testing.T) {
	lot := &inventory.Lot{LotNumber: "LOT-X"}
	lot.SetItems([]inventory.Color{{Color: "Red", Sizes: []inventory.Size{{Size: "M", Quantity: 2, RemainingQuantity: 3}}}})
	assert.Error(t, lot.CheckInvariants())
}

func TestTransactionView_ResolveLot(t *testing.T) {
	var v inventory.TransactionView
	v.ResolveLot(nil)
	assert.True(t, v.LotDeleted)
	assert.Equal(t, inventory.DeletedLotNumber, v.LotNumber)

	v.ResolveLot(&inventory.Lot{LotNumber: "LOT-0009"})
	assert.False(t, v.LotDeleted)
	assert.Equal(t, "LOT-0009", v.LotNumber)
}

func TestPrincipal_CanDelete(t *testing.T) {
	admin := inventory.Principal{UserID: "a", Role: inventory.RoleAdmin}
	staff := inventory.Principal{UserID: "s", Role: inventory.RoleStaff}

	assert.True(t, admin.CanDelete("someone-else"))
	assert.True(t, staff.CanDelete("s"))
	assert.False(t, staff.CanDelete("someone-else"))
}

func assertEqualMoney(t *testing.T, want string, got inventory.Money) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "want %s, got %s", want, got.String())
}
