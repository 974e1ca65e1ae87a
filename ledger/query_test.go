package ledger_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/lot-ledger/inventory"
	"github.com/warp/lot-ledger/ledger"
)

// fakeClock is advanced by tests to place sales on specific days.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestListLots_PaginationAndSearch(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			_, err := f.engine.CreateLot(ctx, f.admin, redLot(fmt.Sprintf("LOT-%04d", i)))
			require.NoError(t, err)
		}
		_, err := f.engine.CreateLot(ctx, f.admin, redLot("SPRING-1"))
		require.NoError(t, err)

		page, err := f.engine.ListLots(ctx, f.tenant.ID, ledger.LotQuery{Page: 1, PageSize: 4})
		require.NoError(t, err)
		assert.Equal(t, 6, page.TotalItems)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Items, 4)
		assert.Equal(t, "SPRING-1", page.Items[0].LotNumber, "newest first")

		page, err = f.engine.ListLots(ctx, f.tenant.ID, ledger.LotQuery{Page: 2, PageSize: 4})
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "LOT-0001", page.Items[1].LotNumber)

		page, err = f.engine.ListLots(ctx, f.tenant.ID, ledger.LotQuery{Search: "lot-000"})
		require.NoError(t, err)
		assert.Equal(t, 5, page.TotalItems)
		assert.Equal(t, ledger.DefaultPageSize, page.PageSize)

		page, err = f.engine.ListLots(ctx, f.tenant.ID, ledger.LotQuery{Search: "spring"})
		require.NoError(t, err)
		assert.Equal(t, 1, page.TotalItems)
	})
}

func TestListLots_PageBounds(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		page, err := f.engine.ListLots(context.Background(), f.tenant.ID, ledger.LotQuery{Page: -3, PageSize: 1000})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, ledger.MaxPageSize, page.PageSize)
		assert.NotNil(t, page.Items)
		assert.Equal(t, 0, page.TotalPages)
	})
}

func TestListTransactions_Search(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		red, err := f.engine.CreateLot(ctx, f.admin, redLot("LOT-0001"))
		require.NoError(t, err)
		blue, err := f.engine.CreateLot(ctx, f.admin, twoColorLot("SUMMER-7"))
		require.NoError(t, err)

		_, err = f.engine.RecordSale(ctx, f.staff, red.ID, inventory.SaleRequest{
			Items: []inventory.SaleItem{line("Red", "M", 1)}, CustomerName: "Zoe Bakery", InvoiceNumber: "INV-100",
		})
		require.NoError(t, err)
		_, err = f.engine.RecordSale(ctx, f.admin, blue.ID, inventory.SaleRequest{
			Items: []inventory.SaleItem{line("Blue", "L", 1)}, CustomerName: "Max", InvoiceNumber: "INV-200",
		})
		require.NoError(t, err)

		tests := []struct {
			search string
			want   int
		}{
			{"", 2},
			{"zoe", 1},     // customer
			{"inv-2", 1},   // invoice
			{"alice", 1},   // seller
			{"summer", 1},  // lot number
			{"inv", 2},
			{"nobody", 0},
			{"100%", 0},    // wildcard is literal
		}
		for _, tt := range tests {
			page, err := f.engine.ListTransactions(ctx, f.tenant.ID, ledger.TransactionQuery{Search: tt.search})
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.TotalItems, "search %q", tt.search)
		}

		page, err := f.engine.ListTransactions(ctx, f.tenant.ID, ledger.TransactionQuery{LotID: red.ID})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "LOT-0001", page.Items[0].LotNumber)
		assert.Equal(t, "Sam", page.Items[0].SellerName)
		assert.False(t, page.Items[0].LotDeleted)
	})
}

func TestGetTransaction_OtherTenant_NotFound(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		lot, err := f.engine.CreateLot(ctx, f.admin, redLot("LOT-0001"))
		require.NoError(t, err)
		res, err := f.engine.RecordSale(ctx, f.staff, lot.ID, sale(line("Red", "M", 1)))
		require.NoError(t, err)

		other := seedTenant(t, f.store, "Other Co", "other@example.com")
		_, err = f.engine.GetTransaction(ctx, other.ID, res.Transaction.ID)
		assert.ErrorIs(t, err, inventory.ErrNotFound)
	})
}

func TestDashboard_SumsStoredAggregates(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		// GIVEN: Two lots, one sold out and one with unsold stock
		// WHEN: Building the dashboard
		// THEN: Profit is realised margin only; unsold investment does not reduce it
		ctx := context.Background()
		sold, err := f.engine.CreateLot(ctx, f.admin, redLot("LOT-0001"))
		require.NoError(t, err)
		_, err = f.engine.CreateLot(ctx, f.admin, twoColorLot("LOT-0002"))
		require.NoError(t, err)
		_, err = f.engine.RecordSale(ctx, f.staff, sold.ID, sale(line("Red", "M", 10)))
		require.NoError(t, err)

		d, err := f.engine.Dashboard(ctx, f.tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, d.LotCount)
		assert.Equal(t, 1, d.LotsInStock)
		assertMoney(t, "103.00", d.TotalInvestment) // 50 + 53
		assertMoney(t, "80.00", d.TotalRevenue)
		assertMoney(t, "30.00", d.TotalProfit)
		assert.Equal(t, 22, d.TotalPieces)
		assert.Equal(t, 12, d.RemainingPieces)
	})
}

func TestCharts_DailySeriesTopLotsAndStock(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)}
			f := newFixture(t, s, ledger.WithClock(clock.Now))
			ctx := context.Background()

			red, err := f.engine.CreateLot(ctx, f.admin, redLot("LOT-0001"))
			require.NoError(t, err)
			mixed, err := f.engine.CreateLot(ctx, f.admin, twoColorLot("LOT-0002"))
			require.NoError(t, err)

			// Outside a 7-day window
			clock.now = time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)
			_, err = f.engine.RecordSale(ctx, f.staff, red.ID, sale(line("Red", "M", 1)))
			require.NoError(t, err)

			clock.now = time.Date(2025, time.March, 8, 9, 0, 0, 0, time.UTC)
			_, err = f.engine.RecordSale(ctx, f.staff, red.ID, sale(line("Red", "M", 2)))
			require.NoError(t, err)
			clock.now = time.Date(2025, time.March, 8, 18, 0, 0, 0, time.UTC)
			_, err = f.engine.RecordSale(ctx, f.staff, mixed.ID, sale(line("Blue", "L", 1)))
			require.NoError(t, err)

			clock.now = time.Date(2025, time.March, 10, 23, 59, 0, 0, time.UTC)
			charts, err := f.engine.Charts(ctx, f.tenant.ID, ledger.ChartQuery{Days: 7, TopN: 1})
			require.NoError(t, err)

			require.Len(t, charts.Daily, 7)
			assert.Equal(t, "2025-03-04", charts.Daily[0].Date)
			assert.Equal(t, "2025-03-10", charts.Daily[6].Date)
			day8 := charts.Daily[4]
			assert.Equal(t, "2025-03-08", day8.Date)
			assertMoney(t, "31.00", day8.Revenue) // 2×8 + 15
			assertMoney(t, "11.00", day8.Profit)  // 2×3 + 5
			assert.True(t, charts.Daily[5].Revenue.IsZero())

			require.Len(t, charts.TopLots, 1)
			assert.Equal(t, "LOT-0001", charts.TopLots[0].LotNumber) // 24.00 beats 15.00
			assertMoney(t, "24.00", charts.TopLots[0].Revenue)

			require.Len(t, charts.Stock, 2)
			stock := map[string]ledger.LotStock{}
			for _, st := range charts.Stock {
				stock[st.LotNumber] = st
			}
			assert.Equal(t, 3, stock["LOT-0001"].Sold)
			assert.Equal(t, 7, stock["LOT-0001"].Remaining)
			assert.Equal(t, 1, stock["LOT-0002"].Sold)
			assert.Equal(t, 11, stock["LOT-0002"].Remaining)
		})
	}
}

func TestCharts_DefaultWindow(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		charts, err := f.engine.Charts(context.Background(), f.tenant.ID, ledger.ChartQuery{})
		require.NoError(t, err)
		assert.Len(t, charts.Daily, ledger.DefaultChartDays)
		assert.Empty(t, charts.TopLots)
		assert.Empty(t, charts.Stock)
	})
}

func TestExportTransactions_OneRowPerLine(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		lot, err := f.engine.CreateLot(ctx, f.admin, twoColorLot("LOT-0001"))
		require.NoError(t, err)
		_, err = f.engine.RecordSale(ctx, f.staff, lot.ID, inventory.SaleRequest{
			Items:        []inventory.SaleItem{line("Red", "S", 1), line("Blue", "L", 2)},
			CustomerName: "Zoe",
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, f.engine.ExportTransactions(ctx, f.tenant.ID, ledger.TransactionQuery{}, &buf))

		wb, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer wb.Close()

		rows, err := wb.GetRows("Transactions")
		require.NoError(t, err)
		require.Len(t, rows, 3) // header + 2 lines
		assert.Equal(t, "Date", rows[0][0])
		assert.Equal(t, "LOT-0001", rows[1][2])
		assert.Equal(t, "Sam", rows[1][3])
		assert.Equal(t, "Zoe", rows[1][4])
		assert.Equal(t, "Red", rows[1][6])
		assert.Equal(t, "Blue", rows[2][6])
		assert.Equal(t, "2", rows[2][8])

		width, err := wb.GetColWidth("Transactions", "L")
		require.NoError(t, err)
		assert.Equal(t, 16.0, width)
	})
}
