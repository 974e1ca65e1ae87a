package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/lot-ledger/inventory"
)

// Read projections. Nothing in this file mutates state; results are
// consistent as of the read.

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	DefaultChartDays = 30
	MaxChartDays     = 366
	DefaultTopLots   = 5
)

// =============================================================================
// PAGINATION
// =============================================================================

// Page is one page of a listing. Page numbers start at 1.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func newPage[T any](items []T, page, size, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}
}

// =============================================================================
// LISTINGS
// =============================================================================

type LotQuery struct {
	Search   string
	Page     int
	PageSize int
}

// ListLots returns lots whose number contains Search, newest first.
func (e *Engine) ListLots(ctx context.Context, tenantID inventory.TenantID, q LotQuery) (Page[*inventory.Lot], error) {
	page, size := normalizePage(q.Page, q.PageSize)
	lots, total, err := e.store.ListLots(ctx, tenantID, inventory.LotFilter{
		Search: q.Search,
		Offset: (page - 1) * size,
		Limit:  size,
	})
	if err != nil {
		return Page[*inventory.Lot]{}, e.fail(e.tenantLog(tenantID), "list lots", err)
	}
	return newPage(lots, page, size, total), nil
}

type TransactionQuery struct {
	LotID    inventory.LotID
	Search   string
	Page     int
	PageSize int
}

func (q TransactionQuery) filter() inventory.TransactionFilter {
	return inventory.TransactionFilter{LotID: q.LotID, Search: q.Search}
}

// ListTransactions returns transactions newest first, optionally for one
// lot and filtered by lot number, customer, invoice or seller name.
func (e *Engine) ListTransactions(ctx context.Context, tenantID inventory.TenantID, q TransactionQuery) (Page[*inventory.TransactionView], error) {
	page, size := normalizePage(q.Page, q.PageSize)
	filter := q.filter()
	filter.Offset = (page - 1) * size
	filter.Limit = size

	views, total, err := e.store.ListTransactions(ctx, tenantID, filter)
	if err != nil {
		return Page[*inventory.TransactionView]{}, e.fail(e.tenantLog(tenantID), "list transactions", err)
	}
	return newPage(views, page, size, total), nil
}

// GetTransaction returns one transaction. If its lot has been deleted the
// view carries the DeletedLotNumber placeholder instead of failing.
func (e *Engine) GetTransaction(ctx context.Context, tenantID inventory.TenantID, id inventory.TransactionID) (*inventory.TransactionView, error) {
	v, err := e.store.GetTransaction(ctx, tenantID, id)
	if err != nil {
		return nil, e.fail(e.tenantLog(tenantID), "get transaction", err)
	}
	return v, nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

type Dashboard struct {
	TotalInvestment inventory.Money
	TotalRevenue    inventory.Money
	TotalProfit     inventory.Money
	LotCount        int
	LotsInStock     int
	TotalPieces     int
	RemainingPieces int
}

// Dashboard sums the stored lot aggregates. Profit is the sum of the lots'
// realised profit, never revenue minus investment.
func (e *Engine) Dashboard(ctx context.Context, tenantID inventory.TenantID) (*Dashboard, error) {
	lots, err := e.store.AllLots(ctx, tenantID)
	if err != nil {
		return nil, e.fail(e.tenantLog(tenantID), "dashboard", err)
	}

	d := &Dashboard{
		TotalInvestment: decimal.Zero,
		TotalRevenue:    decimal.Zero,
		TotalProfit:     decimal.Zero,
		LotCount:        len(lots),
	}
	for _, lot := range lots {
		d.TotalInvestment = d.TotalInvestment.Add(lot.TotalInvestment)
		d.TotalRevenue = d.TotalRevenue.Add(lot.TotalRevenue)
		d.TotalProfit = d.TotalProfit.Add(lot.TotalProfit)

		quantity, remaining := lot.Quantities()
		d.TotalPieces += quantity
		d.RemainingPieces += remaining
		if remaining > 0 {
			d.LotsInStock++
		}
	}
	return d, nil
}

// =============================================================================
// CHARTS
// =============================================================================

type ChartQuery struct {
	Days int // trailing window including today; default 30
	TopN int // number of lots in TopLots; default 5
}

// DailyPoint is one UTC day of sales.
type DailyPoint struct {
	Date    string // YYYY-MM-DD
	Revenue inventory.Money
	Profit  inventory.Money
}

type LotRevenue struct {
	LotID     inventory.LotID
	LotNumber string
	Revenue   inventory.Money
	Profit    inventory.Money
}

type LotStock struct {
	LotID     inventory.LotID
	LotNumber string
	Sold      int
	Remaining int
}

type Charts struct {
	Daily   []DailyPoint
	TopLots []LotRevenue
	Stock   []LotStock
}

// Charts builds the dashboard series: revenue and profit per day over the
// trailing window (every day present, zero-filled), the top lots by
// revenue, and sold versus remaining pieces per lot.
func (e *Engine) Charts(ctx context.Context, tenantID inventory.TenantID, q ChartQuery) (*Charts, error) {
	log := e.tenantLog(tenantID)
	days := q.Days
	if days < 1 {
		days = DefaultChartDays
	}
	if days > MaxChartDays {
		days = MaxChartDays
	}
	topN := q.TopN
	if topN < 1 {
		topN = DefaultTopLots
	}

	today := e.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(days - 1))

	txs, err := e.store.TransactionsSince(ctx, tenantID, from)
	if err != nil {
		return nil, e.fail(log, "charts", err)
	}
	lots, err := e.store.AllLots(ctx, tenantID)
	if err != nil {
		return nil, e.fail(log, "charts", err)
	}

	return &Charts{
		Daily:   dailySeries(txs, from, days),
		TopLots: topLots(lots, topN),
		Stock:   stockSeries(lots),
	}, nil
}

func dailySeries(txs []*inventory.Transaction, from time.Time, days int) []DailyPoint {
	points := make([]DailyPoint, days)
	index := make(map[string]int, days)
	for i := range points {
		date := from.AddDate(0, 0, i).Format(time.DateOnly)
		points[i] = DailyPoint{Date: date, Revenue: decimal.Zero, Profit: decimal.Zero}
		index[date] = i
	}
	for _, tx := range txs {
		i, ok := index[tx.CreatedAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		points[i].Revenue = points[i].Revenue.Add(tx.TotalAmount)
		points[i].Profit = points[i].Profit.Add(tx.TotalProfit)
	}
	return points
}

func topLots(lots []*inventory.Lot, n int) []LotRevenue {
	out := make([]LotRevenue, 0, len(lots))
	for _, lot := range lots {
		if !lot.TotalRevenue.IsPositive() {
			continue
		}
		out = append(out, LotRevenue{
			LotID:     lot.ID,
			LotNumber: lot.LotNumber,
			Revenue:   lot.TotalRevenue,
			Profit:    lot.TotalProfit,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].LotNumber < out[j].LotNumber
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func stockSeries(lots []*inventory.Lot) []LotStock {
	out := make([]LotStock, 0, len(lots))
	for _, lot := range lots {
		quantity, remaining := lot.Quantities()
		out = append(out, LotStock{
			LotID:     lot.ID,
			LotNumber: lot.LotNumber,
			Sold:      quantity - remaining,
			Remaining: remaining,
		})
	}
	return out
}

func (e *Engine) tenantLog(tenantID inventory.TenantID) *zap.Logger {
	return e.logger.With(zap.String("tenant_id", string(tenantID)))
}
