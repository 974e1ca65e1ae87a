/*
lot.go - The Lot aggregate

PURPOSE:
  A Lot is a batch of inventory organised by color, then size. Each size
  entry tracks its original and remaining quantity plus purchase and sell
  prices. The lot also carries running financial totals.

INVARIANTS:
  1. 0 <= RemainingQuantity <= Quantity for every size, at all times
  2. TotalInvestment = Σ Quantity × PurchaseCostPerPiece (fixed at create/replace)
  3. TotalRevenue = Σ revenue of completed sales
  4. TotalProfit = Σ realised margins of completed sales, accumulated
     only by ApplySale. It is never derived as revenue − investment:
     unsold stock must not depress profit.

LOOKUP:
  Items keeps display order. A two-level index (color → size → position)
  is rebuilt whenever the items change, so a sale line resolves in O(1)
  instead of rescanning the nested slices.

SEE ALSO:
  - request.go: SaleItem and LotInput schemas
  - ledger/engine.go: orchestrates ApplySale under a storage transaction
*/
package inventory

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Size is the smallest tracked stock unit: one (color, size) pair.
type Size struct {
	Size                 string `json:"size"`
	Quantity             int    `json:"quantity"`
	RemainingQuantity    int    `json:"remainingQuantity"`
	PurchaseCostPerPiece Money  `json:"purchaseCostPerPiece"`
	SellCostPerPiece     Money  `json:"sellCostPerPiece"`
}

// Sold returns how many pieces of this size have been sold.
func (s Size) Sold() int { return s.Quantity - s.RemainingQuantity }

// Color groups the sizes of one color, in display order.
type Color struct {
	Color string `json:"color"`
	Sizes []Size `json:"sizes"`
}

type sizePos struct {
	color int
	size  int
}

// Lot is the inventory unit. Construct with NewLot or populate with SetItems;
// the color/size index is private to keep it in sync with the items.
type Lot struct {
	ID        LotID
	TenantID  TenantID
	LotNumber string
	CreatedBy UserID
	CreatedAt time.Time
	UpdatedAt time.Time

	TotalInvestment Money
	TotalRevenue    Money
	TotalProfit     Money

	items []Color
	index map[string]map[string]sizePos
}

// NewLot builds a fresh lot from validated input: every remaining quantity
// is seeded to the full quantity and the investment is computed.
func NewLot(tenantID TenantID, createdBy UserID, in LotInput, now time.Time) *Lot {
	lot := &Lot{
		ID:           NewLotID(),
		TenantID:     tenantID,
		LotNumber:    in.normalizedLotNumber(),
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
		TotalRevenue: decimal.Zero,
		TotalProfit:  decimal.Zero,
	}
	lot.SetItems(in.toColors())
	lot.TotalInvestment = lot.Investment()
	return lot
}

// Items returns a copy of the lot's colors in display order.
func (l *Lot) Items() []Color {
	return cloneColors(l.items)
}

// SetItems replaces the item tree as stored. Stores use this when loading;
// it does not touch remaining quantities or totals.
func (l *Lot) SetItems(items []Color) {
	l.items = cloneColors(items)
	l.reindex()
}

func (l *Lot) reindex() {
	l.index = make(map[string]map[string]sizePos, len(l.items))
	for ci, c := range l.items {
		sizes, ok := l.index[c.Color]
		if !ok {
			sizes = make(map[string]sizePos, len(c.Sizes))
			l.index[c.Color] = sizes
		}
		for si, s := range c.Sizes {
			if _, dup := sizes[s.Size]; !dup {
				sizes[s.Size] = sizePos{color: ci, size: si}
			}
		}
	}
}

func (l *Lot) locate(color, size string) (sizePos, error) {
	if l.index == nil {
		l.reindex()
	}
	sizes, ok := l.index[color]
	if !ok {
		return sizePos{}, NewFieldError("color", fmt.Sprintf("color %q not found in lot %s", color, l.LotNumber))
	}
	pos, ok := sizes[size]
	if !ok {
		return sizePos{}, NewFieldError("size", fmt.Sprintf("size %q not found for color %q in lot %s", size, color, l.LotNumber))
	}
	return pos, nil
}

// Lookup returns the size entry for (color, size), or a ValidationError
// naming whichever part is missing.
func (l *Lot) Lookup(color, size string) (Size, error) {
	pos, err := l.locate(color, size)
	if err != nil {
		return Size{}, err
	}
	return l.items[pos.color].Sizes[pos.size], nil
}

// Investment computes Σ Quantity × PurchaseCostPerPiece over all sizes.
func (l *Lot) Investment() Money {
	total := decimal.Zero
	for _, c := range l.items {
		for _, s := range c.Sizes {
			total = total.Add(s.PurchaseCostPerPiece.Mul(decimal.NewFromInt(int64(s.Quantity))))
		}
	}
	return total
}

// Quantities returns the total original and remaining piece counts.
func (l *Lot) Quantities() (quantity, remaining int) {
	for _, c := range l.items {
		for _, s := range c.Sizes {
			quantity += s.Quantity
			remaining += s.RemainingQuantity
		}
	}
	return quantity, remaining
}

// InStock reports whether any size still has remaining stock.
func (l *Lot) InStock() bool {
	_, remaining := l.Quantities()
	return remaining > 0
}

// =============================================================================
// SALE - the only path that mutates stock and realised totals
// =============================================================================

// Sale is the outcome of applying sale lines to a lot.
type Sale struct {
	Items   []SoldItem
	Revenue Money
	Profit  Money
}

// ApplySale validates every line against current stock and only then
// mutates the lot. On error the lot is unchanged.
//
// Lines naming the same color/size are checked against their combined
// quantity, so a single request cannot oversell by splitting a line.
func (l *Lot) ApplySale(lines []SaleItem) (Sale, error) {
	if len(lines) == 0 {
		return Sale{}, NewFieldError("items", "at least one item is required")
	}

	positions := make([]sizePos, len(lines))
	requested := make(map[sizePos]int, len(lines))
	for i, line := range lines {
		if line.Quantity < 1 {
			return Sale{}, NewFieldError(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		}
		pos, err := l.locate(line.Color, line.Size)
		if err != nil {
			return Sale{}, err
		}
		available := l.items[pos.color].Sizes[pos.size].RemainingQuantity
		// Compare against what is left rather than summing first, so huge
		// quantities cannot wrap the running total.
		if line.Quantity > available-requested[pos] {
			return Sale{}, &InsufficientStockError{
				LotID:     l.ID,
				Color:     line.Color,
				Size:      line.Size,
				Requested: saturatingAdd(requested[pos], line.Quantity),
				Available: available,
			}
		}
		requested[pos] += line.Quantity
		positions[i] = pos
	}

	sale := Sale{
		Items:   make([]SoldItem, 0, len(lines)),
		Revenue: decimal.Zero,
		Profit:  decimal.Zero,
	}
	for i, line := range lines {
		pos := positions[i]
		size := &l.items[pos.color].Sizes[pos.size]
		size.RemainingQuantity -= line.Quantity

		qty := decimal.NewFromInt(int64(line.Quantity))
		item := SoldItem{
			Color:                line.Color,
			Size:                 line.Size,
			Quantity:             line.Quantity,
			SellPricePerPiece:    size.SellCostPerPiece,
			PurchaseCostPerPiece: size.PurchaseCostPerPiece,
			Total:                size.SellCostPerPiece.Mul(qty),
		}
		sale.Items = append(sale.Items, item)
		sale.Revenue = sale.Revenue.Add(item.Total)
		sale.Profit = sale.Profit.Add(item.Margin())
	}

	l.TotalRevenue = l.TotalRevenue.Add(sale.Revenue)
	l.TotalProfit = l.TotalProfit.Add(sale.Profit)
	return sale, nil
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// Replace performs the full-replace edit: new lot number and item tree,
// investment recomputed, and every remaining quantity reset to its full
// quantity. Realised revenue and profit are kept.
//
// This discards sold-stock tracking for the lot. Callers are expected to
// warn users before editing a lot that already has sales.
func (l *Lot) Replace(in LotInput, now time.Time) {
	l.LotNumber = in.normalizedLotNumber()
	l.SetItems(in.toColors())
	l.TotalInvestment = l.Investment()
	l.UpdatedAt = now
}

// CheckInvariants verifies the stock bounds of every size.
func (l *Lot) CheckInvariants() error {
	for _, c := range l.items {
		for _, s := range c.Sizes {
			if s.RemainingQuantity < 0 || s.RemainingQuantity > s.Quantity {
				return fmt.Errorf("lot %s: %s/%s remaining %d outside [0, %d]",
					l.LotNumber, c.Color, s.Size, s.RemainingQuantity, s.Quantity)
			}
		}
	}
	return nil
}

// Clone returns a deep copy safe to mutate independently.
func (l *Lot) Clone() *Lot {
	if l == nil {
		return nil
	}
	c := *l
	c.SetItems(l.items)
	return &c
}

func cloneColors(items []Color) []Color {
	if items == nil {
		return nil
	}
	out := make([]Color, len(items))
	for i, c := range items {
		out[i] = Color{Color: c.Color, Sizes: append([]Size(nil), c.Sizes...)}
	}
	return out
}
