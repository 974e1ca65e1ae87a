/*
Package ledger implements the sale engine and lot lifecycle on top of an
inventory.TxStore.

PURPOSE:
  The Engine is the only writer of lots and transactions. It orchestrates
  a sale as one atomic unit:

    lock lot ─▶ WithTx ─▶ read lot (for update) ─▶ validate every line
             ─▶ decrement stock, accumulate revenue/profit
             ─▶ write lot + insert transaction ─▶ commit ─▶ unlock

  Either everything is applied or nothing is.

CONCURRENCY:
  Two layers keep sales on the same lot from overselling:
  1. lock.Locker: per-lot mutual exclusion (in-process or Redis)
  2. TxStore.WithTx + GetLotForUpdate: the storage transaction

  The storage layer alone is sufficient; the locker queues contenders
  before they reach the database.

ERRORS:
  Client errors (validation, stock, not found, forbidden) are returned
  unchanged. Anything else is logged with full detail and returned as an
  opaque *inventory.ServerError. There is no internal retry, and retries
  are not idempotent: resubmitting a successful sale records it twice.

SEE ALSO:
  - lifecycle.go: CreateLot, ReplaceLot, DeleteLot, GenerateLotNumber
  - query.go: read projections
  - inventory/lot.go: ApplySale, the stock and totals arithmetic
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/warp/lot-ledger/inventory"
	"github.com/warp/lot-ledger/lock"
)

// DefaultNumberWidth is the zero-padded width of generated lot numbers.
const DefaultNumberWidth = 4

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store       inventory.TxStore
	locker      lock.Locker
	logger      *zap.Logger
	now         func() time.Time
	numberWidth int
}

type Option func(*Engine)

// WithLocker sets the per-lot locker. Defaults to an in-process lock.Local.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithNumberWidth sets the zero-padding of generated lot numbers.
func WithNumberWidth(w int) Option {
	return func(e *Engine) {
		if w > 0 {
			e.numberWidth = w
		}
	}
}

func New(store inventory.TxStore, opts ...Option) *Engine {
	if store == nil {
		panic("ledger: store is required")
	}
	e := &Engine{
		store:       store,
		locker:      lock.NewLocal(),
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		numberWidth: DefaultNumberWidth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// RECORD SALE
// =============================================================================

// SaleResult is the created transaction and the lot as updated by it.
type SaleResult struct {
	Transaction *inventory.Transaction
	Lot         *inventory.Lot
}

// RecordSale sells the requested items from a lot on behalf of p.
//
// Fails with:
//   - ValidationError: bad request shape, or unknown color/size
//   - InsufficientStockError: a line exceeds remaining stock
//   - ErrNotFound: no such lot in p's tenant
//   - ServerError: storage failure
//
// All failures leave the lot and the transaction store unchanged.
func (e *Engine) RecordSale(ctx context.Context, p inventory.Principal, lotID inventory.LotID, req inventory.SaleRequest) (*SaleResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := e.logger.With(
		zap.String("tenant_id", string(p.TenantID)),
		zap.String("user_id", string(p.UserID)),
		zap.String("lot_id", string(lotID)),
	)

	unlock, err := e.lockLot(ctx, p.TenantID, lotID)
	if err != nil {
		return nil, e.fail(log, "record sale", err)
	}
	defer unlock()

	var result SaleResult
	err = e.store.WithTx(ctx, func(s inventory.Store) error {
		lot, err := s.GetLotForUpdate(ctx, p.TenantID, lotID)
		if err != nil {
			return err
		}

		sale, err := lot.ApplySale(req.Items)
		if err != nil {
			return err
		}

		now := e.now()
		lot.UpdatedAt = now
		if err := s.UpdateLot(ctx, lot); err != nil {
			return err
		}

		tx := &inventory.Transaction{
			ID:            inventory.NewTransactionID(),
			TenantID:      p.TenantID,
			LotID:         lot.ID,
			Items:         sale.Items,
			TotalAmount:   sale.Revenue,
			TotalProfit:   sale.Profit,
			SoldBy:        p.UserID,
			CustomerName:  req.CustomerName,
			InvoiceNumber: req.InvoiceNumber,
			CreatedAt:     now,
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}

		result = SaleResult{Transaction: tx, Lot: lot}
		return nil
	})
	if err != nil {
		return nil, e.fail(log, "record sale", err)
	}

	log.Debug("sale recorded",
		zap.String("transaction_id", string(result.Transaction.ID)),
		zap.String("revenue", result.Transaction.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(result.Transaction.Items)),
	)
	return &result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) lockLot(ctx context.Context, tenantID inventory.TenantID, lotID inventory.LotID) (func(), error) {
	return e.locker.Lock(ctx, lock.LotKey(string(tenantID), string(lotID)))
}

// fail passes client errors through and turns everything else into an
// opaque ServerError after logging the cause.
func (e *Engine) fail(log *zap.Logger, op string, err error) error {
	switch inventory.KindOf(err) {
	case inventory.KindValidation, inventory.KindInsufficientStock, inventory.KindForbidden:
		return err
	case inventory.KindNotFound:
		return inventory.ErrNotFound
	}
	if errors.Is(err, inventory.ErrDuplicateLotNumber) {
		return duplicateLotNumber()
	}
	var serverErr *inventory.ServerError
	if errors.As(err, &serverErr) {
		return serverErr
	}
	log.Error(op+" failed", zap.Error(err))
	return inventory.NewServerError(op, err)
}

func duplicateLotNumber() error {
	return inventory.NewFieldError("lotNumber", "lot number already exists")
}
