package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/warp/lot-ledger/inventory"
)

// =============================================================================
// LOT LIFECYCLE
// =============================================================================

// CreateLot validates in and stores a new lot owned by p's tenant, with
// every remaining quantity at full stock and zero revenue and profit.
func (e *Engine) CreateLot(ctx context.Context, p inventory.Principal, in inventory.LotInput) (*inventory.Lot, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	log := e.logger.With(
		zap.String("tenant_id", string(p.TenantID)),
		zap.String("user_id", string(p.UserID)),
	)

	lot := inventory.NewLot(p.TenantID, p.UserID, in, e.now())
	err := e.store.WithTx(ctx, func(s inventory.Store) error {
		if err := ensureNumberFree(ctx, s, p.TenantID, lot.LotNumber, ""); err != nil {
			return err
		}
		return s.InsertLot(ctx, lot)
	})
	if err != nil {
		return nil, e.fail(log, "create lot", err)
	}

	log.Info("lot created", zap.String("lot_id", string(lot.ID)), zap.String("lot_number", lot.LotNumber))
	return lot, nil
}

// ReplaceLot overwrites the number and item tree of an existing lot.
// Remaining quantities reset to full stock and investment is recomputed;
// realised revenue and profit are kept.
func (e *Engine) ReplaceLot(ctx context.Context, tenantID inventory.TenantID, lotID inventory.LotID, in inventory.LotInput) (*inventory.Lot, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	log := e.logger.With(
		zap.String("tenant_id", string(tenantID)),
		zap.String("lot_id", string(lotID)),
	)

	unlock, err := e.lockLot(ctx, tenantID, lotID)
	if err != nil {
		return nil, e.fail(log, "replace lot", err)
	}
	defer unlock()

	var lot *inventory.Lot
	err = e.store.WithTx(ctx, func(s inventory.Store) error {
		current, err := s.GetLotForUpdate(ctx, tenantID, lotID)
		if err != nil {
			return err
		}
		if err := ensureNumberFree(ctx, s, tenantID, in.LotNumber, lotID); err != nil {
			return err
		}
		current.Replace(in, e.now())
		if err := s.UpdateLot(ctx, current); err != nil {
			return err
		}
		lot = current
		return nil
	})
	if err != nil {
		return nil, e.fail(log, "replace lot", err)
	}

	log.Info("lot replaced", zap.String("lot_number", lot.LotNumber))
	return lot, nil
}

// DeleteLot permanently removes a lot. Only an admin or the lot's creator
// may delete it. Transactions referencing the lot are left untouched.
func (e *Engine) DeleteLot(ctx context.Context, p inventory.Principal, lotID inventory.LotID) error {
	log := e.logger.With(
		zap.String("tenant_id", string(p.TenantID)),
		zap.String("user_id", string(p.UserID)),
		zap.String("lot_id", string(lotID)),
	)

	unlock, err := e.lockLot(ctx, p.TenantID, lotID)
	if err != nil {
		return e.fail(log, "delete lot", err)
	}
	defer unlock()

	err = e.store.WithTx(ctx, func(s inventory.Store) error {
		lot, err := s.GetLotForUpdate(ctx, p.TenantID, lotID)
		if err != nil {
			return err
		}
		if !p.CanDelete(lot.CreatedBy) {
			return inventory.ErrForbidden
		}
		return s.DeleteLot(ctx, p.TenantID, lotID)
	})
	if err != nil {
		return e.fail(log, "delete lot", err)
	}

	log.Info("lot deleted")
	return nil
}

// GetLot returns one lot of the tenant, or ErrNotFound.
func (e *Engine) GetLot(ctx context.Context, tenantID inventory.TenantID, lotID inventory.LotID) (*inventory.Lot, error) {
	lot, err := e.store.GetLot(ctx, tenantID, lotID)
	if err != nil {
		return nil, e.fail(e.logger.With(zap.String("tenant_id", string(tenantID))), "get lot", err)
	}
	return lot, nil
}

// ensureNumberFree fails with a ValidationError when another lot of the
// tenant already uses number. self is excluded so a lot may keep its own
// number on replace.
func ensureNumberFree(ctx context.Context, s inventory.Store, tenantID inventory.TenantID, number string, self inventory.LotID) error {
	existing, err := s.FindLotByNumber(ctx, tenantID, number)
	if errors.Is(err, inventory.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == self {
		return nil
	}
	return duplicateLotNumber()
}

// =============================================================================
// LOT NUMBERING
// =============================================================================

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// GenerateLotNumber suggests the next lot number for the tenant: the
// trailing digits of the most recently created lot plus one, rendered
// with the tenant's prefix. With no lots, or no trailing digits, the
// sequence starts at 1.
//
// The suggestion is advisory. Two callers can receive the same number;
// the unique lot number check on create decides.
func (e *Engine) GenerateLotNumber(ctx context.Context, tenantID inventory.TenantID) (string, error) {
	log := e.logger.With(zap.String("tenant_id", string(tenantID)))

	tenant, err := e.store.GetTenant(ctx, tenantID)
	if err != nil {
		return "", e.fail(log, "generate lot number", err)
	}

	next := 1
	latest, err := e.store.LatestLot(ctx, tenantID)
	switch {
	case errors.Is(err, inventory.ErrNotFound):
	case err != nil:
		return "", e.fail(log, "generate lot number", err)
	default:
		next = nextSequence(latest.LotNumber)
	}

	return FormatLotNumber(tenant.LotPrefix, next, e.numberWidth), nil
}

// FormatLotNumber renders prefix followed by n zero-padded to width digits.
func FormatLotNumber(prefix string, n, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

func nextSequence(lotNumber string) int {
	m := trailingDigits.FindStringSubmatch(lotNumber)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// More digits than an int holds.
		return 1
	}
	return n + 1
}
