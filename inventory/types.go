/*
Package inventory provides the data model of the lot ledger.

PURPOSE:
  Domain types shared by every layer: tenants, users, lots (inventory
  broken down by color then size), and immutable sale transactions.
  Storage backends, the ledger engine, and the HTTP layer all speak
  these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal amounts (never float64)
  - Principal: the authenticated caller (tenant, user, role)
  - Tenant / User: isolation boundary and its members
  - Transaction: an immutable record of one sale

DESIGN PRINCIPLES:
  1. Tenant scoping: every entity carries a TenantID
  2. Precision: money uses decimal.Decimal
  3. Type safety: IDs are distinct string types
  4. Immutability: transactions are written once and never changed

SEE ALSO:
  - lot.go: the Lot aggregate and its keyed color/size index
  - errors.go: error taxonomy
  - store.go: persistence interfaces
*/
package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Money is a non-negative currency amount. Single currency only.
type Money = decimal.Decimal

// MustParseMoney parses s and panics on malformed input. Intended for
// constants and tests.
func MustParseMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type UserID string
type LotID string
type TransactionID string

// NewTenantID, NewUserID, NewLotID and NewTransactionID mint random UUIDs.
func NewTenantID() TenantID           { return TenantID(uuid.NewString()) }
func NewUserID() UserID               { return UserID(uuid.NewString()) }
func NewLotID() LotID                 { return LotID(uuid.NewString()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.NewString()) }

// =============================================================================
// PRINCIPAL - Authenticated caller
// =============================================================================

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleStaff }

// Principal is resolved by the authentication layer before any ledger
// operation runs. The ledger never sees an unauthenticated call.
type Principal struct {
	TenantID TenantID
	UserID   UserID
	Role     Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanDelete reports whether p may permanently delete a lot created by creator.
func (p Principal) CanDelete(creator UserID) bool {
	return p.IsAdmin() || p.UserID == creator
}

// =============================================================================
// TENANT & USER
// =============================================================================

// DefaultLotPrefix is used when a tenant signs up without choosing one.
const DefaultLotPrefix = "LOT-"

type Tenant struct {
	ID           TenantID
	BusinessName string
	Email        string
	LotPrefix    string
	CreatedAt    time.Time
}

type User struct {
	ID           UserID
	TenantID     TenantID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// =============================================================================
// TRANSACTION - Immutable sale record
// =============================================================================

// SoldItem is one processed line of a sale. Prices are the lot's stored
// prices at processing time.
type SoldItem struct {
	Color                string `json:"color"`
	Size                 string `json:"size"`
	Quantity             int    `json:"quantity"`
	SellPricePerPiece    Money  `json:"sellPricePerPiece"`
	PurchaseCostPerPiece Money  `json:"purchaseCostPerPiece"`
	Total                Money  `json:"total"`
}

// Margin is Quantity × (SellPricePerPiece − PurchaseCostPerPiece).
func (i SoldItem) Margin() Money {
	return i.SellPricePerPiece.Sub(i.PurchaseCostPerPiece).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Transaction records one completed sale. LotID is a back-reference only:
// the lot may have been deleted since.
type Transaction struct {
	ID            TransactionID
	TenantID      TenantID
	LotID         LotID
	Items         []SoldItem
	TotalAmount   Money
	TotalProfit   Money
	SoldBy        UserID
	CustomerName  string
	InvoiceNumber string
	CreatedAt     time.Time
}

// SoldQuantity returns the quantity sold for one color/size in this transaction.
func (t Transaction) SoldQuantity(color, size string) int {
	n := 0
	for _, it := range t.Items {
		if it.Color == color && it.Size == size {
			n += it.Quantity
		}
	}
	return n
}

// DeletedLotNumber is shown in place of the lot number when a transaction's
// lot no longer exists.
const DeletedLotNumber = "Deleted lot"

// TransactionView is the read model for transactions: the lot reference is
// resolved, or marked deleted.
type TransactionView struct {
	Transaction
	LotNumber  string
	LotDeleted bool
	SellerName string
}

// ResolveLot fills the lot reference from lot, which may be nil.
func (v *TransactionView) ResolveLot(lot *Lot) {
	if lot == nil {
		v.LotNumber = DeletedLotNumber
		v.LotDeleted = true
		return
	}
	v.LotNumber = lot.LotNumber
	v.LotDeleted = false
}
