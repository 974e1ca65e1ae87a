/*
store.go - Persistence interfaces for lots, transactions and accounts

PURPOSE:
  Defines the boundary between ledger logic and the database. Every
  lookup is tenant-scoped: a lot id belonging to another tenant behaves
  exactly like a missing one (ErrNotFound).

KEY INTERFACES:
  LotStore:         lot documents (inventory + running totals)
  TransactionStore: immutable sale records (insert + reads, no update/delete)
  AccountStore:     tenants and users
  TxStore:          atomic unit of work spanning all of the above

ATOMICITY:
  A sale reads a lot, checks stock, writes the decremented lot and inserts
  a transaction. TxStore.WithTx runs all of that as one unit: if fn
  returns an error nothing is observably applied. GetLotForUpdate must
  prevent a concurrent unit of work from reading the same lot until this
  one finishes (row lock, or a store-wide writer lock).

IMPLEMENTATIONS:
  - inventory/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go: embedded SQLite
  - store/postgres/postgres.go: PostgreSQL with SELECT ... FOR UPDATE
*/
package inventory

import (
	"context"
	"time"
)

// =============================================================================
// QUERY FILTERS
// =============================================================================

// LotFilter selects lots for a paginated listing. Results are ordered by
// creation time, newest first.
type LotFilter struct {
	Search string // case-insensitive substring of the lot number
	Offset int
	Limit  int
}

// TransactionFilter selects transactions for a paginated listing. Results
// are ordered by creation time, newest first.
type TransactionFilter struct {
	LotID  LotID  // optional
	Search string // lot number, customer name, invoice number, or seller name
	Offset int
	Limit  int // 0 means no limit
}

// =============================================================================
// STORES
// =============================================================================

type LotStore interface {
	// GetLot returns the lot or ErrNotFound.
	GetLot(ctx context.Context, tenantID TenantID, id LotID) (*Lot, error)

	// GetLotForUpdate is GetLot that also locks the lot for the rest of
	// the enclosing WithTx.
	GetLotForUpdate(ctx context.Context, tenantID TenantID, id LotID) (*Lot, error)

	// FindLotByNumber returns the lot with the given number, or ErrNotFound.
	FindLotByNumber(ctx context.Context, tenantID TenantID, lotNumber string) (*Lot, error)

	// LatestLot returns the most recently created lot, or ErrNotFound.
	LatestLot(ctx context.Context, tenantID TenantID) (*Lot, error)

	// InsertLot persists a new lot. ErrDuplicateLotNumber on collision.
	InsertLot(ctx context.Context, lot *Lot) error

	// UpdateLot overwrites number, items and totals. ErrNotFound if absent,
	// ErrDuplicateLotNumber on rename collision.
	UpdateLot(ctx context.Context, lot *Lot) error

	// DeleteLot permanently removes the lot. ErrNotFound if absent.
	DeleteLot(ctx context.Context, tenantID TenantID, id LotID) error

	// ListLots returns one page of lots and the total number of matches.
	ListLots(ctx context.Context, tenantID TenantID, filter LotFilter) ([]*Lot, int, error)

	// AllLots returns every lot of the tenant, newest first.
	AllLots(ctx context.Context, tenantID TenantID) ([]*Lot, error)
}

// TransactionStore is insert-only. There is no update or delete.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx *Transaction) error

	// GetTransaction returns the view with the lot reference resolved or
	// marked deleted. ErrNotFound if the transaction does not exist.
	GetTransaction(ctx context.Context, tenantID TenantID, id TransactionID) (*TransactionView, error)

	ListTransactions(ctx context.Context, tenantID TenantID, filter TransactionFilter) ([]*TransactionView, int, error)

	// TransactionsSince returns transactions created at or after from,
	// oldest first.
	TransactionsSince(ctx context.Context, tenantID TenantID, from time.Time) ([]*Transaction, error)
}

type AccountStore interface {
	// InsertTenant persists a tenant. ErrDuplicateEmail on collision.
	InsertTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id TenantID) (*Tenant, error)
	UpdateTenant(ctx context.Context, t *Tenant) error

	// InsertUser persists a user. ErrDuplicateEmail when the email is taken
	// within the tenant.
	InsertUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, tenantID TenantID, id UserID) (*User, error)
	FindUserByEmail(ctx context.Context, tenantID TenantID, email string) (*User, error)
}

// Store is the full set of operations available inside and outside a
// unit of work.
type Store interface {
	LotStore
	TransactionStore
	AccountStore
}

// TxStore adds atomic units of work.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
