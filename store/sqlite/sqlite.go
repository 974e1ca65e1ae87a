/*
Package sqlite provides a SQLite-backed implementation of inventory.TxStore.

PURPOSE:
  The default embedded store. One file holds every tenant; every query is
  scoped by tenant_id.

KEY TABLES:
  tenants:      business accounts (email unique, case-insensitive)
  users:        members of a tenant (email unique per tenant)
  lots:         one row per lot; the color/size tree lives in items_json
  transactions: immutable sale records; lot_id is a plain column, not a
                foreign key, so deleting a lot leaves its history intact

INDEXES:
  - lots (tenant_id, lot_number) UNIQUE: lot numbers never repeat in a tenant
  - idx_lots_tenant_created: newest-first listings and LatestLot
  - idx_transactions_tenant_created: newest-first listings and charts
  - idx_transactions_lot: per-lot history

MONEY:
  Stored as decimal TEXT. decimal.Decimal implements driver.Valuer and
  sql.Scanner, so amounts round-trip without float conversion.

TIMESTAMPS:
  Stored as fixed-width UTC text (nanosecond precision) so that string
  ordering equals time ordering.

CONCURRENCY:
  WithTx opens the SQL transaction with BEGIN IMMEDIATE (_txlock=immediate)
  and serialises units of work behind a mutex. Reads inside a unit of
  work go through the *sql.Tx, never through the mutex.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.New(store)

SEE ALSO:
  - inventory/store.go: interface definitions
  - inventory/store/memory.go: in-memory implementation for testing
  - store/postgres: the same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/lot-ledger/inventory"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements inventory.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

var _ inventory.TxStore = (*Store)(nil)

// driverName is go-sqlite3 with a fold(text) function registered on every
// connection. SQLite's own lower() only folds ASCII; fold uses the same
// Unicode lowering as the other stores so searches agree across backends.
const driverName = "sqlite3_ledger"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open(driverName, dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, queries: queries{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		business_name TEXT NOT NULL,
		email TEXT NOT NULL COLLATE NOCASE UNIQUE,
		lot_prefix TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		name TEXT NOT NULL,
		email TEXT NOT NULL COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (tenant_id, email)
	);

	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		lot_number TEXT NOT NULL,
		created_by TEXT NOT NULL,
		items_json TEXT NOT NULL,
		total_investment TEXT NOT NULL,
		total_revenue TEXT NOT NULL,
		total_profit TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (tenant_id, lot_number)
	);

	CREATE INDEX IF NOT EXISTS idx_lots_tenant_created
		ON lots(tenant_id, created_at DESC);

	-- Append-only: no UPDATE or DELETE is ever issued against this table.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		lot_id TEXT NOT NULL,
		items_json TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		total_profit TEXT NOT NULL,
		sold_by TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		invoice_number TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_tenant_created
		ON transactions(tenant_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_lot
		ON transactions(tenant_id, lot_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements inventory.Store over a querier. Store embeds one
// bound to the pool; WithTx hands out one bound to the transaction.
type queries struct {
	q querier
}

type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// LOT STORE
// =============================================================================

const lotColumns = `id, tenant_id, lot_number, created_by, items_json,
	total_investment, total_revenue, total_profit, created_at, updated_at`

func (s *queries) GetLot(ctx context.Context, tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	return s.queryLot(ctx, `SELECT `+lotColumns+` FROM lots WHERE tenant_id = ? AND id = ?`, tenantID, id)
}

// GetLotForUpdate is GetLot; the immediate transaction already holds the
// database write lock.
func (s *queries) GetLotForUpdate(ctx context.Context, tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	return s.GetLot(ctx, tenantID, id)
}

func (s *queries) FindLotByNumber(ctx context.Context, tenantID inventory.TenantID, lotNumber string) (*inventory.Lot, error) {
	return s.queryLot(ctx, `SELECT `+lotColumns+` FROM lots WHERE tenant_id = ? AND lot_number = ?`, tenantID, lotNumber)
}

func (s *queries) LatestLot(ctx context.Context, tenantID inventory.TenantID) (*inventory.Lot, error) {
	return s.queryLot(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE tenant_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, tenantID)
}

func (s *queries) queryLot(ctx context.Context, query string, args ...any) (*inventory.Lot, error) {
	lot, err := scanLot(s.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *queries) InsertLot(ctx context.Context, lot *inventory.Lot) error {
	itemsJSON, err := json.Marshal(lot.Items())
	if err != nil {
		return fmt.Errorf("failed to encode lot items: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO lots (`+lotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lot.ID,
		lot.TenantID,
		lot.LotNumber,
		lot.CreatedBy,
		string(itemsJSON),
		lot.TotalInvestment,
		lot.TotalRevenue,
		lot.TotalProfit,
		formatTime(lot.CreatedAt),
		formatTime(lot.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return inventory.ErrDuplicateLotNumber
		}
		return fmt.Errorf("failed to insert lot: %w", err)
	}
	return nil
}

func (s *queries) UpdateLot(ctx context.Context, lot *inventory.Lot) error {
	itemsJSON, err := json.Marshal(lot.Items())
	if err != nil {
		return fmt.Errorf("failed to encode lot items: %w", err)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE lots SET
			lot_number = ?,
			items_json = ?,
			total_investment = ?,
			total_revenue = ?,
			total_profit = ?,
			updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`,
		lot.LotNumber,
		string(itemsJSON),
		lot.TotalInvestment,
		lot.TotalRevenue,
		lot.TotalProfit,
		formatTime(lot.UpdatedAt),
		lot.TenantID,
		lot.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return inventory.ErrDuplicateLotNumber
		}
		return fmt.Errorf("failed to update lot: %w", err)
	}
	return expectOneRow(res)
}

func (s *queries) DeleteLot(ctx context.Context, tenantID inventory.TenantID, id inventory.LotID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM lots WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete lot: %w", err)
	}
	return expectOneRow(res)
}

func (s *queries) ListLots(ctx context.Context, tenantID inventory.TenantID, filter inventory.LotFilter) ([]*inventory.Lot, int, error) {
	where := `WHERE tenant_id = ?`
	args := []any{tenantID}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where += ` AND fold(lot_number) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(search))
	}

	var total int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM lots `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count lots: %w", err)
	}

	query := `SELECT ` + lotColumns + ` FROM lots ` + where +
		` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	lots, err := s.queryLots(ctx, query, append(args, limitArg(filter.Limit), max(filter.Offset, 0))...)
	if err != nil {
		return nil, 0, err
	}
	return lots, total, nil
}

func (s *queries) AllLots(ctx context.Context, tenantID inventory.TenantID) ([]*inventory.Lot, error) {
	return s.queryLots(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE tenant_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, tenantID)
}

func (s *queries) queryLots(ctx context.Context, query string, args ...any) ([]*inventory.Lot, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []*inventory.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func scanLot(row scanner) (*inventory.Lot, error) {
	var (
		lot       inventory.Lot
		itemsJSON string
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&lot.ID, &lot.TenantID, &lot.LotNumber, &lot.CreatedBy, &itemsJSON,
		&lot.TotalInvestment, &lot.TotalRevenue, &lot.TotalProfit,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lot: %w", err)
	}

	var items []inventory.Color
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return nil, fmt.Errorf("failed to decode items of lot %s: %w", lot.ID, err)
	}
	lot.SetItems(items)
	lot.CreatedAt = parseTime(createdAt)
	lot.UpdatedAt = parseTime(updatedAt)
	return &lot, nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (s *queries) InsertTransaction(ctx context.Context, tx *inventory.Transaction) error {
	itemsJSON, err := json.Marshal(tx.Items)
	if err != nil {
		return fmt.Errorf("failed to encode transaction items: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, tenant_id, lot_id, items_json, total_amount, total_profit,
		 sold_by, customer_name, invoice_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.TenantID,
		tx.LotID,
		string(itemsJSON),
		tx.TotalAmount,
		tx.TotalProfit,
		tx.SoldBy,
		tx.CustomerName,
		tx.InvoiceNumber,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// viewSelect resolves the lot number and seller name. A missing lot row
// means the lot was deleted.
const viewSelect = `
	SELECT t.id, t.tenant_id, t.lot_id, t.items_json, t.total_amount, t.total_profit,
	       t.sold_by, t.customer_name, t.invoice_number, t.created_at,
	       l.lot_number, u.name
	FROM transactions t
	LEFT JOIN lots l ON l.id = t.lot_id AND l.tenant_id = t.tenant_id
	LEFT JOIN users u ON u.id = t.sold_by AND u.tenant_id = t.tenant_id
`

func (s *queries) GetTransaction(ctx context.Context, tenantID inventory.TenantID, id inventory.TransactionID) (*inventory.TransactionView, error) {
	rows, err := s.q.QueryContext(ctx, viewSelect+` WHERE t.tenant_id = ? AND t.id = ?`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, inventory.ErrNotFound
	}
	return scanView(rows)
}

func (s *queries) ListTransactions(ctx context.Context, tenantID inventory.TenantID, filter inventory.TransactionFilter) ([]*inventory.TransactionView, int, error) {
	where := ` WHERE t.tenant_id = ?`
	args := []any{tenantID}
	if filter.LotID != "" {
		where += ` AND t.lot_id = ?`
		args = append(args, filter.LotID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where += ` AND (
			fold(t.customer_name) LIKE ? ESCAPE '\'
			OR fold(t.invoice_number) LIKE ? ESCAPE '\'
			OR fold(COALESCE(u.name, '')) LIKE ? ESCAPE '\'
			OR fold(COALESCE(l.lot_number, '')) LIKE ? ESCAPE '\'
		)`
		p := likePattern(search)
		args = append(args, p, p, p, p)
	}

	var total int
	countQuery := `
		SELECT COUNT(*) FROM transactions t
		LEFT JOIN lots l ON l.id = t.lot_id AND l.tenant_id = t.tenant_id
		LEFT JOIN users u ON u.id = t.sold_by AND u.tenant_id = t.tenant_id` + where
	if err := s.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := viewSelect + where + ` ORDER BY t.created_at DESC, t.rowid DESC LIMIT ? OFFSET ?`
	rows, err := s.q.QueryContext(ctx, query, append(args, limitArg(filter.Limit), max(filter.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var views []*inventory.TransactionView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, v)
	}
	return views, total, rows.Err()
}

func (s *queries) TransactionsSince(ctx context.Context, tenantID inventory.TenantID, from time.Time) ([]*inventory.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, tenant_id, lot_id, items_json, total_amount, total_profit,
		       sold_by, customer_name, invoice_number, created_at
		FROM transactions
		WHERE tenant_id = ? AND created_at >= ?
		ORDER BY created_at ASC, rowid ASC
	`, tenantID, formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*inventory.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row scanner, extra ...any) (*inventory.Transaction, error) {
	var (
		tx        inventory.Transaction
		itemsJSON string
		createdAt string
	)
	dest := append([]any{
		&tx.ID, &tx.TenantID, &tx.LotID, &itemsJSON, &tx.TotalAmount, &tx.TotalProfit,
		&tx.SoldBy, &tx.CustomerName, &tx.InvoiceNumber, &createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &tx.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of transaction %s: %w", tx.ID, err)
	}
	tx.CreatedAt = parseTime(createdAt)
	return &tx, nil
}

func scanView(row scanner) (*inventory.TransactionView, error) {
	var lotNumber, sellerName sql.NullString
	tx, err := scanTransaction(row, &lotNumber, &sellerName)
	if err != nil {
		return nil, err
	}

	v := &inventory.TransactionView{Transaction: *tx, SellerName: sellerName.String}
	if lotNumber.Valid {
		v.ResolveLot(&inventory.Lot{LotNumber: lotNumber.String})
	} else {
		v.ResolveLot(nil)
	}
	return v, nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *queries) InsertTenant(ctx context.Context, t *inventory.Tenant) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tenants (id, business_name, email, lot_prefix, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.ID, t.BusinessName, t.Email, t.LotPrefix, formatTime(t.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return inventory.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

func (s *queries) GetTenant(ctx context.Context, id inventory.TenantID) (*inventory.Tenant, error) {
	var (
		t         inventory.Tenant
		createdAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, business_name, email, lot_prefix, created_at
		FROM tenants WHERE id = ?
	`, id).Scan(&t.ID, &t.BusinessName, &t.Email, &t.LotPrefix, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func (s *queries) UpdateTenant(ctx context.Context, t *inventory.Tenant) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE tenants SET business_name = ?, lot_prefix = ? WHERE id = ?
	`, t.BusinessName, t.LotPrefix, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return expectOneRow(res)
}

func (s *queries) InsertUser(ctx context.Context, u *inventory.User) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.TenantID, u.Name, u.Email, u.PasswordHash, u.Role, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return inventory.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *queries) GetUser(ctx context.Context, tenantID inventory.TenantID, id inventory.UserID) (*inventory.User, error) {
	return s.queryUser(ctx, `WHERE tenant_id = ? AND id = ?`, tenantID, id)
}

func (s *queries) FindUserByEmail(ctx context.Context, tenantID inventory.TenantID, email string) (*inventory.User, error) {
	return s.queryUser(ctx, `WHERE tenant_id = ? AND email = ?`, tenantID, email)
}

func (s *queries) queryUser(ctx context.Context, where string, args ...any) (*inventory.User, error) {
	var (
		u         inventory.User
		createdAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, password_hash, role, created_at
		FROM users `+where, args...,
	).Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

// limitArg maps "no limit" to SQLite's LIMIT -1.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// likePattern builds a case-insensitive substring pattern with LIKE
// wildcards in the input escaped.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(search)) + "%"
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
