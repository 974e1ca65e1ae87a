/*
Package postgres provides a PostgreSQL-backed implementation of
inventory.TxStore on pgx/v5.

CONCURRENCY:
  WithTx runs fn inside one database transaction. GetLotForUpdate issues
  SELECT ... FOR UPDATE, so two units of work selling from the same lot
  queue on the row lock even when they run in different server processes.

MONEY:
  NUMERIC columns. Amounts are sent as decimal strings and read back
  through ::text, so no float conversion happens on either side.

SCHEMA:
  schema.sql is embedded and applied by Migrate. Statements are
  idempotent (IF NOT EXISTS).
*/
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/lot-ledger/inventory"
)

//go:embed schema.sql
var schemaSQL string

// PoolConfig captures the pool knobs exposed through configuration.
type PoolConfig struct {
	ConnString      string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewPool builds a pgxpool.Pool and eagerly verifies connectivity.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("conn string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// Store implements inventory.TxStore on a pgx pool.
type Store struct {
	queries
	pool *pgxpool.Pool
}

var _ inventory.TxStore = (*Store)(nil)

// New wraps an existing pool. Call Migrate before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: queries{db: pool}}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, raw := range strings.Split(schemaSQL, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store inventory.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db dbtx
}

// =============================================================================
// LOTS
// =============================================================================

const lotColumns = `id, tenant_id, lot_number, created_by, items,
	total_investment::text, total_revenue::text, total_profit::text, created_at, updated_at`

func (q *queries) GetLot(ctx context.Context, tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	return q.queryLot(ctx, `SELECT `+lotColumns+` FROM lots WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (q *queries) GetLotForUpdate(ctx context.Context, tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	return q.queryLot(ctx, `SELECT `+lotColumns+` FROM lots WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
}

func (q *queries) FindLotByNumber(ctx context.Context, tenantID inventory.TenantID, lotNumber string) (*inventory.Lot, error) {
	return q.queryLot(ctx, `SELECT `+lotColumns+` FROM lots WHERE tenant_id = $1 AND lot_number = $2`, tenantID, lotNumber)
}

func (q *queries) LatestLot(ctx context.Context, tenantID inventory.TenantID) (*inventory.Lot, error) {
	return q.queryLot(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE tenant_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`, tenantID)
}

func (q *queries) queryLot(ctx context.Context, sql string, args ...any) (*inventory.Lot, error) {
	lot, err := scanLot(q.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	return lot, err
}

func (q *queries) InsertLot(ctx context.Context, lot *inventory.Lot) error {
	items, err := json.Marshal(lot.Items())
	if err != nil {
		return fmt.Errorf("encode lot items: %w", err)
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO lots (id, tenant_id, lot_number, created_by, items,
			total_investment, total_revenue, total_profit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		lot.ID, lot.TenantID, lot.LotNumber, lot.CreatedBy, items,
		lot.TotalInvestment.String(), lot.TotalRevenue.String(), lot.TotalProfit.String(),
		lot.CreatedAt.UTC(), lot.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return inventory.ErrDuplicateLotNumber
	}
	if err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

func (q *queries) UpdateLot(ctx context.Context, lot *inventory.Lot) error {
	items, err := json.Marshal(lot.Items())
	if err != nil {
		return fmt.Errorf("encode lot items: %w", err)
	}

	tag, err := q.db.Exec(ctx, `
		UPDATE lots SET
			lot_number = $3,
			items = $4,
			total_investment = $5,
			total_revenue = $6,
			total_profit = $7,
			updated_at = $8
		WHERE tenant_id = $1 AND id = $2`,
		lot.TenantID, lot.ID, lot.LotNumber, items,
		lot.TotalInvestment.String(), lot.TotalRevenue.String(), lot.TotalProfit.String(),
		lot.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return inventory.ErrDuplicateLotNumber
	}
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func (q *queries) DeleteLot(ctx context.Context, tenantID inventory.TenantID, id inventory.LotID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM lots WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func (q *queries) ListLots(ctx context.Context, tenantID inventory.TenantID, filter inventory.LotFilter) ([]*inventory.Lot, int, error) {
	where := `WHERE tenant_id = $1`
	args := []any{tenantID}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, likePattern(search))
		where += fmt.Sprintf(` AND lot_number ILIKE $%d`, len(args))
	}

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM lots `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lots: %w", err)
	}

	n := len(args)
	sql := fmt.Sprintf(`SELECT %s FROM lots %s ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`,
		lotColumns, where, n+1, n+2)
	lots, err := q.queryLots(ctx, sql, append(args, limitArg(filter.Limit), max(filter.Offset, 0))...)
	if err != nil {
		return nil, 0, err
	}
	return lots, total, nil
}

func (q *queries) AllLots(ctx context.Context, tenantID inventory.TenantID) ([]*inventory.Lot, error) {
	return q.queryLots(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE tenant_id = $1
		ORDER BY created_at DESC, seq DESC`, tenantID)
}

func (q *queries) queryLots(ctx context.Context, sql string, args ...any) ([]*inventory.Lot, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", err)
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

func scanLot(row pgx.Row) (*inventory.Lot, error) {
	var (
		lot                         inventory.Lot
		items                       []byte
		investment, revenue, profit string
	)
	err := row.Scan(
		&lot.ID, &lot.TenantID, &lot.LotNumber, &lot.CreatedBy, &items,
		&investment, &revenue, &profit, &lot.CreatedAt, &lot.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan lot: %w", err)
	}

	var colors []inventory.Color
	if err := json.Unmarshal(items, &colors); err != nil {
		return nil, fmt.Errorf("decode items of lot %s: %w", lot.ID, err)
	}
	lot.SetItems(colors)
	if err := parseMoney(&lot.TotalInvestment, investment); err != nil {
		return nil, err
	}
	if err := parseMoney(&lot.TotalRevenue, revenue); err != nil {
		return nil, err
	}
	if err := parseMoney(&lot.TotalProfit, profit); err != nil {
		return nil, err
	}
	lot.CreatedAt = lot.CreatedAt.UTC()
	lot.UpdatedAt = lot.UpdatedAt.UTC()
	return &lot, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (q *queries) InsertTransaction(ctx context.Context, tx *inventory.Transaction) error {
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return fmt.Errorf("encode transaction items: %w", err)
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO transactions (id, tenant_id, lot_id, items, total_amount, total_profit,
			sold_by, customer_name, invoice_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, tx.TenantID, tx.LotID, items, tx.TotalAmount.String(), tx.TotalProfit.String(),
		tx.SoldBy, tx.CustomerName, tx.InvoiceNumber, tx.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const txColumns = `t.id, t.tenant_id, t.lot_id, t.items, t.total_amount::text, t.total_profit::text,
	t.sold_by, t.customer_name, t.invoice_number, t.created_at`

const viewFrom = `
	FROM transactions t
	LEFT JOIN lots l ON l.id = t.lot_id AND l.tenant_id = t.tenant_id
	LEFT JOIN users u ON u.id = t.sold_by AND u.tenant_id = t.tenant_id`

func (q *queries) GetTransaction(ctx context.Context, tenantID inventory.TenantID, id inventory.TransactionID) (*inventory.TransactionView, error) {
	v, err := scanView(q.db.QueryRow(ctx,
		`SELECT `+txColumns+`, l.lot_number, u.name`+viewFrom+` WHERE t.tenant_id = $1 AND t.id = $2`,
		tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	return v, err
}

func (q *queries) ListTransactions(ctx context.Context, tenantID inventory.TenantID, filter inventory.TransactionFilter) ([]*inventory.TransactionView, int, error) {
	where := ` WHERE t.tenant_id = $1`
	args := []any{tenantID}
	if filter.LotID != "" {
		args = append(args, filter.LotID)
		where += fmt.Sprintf(` AND t.lot_id = $%d`, len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, likePattern(search))
		p := len(args)
		where += fmt.Sprintf(` AND (t.customer_name ILIKE $%[1]d
			OR t.invoice_number ILIKE $%[1]d
			OR COALESCE(u.name, '') ILIKE $%[1]d
			OR COALESCE(l.lot_number, '') ILIKE $%[1]d)`, p)
	}

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*)`+viewFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	n := len(args)
	sql := fmt.Sprintf(`SELECT %s, l.lot_number, u.name %s %s ORDER BY t.created_at DESC, t.seq DESC LIMIT $%d OFFSET $%d`,
		txColumns, viewFrom, where, n+1, n+2)
	rows, err := q.db.Query(ctx, sql, append(args, limitArg(filter.Limit), max(filter.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
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

func (q *queries) TransactionsSince(ctx context.Context, tenantID inventory.TenantID, from time.Time) ([]*inventory.Transaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+txColumns+` FROM transactions t
		WHERE t.tenant_id = $1 AND t.created_at >= $2
		ORDER BY t.created_at ASC, t.seq ASC`, tenantID, from.UTC())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
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

func scanTransaction(row pgx.Row, extra ...any) (*inventory.Transaction, error) {
	var (
		tx             inventory.Transaction
		items          []byte
		amount, profit string
	)
	dest := append([]any{
		&tx.ID, &tx.TenantID, &tx.LotID, &items, &amount, &profit,
		&tx.SoldBy, &tx.CustomerName, &tx.InvoiceNumber, &tx.CreatedAt,
	}, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if err := json.Unmarshal(items, &tx.Items); err != nil {
		return nil, fmt.Errorf("decode items of transaction %s: %w", tx.ID, err)
	}
	if err := parseMoney(&tx.TotalAmount, amount); err != nil {
		return nil, err
	}
	if err := parseMoney(&tx.TotalProfit, profit); err != nil {
		return nil, err
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

func scanView(row pgx.Row) (*inventory.TransactionView, error) {
	var lotNumber, sellerName *string
	tx, err := scanTransaction(row, &lotNumber, &sellerName)
	if err != nil {
		return nil, err
	}

	v := &inventory.TransactionView{Transaction: *tx}
	if sellerName != nil {
		v.SellerName = *sellerName
	}
	if lotNumber != nil {
		v.ResolveLot(&inventory.Lot{LotNumber: *lotNumber})
	} else {
		v.ResolveLot(nil)
	}
	return v, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (q *queries) InsertTenant(ctx context.Context, t *inventory.Tenant) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO tenants (id, business_name, email, lot_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.BusinessName, t.Email, t.LotPrefix, t.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return inventory.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (q *queries) GetTenant(ctx context.Context, id inventory.TenantID) (*inventory.Tenant, error) {
	var t inventory.Tenant
	err := q.db.QueryRow(ctx, `
		SELECT id, business_name, email, lot_prefix, created_at
		FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.BusinessName, &t.Email, &t.LotPrefix, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func (q *queries) UpdateTenant(ctx context.Context, t *inventory.Tenant) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE tenants SET business_name = $2, lot_prefix = $3 WHERE id = $1`,
		t.ID, t.BusinessName, t.LotPrefix)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func (q *queries) InsertUser(ctx context.Context, u *inventory.User) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, tenant_id, name, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.TenantID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return inventory.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (q *queries) GetUser(ctx context.Context, tenantID inventory.TenantID, id inventory.UserID) (*inventory.User, error) {
	return q.queryUser(ctx, `WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (q *queries) FindUserByEmail(ctx context.Context, tenantID inventory.TenantID, email string) (*inventory.User, error) {
	return q.queryUser(ctx, `WHERE tenant_id = $1 AND lower(email) = lower($2)`, tenantID, email)
}

func (q *queries) queryUser(ctx context.Context, where string, args ...any) (*inventory.User, error) {
	var u inventory.User
	err := q.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, email, password_hash, role, created_at
		FROM users `+where, args...,
	).Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMoney(dst *inventory.Money, s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", s, err)
	}
	*dst = d
	return nil
}

// limitArg maps "no limit" to LIMIT NULL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
