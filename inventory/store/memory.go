// Package store provides an in-memory inventory.TxStore.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/lot-ledger/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps guarded by one mutex. Values are cloned
// on the way in and out so callers never share state with the store.
type Memory struct {
	mu sync.RWMutex
	state
}

type state struct {
	tenants map[inventory.TenantID]inventory.Tenant
	users   map[inventory.UserID]inventory.User
	lots    map[inventory.LotID]*storedLot
	txs     []*inventory.Transaction
	seq     int64
}

type storedLot struct {
	lot *inventory.Lot
	seq int64
}

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

func newState() state {
	return state{
		tenants: make(map[inventory.TenantID]inventory.Tenant),
		users:   make(map[inventory.UserID]inventory.User),
		lots:    make(map[inventory.LotID]*storedLot),
	}
}

var _ inventory.TxStore = (*Memory)(nil)

// =============================================================================
// TRANSACTIONS - snapshot + rollback
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so units of work are serial.
func (m *Memory) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.snapshot()
	if err := fn(&txMemoryView{s: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (s *state) snapshot() state {
	cp := state{
		tenants: make(map[inventory.TenantID]inventory.Tenant, len(s.tenants)),
		users:   make(map[inventory.UserID]inventory.User, len(s.users)),
		lots:    make(map[inventory.LotID]*storedLot, len(s.lots)),
		txs:     append([]*inventory.Transaction(nil), s.txs...),
		seq:     s.seq,
	}
	for k, v := range s.tenants {
		cp.tenants[k] = v
	}
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.lots {
		cp.lots[k] = &storedLot{lot: v.lot.Clone(), seq: v.seq}
	}
	return cp
}

// txMemoryView runs inside WithTx with the lock already held.
type txMemoryView struct {
	s *state
}

// =============================================================================
// LOCKED WRAPPERS
// =============================================================================

func (m *Memory) GetLot(_ context.Context, tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLot(tenantID, id)
}

// GetLotForUpdate outside WithTx is a plain read.
func (m *Memory) GetLotForUpdate(ctx context.Context, tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	return m.GetLot(ctx, tenantID, id)
}

func (m *Memory) FindLotByNumber(_ context.Context, tenantID inventory.TenantID, lotNumber string) (*inventory.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLotByNumber(tenantID, lotNumber)
}

func (m *Memory) LatestLot(_ context.Context, tenantID inventory.TenantID) (*inventory.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestLot(tenantID)
}

func (m *Memory) InsertLot(_ context.Context, lot *inventory.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLot(lot)
}

func (m *Memory) UpdateLot(_ context.Context, lot *inventory.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLot(lot)
}

func (m *Memory) DeleteLot(_ context.Context, tenantID inventory.TenantID, id inventory.LotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLot(tenantID, id)
}

func (m *Memory) ListLots(_ context.Context, tenantID inventory.TenantID, filter inventory.LotFilter) ([]*inventory.Lot, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lots, total := m.listLots(tenantID, filter)
	return lots, total, nil
}

func (m *Memory) AllLots(_ context.Context, tenantID inventory.TenantID) ([]*inventory.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lots, _ := m.listLots(tenantID, inventory.LotFilter{})
	return lots, nil
}

func (m *Memory) InsertTransaction(_ context.Context, tx *inventory.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertTransaction(tx)
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, tenantID inventory.TenantID, id inventory.TransactionID) (*inventory.TransactionView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransaction(tenantID, id)
}

func (m *Memory) ListTransactions(_ context.Context, tenantID inventory.TenantID, filter inventory.TransactionFilter) ([]*inventory.TransactionView, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	views, total := m.listTransactions(tenantID, filter)
	return views, total, nil
}

func (m *Memory) TransactionsSince(_ context.Context, tenantID inventory.TenantID, from time.Time) ([]*inventory.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transactionsSince(tenantID, from), nil
}

func (m *Memory) InsertTenant(_ context.Context, t *inventory.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTenant(t)
}

func (m *Memory) GetTenant(_ context.Context, id inventory.TenantID) (*inventory.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTenant(id)
}

func (m *Memory) UpdateTenant(_ context.Context, t *inventory.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTenant(t)
}

func (m *Memory) InsertUser(_ context.Context, u *inventory.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertUser(u)
}

func (m *Memory) GetUser(_ context.Context, tenantID inventory.TenantID, id inventory.UserID) (*inventory.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getUser(tenantID, id)
}

func (m *Memory) FindUserByEmail(_ context.Context, tenantID inventory.TenantID, email string) (*inventory.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findUserByEmail(tenantID, email)
}

// =============================================================================
// TRANSACTIONAL VIEW - same operations, lock already held
// =============================================================================

func (v *txMemoryView) GetLot(_ context.Context, tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	return v.s.getLot(tenantID, id)
}

func (v *txMemoryView) GetLotForUpdate(_ context.Context, tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	return v.s.getLot(tenantID, id)
}

func (v *txMemoryView) FindLotByNumber(_ context.Context, tenantID inventory.TenantID, lotNumber string) (*inventory.Lot, error) {
	return v.s.findLotByNumber(tenantID, lotNumber)
}

func (v *txMemoryView) LatestLot(_ context.Context, tenantID inventory.TenantID) (*inventory.Lot, error) {
	return v.s.latestLot(tenantID)
}

func (v *txMemoryView) InsertLot(_ context.Context, lot *inventory.Lot) error {
	return v.s.insertLot(lot)
}

func (v *txMemoryView) UpdateLot(_ context.Context, lot *inventory.Lot) error {
	return v.s.updateLot(lot)
}

func (v *txMemoryView) DeleteLot(_ context.Context, tenantID inventory.TenantID, id inventory.LotID) error {
	return v.s.deleteLot(tenantID, id)
}

func (v *txMemoryView) ListLots(_ context.Context, tenantID inventory.TenantID, filter inventory.LotFilter) ([]*inventory.Lot, int, error) {
	lots, total := v.s.listLots(tenantID, filter)
	return lots, total, nil
}

func (v *txMemoryView) AllLots(_ context.Context, tenantID inventory.TenantID) ([]*inventory.Lot, error) {
	lots, _ := v.s.listLots(tenantID, inventory.LotFilter{})
	return lots, nil
}

func (v *txMemoryView) InsertTransaction(_ context.Context, tx *inventory.Transaction) error {
	v.s.insertTransaction(tx)
	return nil
}

func (v *txMemoryView) GetTransaction(_ context.Context, tenantID inventory.TenantID, id inventory.TransactionID) (*inventory.TransactionView, error) {
	return v.s.getTransaction(tenantID, id)
}

func (v *txMemoryView) ListTransactions(_ context.Context, tenantID inventory.TenantID, filter inventory.TransactionFilter) ([]*inventory.TransactionView, int, error) {
	views, total := v.s.listTransactions(tenantID, filter)
	return views, total, nil
}

func (v *txMemoryView) TransactionsSince(_ context.Context, tenantID inventory.TenantID, from time.Time) ([]*inventory.Transaction, error) {
	return v.s.transactionsSince(tenantID, from), nil
}

func (v *txMemoryView) InsertTenant(_ context.Context, t *inventory.Tenant) error {
	return v.s.insertTenant(t)
}

func (v *txMemoryView) GetTenant(_ context.Context, id inventory.TenantID) (*inventory.Tenant, error) {
	return v.s.getTenant(id)
}

func (v *txMemoryView) UpdateTenant(_ context.Context, t *inventory.Tenant) error {
	return v.s.updateTenant(t)
}

func (v *txMemoryView) InsertUser(_ context.Context, u *inventory.User) error {
	return v.s.insertUser(u)
}

func (v *txMemoryView) GetUser(_ context.Context, tenantID inventory.TenantID, id inventory.UserID) (*inventory.User, error) {
	return v.s.getUser(tenantID, id)
}

func (v *txMemoryView) FindUserByEmail(_ context.Context, tenantID inventory.TenantID, email string) (*inventory.User, error) {
	return v.s.findUserByEmail(tenantID, email)
}

// =============================================================================
// STATE OPERATIONS - callers hold the lock
// =============================================================================

func (s *state) getLot(tenantID inventory.TenantID, id inventory.LotID) (*inventory.Lot, error) {
	sl, ok := s.lots[id]
	if !ok || sl.lot.TenantID != tenantID {
		return nil, inventory.ErrNotFound
	}
	return sl.lot.Clone(), nil
}

func (s *state) findLotByNumber(tenantID inventory.TenantID, lotNumber string) (*inventory.Lot, error) {
	for _, sl := range s.lots {
		if sl.lot.TenantID == tenantID && sl.lot.LotNumber == lotNumber {
			return sl.lot.Clone(), nil
		}
	}
	return nil, inventory.ErrNotFound
}

func (s *state) latestLot(tenantID inventory.TenantID) (*inventory.Lot, error) {
	var latest *storedLot
	for _, sl := range s.lots {
		if sl.lot.TenantID != tenantID {
			continue
		}
		if latest == nil || sl.seq > latest.seq {
			latest = sl
		}
	}
	if latest == nil {
		return nil, inventory.ErrNotFound
	}
	return latest.lot.Clone(), nil
}

func (s *state) numberTaken(lot *inventory.Lot) bool {
	for id, sl := range s.lots {
		if id != lot.ID && sl.lot.TenantID == lot.TenantID && sl.lot.LotNumber == lot.LotNumber {
			return true
		}
	}
	return false
}

func (s *state) insertLot(lot *inventory.Lot) error {
	if s.numberTaken(lot) {
		return inventory.ErrDuplicateLotNumber
	}
	s.seq++
	s.lots[lot.ID] = &storedLot{lot: lot.Clone(), seq: s.seq}
	return nil
}

func (s *state) updateLot(lot *inventory.Lot) error {
	sl, ok := s.lots[lot.ID]
	if !ok || sl.lot.TenantID != lot.TenantID {
		return inventory.ErrNotFound
	}
	if s.numberTaken(lot) {
		return inventory.ErrDuplicateLotNumber
	}
	sl.lot = lot.Clone()
	return nil
}

func (s *state) deleteLot(tenantID inventory.TenantID, id inventory.LotID) error {
	sl, ok := s.lots[id]
	if !ok || sl.lot.TenantID != tenantID {
		return inventory.ErrNotFound
	}
	delete(s.lots, id)
	return nil
}

func (s *state) listLots(tenantID inventory.TenantID, filter inventory.LotFilter) ([]*inventory.Lot, int) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matches []*storedLot
	for _, sl := range s.lots {
		if sl.lot.TenantID != tenantID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(sl.lot.LotNumber), search) {
			continue
		}
		matches = append(matches, sl)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq > matches[j].seq })

	total := len(matches)
	page := paginate(len(matches), filter.Offset, filter.Limit)
	lots := make([]*inventory.Lot, 0, page.end-page.start)
	for _, sl := range matches[page.start:page.end] {
		lots = append(lots, sl.lot.Clone())
	}
	return lots, total
}

func (s *state) insertTransaction(tx *inventory.Transaction) {
	cp := cloneTransaction(tx)
	s.txs = append(s.txs, cp)
}

func (s *state) view(tx *inventory.Transaction) *inventory.TransactionView {
	v := &inventory.TransactionView{Transaction: *cloneTransaction(tx)}
	var lot *inventory.Lot
	if sl, ok := s.lots[tx.LotID]; ok && sl.lot.TenantID == tx.TenantID {
		lot = sl.lot
	}
	v.ResolveLot(lot)
	if u, ok := s.users[tx.SoldBy]; ok && u.TenantID == tx.TenantID {
		v.SellerName = u.Name
	}
	return v
}

func (s *state) getTransaction(tenantID inventory.TenantID, id inventory.TransactionID) (*inventory.TransactionView, error) {
	for _, tx := range s.txs {
		if tx.ID == id && tx.TenantID == tenantID {
			return s.view(tx), nil
		}
	}
	return nil, inventory.ErrNotFound
}

func (s *state) listTransactions(tenantID inventory.TenantID, filter inventory.TransactionFilter) ([]*inventory.TransactionView, int) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matches []*inventory.TransactionView
	// s.txs is in insertion order; walk backwards for newest first.
	for i := len(s.txs) - 1; i >= 0; i-- {
		tx := s.txs[i]
		if tx.TenantID != tenantID {
			continue
		}
		if filter.LotID != "" && tx.LotID != filter.LotID {
			continue
		}
		v := s.view(tx)
		if search != "" && !matchesSearch(v, search) {
			continue
		}
		matches = append(matches, v)
	}
	total := len(matches)
	page := paginate(total, filter.Offset, filter.Limit)
	return matches[page.start:page.end], total
}

func matchesSearch(v *inventory.TransactionView, search string) bool {
	for _, field := range []string{v.CustomerName, v.InvoiceNumber, v.SellerName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return !v.LotDeleted && strings.Contains(strings.ToLower(v.LotNumber), search)
}

func (s *state) transactionsSince(tenantID inventory.TenantID, from time.Time) []*inventory.Transaction {
	var out []*inventory.Transaction
	for _, tx := range s.txs {
		if tx.TenantID == tenantID && !tx.CreatedAt.Before(from) {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *state) insertTenant(t *inventory.Tenant) error {
	for _, existing := range s.tenants {
		if strings.EqualFold(existing.Email, t.Email) {
			return inventory.ErrDuplicateEmail
		}
	}
	s.tenants[t.ID] = *t
	return nil
}

func (s *state) getTenant(id inventory.TenantID) (*inventory.Tenant, error) {
	t, ok := s.tenants[id]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	return &t, nil
}

func (s *state) updateTenant(t *inventory.Tenant) error {
	if _, ok := s.tenants[t.ID]; !ok {
		return inventory.ErrNotFound
	}
	s.tenants[t.ID] = *t
	return nil
}

func (s *state) insertUser(u *inventory.User) error {
	for _, existing := range s.users {
		if existing.TenantID == u.TenantID && strings.EqualFold(existing.Email, u.Email) {
			return inventory.ErrDuplicateEmail
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *state) getUser(tenantID inventory.TenantID, id inventory.UserID) (*inventory.User, error) {
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, inventory.ErrNotFound
	}
	return &u, nil
}

func (s *state) findUserByEmail(tenantID inventory.TenantID, email string) (*inventory.User, error) {
	for _, u := range s.users {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, inventory.ErrNotFound
}

// =============================================================================
// HELPERS
// =============================================================================

type window struct{ start, end int }

func paginate(n, offset, limit int) window {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return window{start: offset, end: end}
}

func cloneTransaction(tx *inventory.Transaction) *inventory.Transaction {
	cp := *tx
	cp.Items = append([]inventory.SoldItem(nil), tx.Items...)
	return &cp
}
