package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

type Store struct {
	mu                   sync.RWMutex
	productsByID         map[string]*domain.Product
	ledger               []domain.StockLedgerEntry
	transactionsByTxID   map[string]*domain.Transaction
	sessionsByID         map[string]*domain.TransactionSession
	activeSessionByStore map[string]string
	schedulesByStore     map[string]*domain.StoreSchedule
	customersByID        map[string]*domain.Customer
	customerLedger       []domain.CustomerLedgerEntry
	auditLogs            []domain.AuditLog
	usersByUsername      map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; when
// unset, hardcoded dev defaults are used with a warning printed to stdout.
// These accounts are never used in production (the server uses PostgreSQL
// when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			ID:           uuid.NewString(),
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
			StoreID:      "main-store",
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		productsByID:         make(map[string]*domain.Product),
		ledger:               make([]domain.StockLedgerEntry, 0, 256),
		transactionsByTxID:   make(map[string]*domain.Transaction),
		sessionsByID:         make(map[string]*domain.TransactionSession),
		activeSessionByStore: make(map[string]string),
		schedulesByStore:     make(map[string]*domain.StoreSchedule),
		customersByID:        make(map[string]*domain.Customer),
		customerLedger:       make([]domain.CustomerLedgerEntry, 0, 32),
		auditLogs:            make([]domain.AuditLog, 0, 128),
		usersByUsername:      seedUsers(),
	}
}

// NewSeeded returns a store pre-loaded with a small catalog for "main-store":
// plain products, a product with variants (one of which has zero cost so the
// parent-cost fallback is exercised) and a product with add-ons.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []*domain.Product{
		{
			ID: "prod-kopi", StoreID: "main-store", SKU: "SKU-KOPI-01",
			Name: "Kopi Susu", Category: "beverage",
			PriceCents: 18000, CostCents: 7000, Status: domain.StatusActive,
			Variants: []domain.Variant{
				{ID: "var-kopi-r", Name: "Regular", SKU: "SKU-KOPI-01-R", PriceCents: 18000, CostCents: 7000, Quantity: 40},
				{ID: "var-kopi-l", Name: "Large", SKU: "SKU-KOPI-01-L", PriceCents: 22000, CostCents: 0, Quantity: 40},
			},
			Addons: []domain.Addon{
				{ID: "addon-shot", Name: "Extra Shot", PriceCents: 5000, Quantity: 100},
			},
		},
		{
			ID: "prod-roti", StoreID: "main-store", SKU: "SKU-ROTI-01",
			Name: "Roti Bakar", Category: "bakery",
			PriceCents: 15000, CostCents: 6000, Quantity: 60, Status: domain.StatusActive,
		},
		{
			ID: "prod-teh", StoreID: "main-store", SKU: "SKU-TEH-01",
			Name: "Teh Manis", Category: "beverage",
			PriceCents: 8000, CostCents: 2500, Quantity: 80, Status: domain.StatusActive,
		},
		{
			ID: "prod-air", StoreID: "main-store", SKU: "SKU-AIR-01",
			Name: "Air Mineral 600ml", Category: "beverage",
			PriceCents: 4000, CostCents: 2200, Quantity: 120, Status: domain.StatusActive,
		},
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.productsByID[p.ID] = p
	}

	s.customersByID["cust-1"] = &domain.Customer{ID: "cust-1", Name: "Walk-in Member", BalanceCents: 0}
	return s
}

// PutSchedule seeds or replaces a store schedule. Memory-store only; the
// repository interface treats schedules as read-only configuration.
func (s *Store) PutSchedule(schedule domain.StoreSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := cloneSchedule(&schedule)
	s.schedulesByStore[schedule.StoreID] = clone
}

// PutCustomer seeds a customer account. Memory-store only.
func (s *Store) PutCustomer(customer domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := customer
	s.customersByID[customer.ID] = &c
}

func (s *Store) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if p.Deleted || p.StoreID != storeID {
			continue
		}
		result = append(result, *cloneProduct(p))
	}
	slices.SortFunc(result, func(a, b domain.Product) int { return cmpString(a.SKU, b.SKU) })
	return result, nil
}

func (s *Store) GetProduct(_ context.Context, storeID string, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.productsByID[productID]
	if !ok || p.Deleted || p.StoreID != storeID {
		return nil, fmt.Errorf("%w: product %s", store.ErrItemNotFound, productID)
	}
	return cloneProduct(p), nil
}

// counter locates the quantity cell a ref points at, together with the
// snapshot fields its ledger entries carry. Caller must hold the lock.
type counter struct {
	qty  *int64
	sku  string
	name string
	prod *domain.Product
}

func (s *Store) resolveCounter(storeID string, ref domain.HolderRef) (counter, error) {
	p, ok := s.productsByID[ref.ProductID]
	if !ok || p.Deleted || p.StoreID != storeID {
		return counter{}, fmt.Errorf("%w: product %s", store.ErrItemNotFound, ref.ProductID)
	}
	switch ref.Kind {
	case domain.HolderProduct:
		return counter{qty: &p.Quantity, sku: p.SKU, name: p.Name, prod: p}, nil
	case domain.HolderVariant:
		for i := range p.Variants {
			if p.Variants[i].ID == ref.VariantID {
				v := &p.Variants[i]
				return counter{qty: &v.Quantity, sku: v.SKU, name: p.Name + " " + v.Name, prod: p}, nil
			}
		}
		return counter{}, fmt.Errorf("%w: variant %s of product %s", store.ErrVariantNotFound, ref.VariantID, ref.ProductID)
	case domain.HolderAddon:
		for i := range p.Addons {
			if p.Addons[i].ID == ref.AddonID {
				a := &p.Addons[i]
				return counter{qty: &a.Quantity, sku: p.SKU, name: a.Name, prod: p}, nil
			}
		}
		return counter{}, fmt.Errorf("%w: addon %s of product %s", store.ErrItemNotFound, ref.AddonID, ref.ProductID)
	default:
		return counter{}, fmt.Errorf("%w: unknown holder kind %q", store.ErrInvalidInput, ref.Kind)
	}
}

func refKey(ref domain.HolderRef) string {
	return ref.Kind + "/" + ref.ProductID + "/" + ref.VariantID + "/" + ref.AddonID
}

// applyChanges validates every change against projected quantities first,
// then mutates counters and appends ledger entries. Either all changes land
// or none do. Caller must hold the write lock.
func (s *Store) applyChanges(storeID string, changes []store.StockChange, now time.Time) ([]domain.StockLedgerEntry, error) {
	type resolved struct {
		c      counter
		change store.StockChange
	}
	projected := make(map[string]int64)
	plan := make([]resolved, 0, len(changes))
	for _, change := range changes {
		c, err := s.resolveCounter(storeID, change.Ref)
		if err != nil {
			return nil, err
		}
		key := refKey(change.Ref)
		if _, ok := projected[key]; !ok {
			projected[key] = *c.qty
		}
		next := projected[key] + change.Delta
		if next < 0 {
			return nil, fmt.Errorf("%w: %s (available %d)", store.ErrInsufficientStock, c.name, projected[key])
		}
		projected[key] = next
		plan = append(plan, resolved{c: c, change: change})
	}

	entries := make([]domain.StockLedgerEntry, 0, len(plan))
	for _, r := range plan {
		prev := *r.c.qty
		next := prev + r.change.Delta
		*r.c.qty = next
		r.c.prod.UpdatedAt = now
		if r.change.Ref.Kind == domain.HolderProduct {
			switch {
			case next == 0 && r.c.prod.Status == domain.StatusActive:
				r.c.prod.Status = domain.StatusSoldOut
			case next > 0 && r.c.prod.Status == domain.StatusSoldOut:
				r.c.prod.Status = domain.StatusActive
			}
		}
		entry := domain.StockLedgerEntry{
			ID:            uuid.NewString(),
			StoreID:       storeID,
			SKU:           r.c.sku,
			NameSnapshot:  r.c.name,
			PrevStock:     prev,
			Change:        r.change.Delta,
			NewStock:      next,
			Reason:        r.change.Reason,
			EntryType:     r.change.EntryType,
			TransactionID: r.change.TransactionID,
			UpdatedBy:     r.change.UpdatedBy,
			CreatedAt:     now,
		}
		s.ledger = append(s.ledger, entry)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) AdjustStock(_ context.Context, storeID string, change store.StockChange) (*domain.StockLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.applyChanges(storeID, []store.StockChange{change}, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func (s *Store) ListStockLedger(_ context.Context, storeID string, sku string, limit int) ([]domain.StockLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockLedgerEntry, 0, limit)
	for i := len(s.ledger) - 1; i >= 0; i-- {
		entry := s.ledger[i]
		if entry.StoreID != storeID || entry.Deleted {
			continue
		}
		if sku != "" && entry.SKU != sku {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateSale(_ context.Context, tx domain.Transaction, decrements []store.StockChange) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(tx.TransactionID) == "" || len(tx.Cart) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.transactionsByTxID[tx.TransactionID]; exists {
		return nil, fmt.Errorf("%w: duplicate transaction id %s", store.ErrInvalidInput, tx.TransactionID)
	}

	now := time.Now().UTC()
	if _, err := s.applyChanges(tx.StoreID, decrements, now); err != nil {
		return nil, err
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	if tx.Status == "" {
		tx.Status = domain.TxStatusCompleted
	}

	stored := cloneTransaction(&tx)
	s.transactionsByTxID[tx.TransactionID] = stored
	return cloneTransaction(stored), nil
}

func (s *Store) GetTransaction(_ context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByTxID[transactionID]
	if !ok || tx.Deleted {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, transactionID)
	}
	return cloneTransaction(tx), nil
}

func (s *Store) TransactionIDExists(_ context.Context, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.transactionsByTxID[transactionID]
	return ok, nil
}

func (s *Store) ListCompletedTransactions(_ context.Context, storeID string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 32)
	for _, tx := range s.transactionsByTxID {
		if tx.Deleted || tx.StoreID != storeID || tx.Status != domain.TxStatusCompleted {
			continue
		}
		if tx.CreatedAt.Before(from) || tx.CreatedAt.After(to) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return result, nil
}

func statusGuard(status string, transactionID string) error {
	switch status {
	case domain.TxStatusCompleted:
		return nil
	case domain.TxStatusVoided:
		return fmt.Errorf("%w: %s", store.ErrAlreadyVoided, transactionID)
	case domain.TxStatusReturned:
		return fmt.Errorf("%w: %s", store.ErrAlreadyReturned, transactionID)
	case domain.TxStatusCanceled:
		return fmt.Errorf("%w: transaction %s is canceled", store.ErrInvalidInput, transactionID)
	default:
		return fmt.Errorf("%w: transaction %s in status %s", store.ErrInvalidInput, transactionID, status)
	}
}

func (s *Store) VoidSale(_ context.Context, original domain.Transaction, mirror domain.Transaction, restocks []store.StockChange) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactionsByTxID[original.TransactionID]
	if !ok || stored.Deleted {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, original.TransactionID)
	}
	if err := statusGuard(stored.Status, original.TransactionID); err != nil {
		return nil, err
	}
	// The restocks were derived from the caller's snapshot; reject them if
	// the stored record moved on since (a refund landing in between would
	// otherwise be restocked twice).
	if !stored.UpdatedAt.Equal(original.UpdatedAt) {
		return nil, fmt.Errorf("%w: %s", store.ErrUpdateConflict, original.TransactionID)
	}
	if _, exists := s.transactionsByTxID[mirror.TransactionID]; exists {
		return nil, fmt.Errorf("%w: duplicate transaction id %s", store.ErrInvalidInput, mirror.TransactionID)
	}

	now := time.Now().UTC()
	if _, err := s.applyChanges(stored.StoreID, restocks, now); err != nil {
		return nil, err
	}

	stored.Status = domain.TxStatusVoided
	stored.UpdatedAt = now

	if mirror.ID == "" {
		mirror.ID = uuid.NewString()
	}
	if mirror.CreatedAt.IsZero() {
		mirror.CreatedAt = now
	}
	mirror.UpdatedAt = now
	storedMirror := cloneTransaction(&mirror)
	s.transactionsByTxID[mirror.TransactionID] = storedMirror
	return cloneTransaction(storedMirror), nil
}

func (s *Store) ApplyRefund(_ context.Context, original domain.Transaction, refund domain.Transaction, restocks []store.StockChange) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactionsByTxID[original.TransactionID]
	if !ok || stored.Deleted {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, original.TransactionID)
	}
	if err := statusGuard(stored.Status, original.TransactionID); err != nil {
		return nil, err
	}
	// A partial refund leaves the original Completed, so the status guard
	// alone cannot catch two refunds reconciled from the same snapshot.
	// The snapshot's UpdatedAt acts as the version check.
	if !stored.UpdatedAt.Equal(original.UpdatedAt) {
		return nil, fmt.Errorf("%w: %s", store.ErrUpdateConflict, original.TransactionID)
	}
	if _, exists := s.transactionsByTxID[refund.TransactionID]; exists {
		return nil, fmt.Errorf("%w: duplicate transaction id %s", store.ErrInvalidInput, refund.TransactionID)
	}

	now := time.Now().UTC()
	if _, err := s.applyChanges(stored.StoreID, restocks, now); err != nil {
		return nil, err
	}

	stored.Cart = cloneCart(original.Cart)
	stored.Status = original.Status
	stored.NetCents = original.NetCents
	stored.VatCents = original.VatCents
	stored.TotalCents = original.TotalCents
	stored.UpdatedAt = now

	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = now
	}
	refund.UpdatedAt = now
	storedRefund := cloneTransaction(&refund)
	s.transactionsByTxID[refund.TransactionID] = storedRefund
	return cloneTransaction(storedRefund), nil
}

func (s *Store) CreateSession(_ context.Context, session domain.TransactionSession) (*domain.TransactionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, active := s.activeSessionByStore[session.StoreID]; active {
		return nil, fmt.Errorf("%w: store %q", store.ErrSessionAlreadyActive, session.StoreID)
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	session.Active = true
	session.EndedAt = nil
	session.Summary = nil

	stored := cloneSession(&session)
	s.sessionsByID[session.ID] = stored
	s.activeSessionByStore[session.StoreID] = session.ID
	return cloneSession(stored), nil
}

func (s *Store) GetActiveSession(_ context.Context, storeID string) (*domain.TransactionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.activeSessionByStore[storeID]
	if !ok {
		return nil, fmt.Errorf("%w: store %q", store.ErrNoActiveSession, storeID)
	}
	return cloneSession(s.sessionsByID[id]), nil
}

func (s *Store) EndActiveSession(_ context.Context, storeID string, endedBy string, at time.Time, summary domain.SalesSummary) (*domain.TransactionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.activeSessionByStore[storeID]
	if !ok {
		return nil, fmt.Errorf("%w: store %q", store.ErrNoActiveSession, storeID)
	}
	session := s.sessionsByID[id]
	session.Active = false
	session.EndedBy = endedBy
	ended := at
	session.EndedAt = &ended
	sum := summary
	session.Summary = &sum
	delete(s.activeSessionByStore, storeID)
	return cloneSession(session), nil
}

func (s *Store) ListStoreSchedules(_ context.Context) ([]domain.StoreSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StoreSchedule, 0, len(s.schedulesByStore))
	for _, schedule := range s.schedulesByStore {
		result = append(result, *cloneSchedule(schedule))
	}
	slices.SortFunc(result, func(a, b domain.StoreSchedule) int { return cmpString(a.StoreID, b.StoreID) })
	return result, nil
}

func (s *Store) RecordBackupRun(_ context.Context, storeID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, ok := s.schedulesByStore[storeID]
	if !ok || schedule.Backup == nil {
		return fmt.Errorf("%w: backup schedule for store %q", store.ErrItemNotFound, storeID)
	}
	ran := at
	schedule.Backup.LastRunAt = &ran
	return nil
}

func (s *Store) GetCustomer(_ context.Context, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", store.ErrItemNotFound, customerID)
	}
	clone := *c
	return &clone, nil
}

func (s *Store) CreditCustomerBalance(_ context.Context, customerID string, amountCents int64, transactionID string) (*domain.CustomerLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customersByID[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", store.ErrItemNotFound, customerID)
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive", store.ErrInvalidInput)
	}

	entry := domain.CustomerLedgerEntry{
		ID:            uuid.NewString(),
		CustomerID:    customerID,
		AmountCents:   amountCents,
		BeforeCents:   c.BalanceCents,
		AfterCents:    c.BalanceCents + amountCents,
		EntryType:     "Refund",
		TransactionID: transactionID,
		CreatedAt:     time.Now().UTC(),
	}
	c.BalanceCents = entry.AfterCents
	s.customerLedger = append(s.customerLedger, entry)
	return &entry, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", store.ErrItemNotFound, username)
	}
	clone := u
	return &clone, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		if s.auditLogs[i].StoreID != storeID {
			continue
		}
		result = append(result, s.auditLogs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneProduct(src *domain.Product) *domain.Product {
	clone := *src
	clone.Variants = slices.Clone(src.Variants)
	clone.Addons = slices.Clone(src.Addons)
	return &clone
}

func cloneCart(cart []domain.CartLine) []domain.CartLine {
	clone := slices.Clone(cart)
	for i := range clone {
		clone[i].Addons = slices.Clone(cart[i].Addons)
	}
	return clone
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	clone := *src
	clone.Cart = cloneCart(src.Cart)
	return &clone
}

func cloneSession(src *domain.TransactionSession) *domain.TransactionSession {
	clone := *src
	if src.EndedAt != nil {
		ended := *src.EndedAt
		clone.EndedAt = &ended
	}
	if src.Summary != nil {
		sum := *src.Summary
		clone.Summary = &sum
	}
	return &clone
}

func cloneSchedule(src *domain.StoreSchedule) *domain.StoreSchedule {
	clone := *src
	if src.Backup != nil {
		backup := *src.Backup
		backup.Options = slices.Clone(src.Backup.Options)
		if src.Backup.LastRunAt != nil {
			ran := *src.Backup.LastRunAt
			backup.LastRunAt = &ran
		}
		clone.Backup = &backup
	}
	return &clone
}
