package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, sku, name, category, price_cents, cost_cents,
		       quantity, quantity_alert, status, created_at, updated_at
		FROM products
		WHERE store_id = $1 AND deleted = false
		ORDER BY sku
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.CostCents,
			&p.Quantity, &p.QuantityAlert, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range products {
		if err := s.loadHolders(ctx, s.db, &products[i]); err != nil {
			return nil, err
		}
	}
	return products, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) GetProduct(ctx context.Context, storeID string, productID string) (*domain.Product, error) {
	return s.getProduct(ctx, s.db, storeID, productID)
}

func (s *Store) getProduct(ctx context.Context, q querier, storeID string, productID string) (*domain.Product, error) {
	var p domain.Product
	err := q.QueryRowContext(ctx, `
		SELECT id, store_id, sku, name, category, price_cents, cost_cents,
		       quantity, quantity_alert, status, created_at, updated_at
		FROM products
		WHERE id = $1 AND store_id = $2 AND deleted = false
	`, productID, storeID).Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.CostCents,
		&p.Quantity, &p.QuantityAlert, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", store.ErrItemNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadHolders(ctx, q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) loadHolders(ctx context.Context, q querier, p *domain.Product) error {
	variantRows, err := q.QueryContext(ctx, `
		SELECT id, name, sku, price_cents, cost_cents, quantity
		FROM product_variants
		WHERE product_id = $1
		ORDER BY name
	`, p.ID)
	if err != nil {
		return err
	}
	for variantRows.Next() {
		var v domain.Variant
		if err := variantRows.Scan(&v.ID, &v.Name, &v.SKU, &v.PriceCents, &v.CostCents, &v.Quantity); err != nil {
			_ = variantRows.Close()
			return err
		}
		p.Variants = append(p.Variants, v)
	}
	if err := variantRows.Err(); err != nil {
		_ = variantRows.Close()
		return err
	}
	_ = variantRows.Close()

	addonRows, err := q.QueryContext(ctx, `
		SELECT id, name, price_cents, quantity
		FROM product_addons
		WHERE product_id = $1
		ORDER BY name
	`, p.ID)
	if err != nil {
		return err
	}
	defer addonRows.Close()
	for addonRows.Next() {
		var a domain.Addon
		if err := addonRows.Scan(&a.ID, &a.Name, &a.PriceCents, &a.Quantity); err != nil {
			return err
		}
		p.Addons = append(p.Addons, a)
	}
	return addonRows.Err()
}

// applyChange performs one conditional counter update and writes its ledger
// row. The WHERE clause carries the "quantity + delta >= 0" guard so a
// concurrent decrement can never drive the counter negative; a zero-row
// update is then disambiguated into not-found vs insufficient.
func (s *Store) applyChange(ctx context.Context, pgTx *sql.Tx, storeID string, change store.StockChange) (*domain.StockLedgerEntry, error) {
	var (
		sku      string
		name     string
		newStock int64
		err      error
	)

	switch change.Ref.Kind {
	case domain.HolderProduct:
		err = pgTx.QueryRowContext(ctx, `
			UPDATE products
			SET quantity = quantity + $1,
			    updated_at = now(),
			    status = CASE
			        WHEN quantity + $1 = 0 AND status = 'active' THEN 'sold-out'
			        WHEN quantity + $1 > 0 AND status = 'sold-out' THEN 'active'
			        ELSE status
			    END
			WHERE id = $2 AND store_id = $3 AND deleted = false AND quantity + $1 >= 0
			RETURNING sku, name, quantity
		`, change.Delta, change.Ref.ProductID, storeID).Scan(&sku, &name, &newStock)
	case domain.HolderVariant:
		err = pgTx.QueryRowContext(ctx, `
			UPDATE product_variants v
			SET quantity = v.quantity + $1
			FROM products p
			WHERE v.id = $2 AND v.product_id = $3
			  AND p.id = v.product_id AND p.store_id = $4 AND p.deleted = false
			  AND v.quantity + $1 >= 0
			RETURNING v.sku, p.name || ' ' || v.name, v.quantity
		`, change.Delta, change.Ref.VariantID, change.Ref.ProductID, storeID).Scan(&sku, &name, &newStock)
	case domain.HolderAddon:
		err = pgTx.QueryRowContext(ctx, `
			UPDATE product_addons a
			SET quantity = a.quantity + $1
			FROM products p
			WHERE a.id = $2 AND a.product_id = $3
			  AND p.id = a.product_id AND p.store_id = $4 AND p.deleted = false
			  AND a.quantity + $1 >= 0
			RETURNING p.sku, a.name, a.quantity
		`, change.Delta, change.Ref.AddonID, change.Ref.ProductID, storeID).Scan(&sku, &name, &newStock)
	default:
		return nil, fmt.Errorf("%w: unknown holder kind %q", store.ErrInvalidInput, change.Ref.Kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.explainMissedChange(ctx, pgTx, storeID, change)
	}
	if err != nil {
		return nil, err
	}

	entry := domain.StockLedgerEntry{
		ID:            uuid.NewString(),
		StoreID:       storeID,
		SKU:           sku,
		NameSnapshot:  name,
		PrevStock:     newStock - change.Delta,
		Change:        change.Delta,
		NewStock:      newStock,
		Reason:        change.Reason,
		EntryType:     change.EntryType,
		TransactionID: change.TransactionID,
		UpdatedBy:     change.UpdatedBy,
		CreatedAt:     time.Now().UTC(),
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO stock_ledger (id, store_id, sku, product_name_snapshot, prev_stock, change, new_stock,
		                          reason, entry_type, transaction_id, updated_by, deleted, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,$12)
	`, entry.ID, entry.StoreID, entry.SKU, entry.NameSnapshot, entry.PrevStock, entry.Change, entry.NewStock,
		nullIfEmpty(entry.Reason), entry.EntryType, nullIfEmpty(entry.TransactionID), entry.UpdatedBy, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// explainMissedChange turns a zero-row conditional update into the precise
// error the caller needs: missing holder or insufficient stock.
func (s *Store) explainMissedChange(ctx context.Context, pgTx *sql.Tx, storeID string, change store.StockChange) error {
	var (
		name      string
		available int64
		err       error
	)
	switch change.Ref.Kind {
	case domain.HolderProduct:
		err = pgTx.QueryRowContext(ctx, `
			SELECT name, quantity FROM products
			WHERE id = $1 AND store_id = $2 AND deleted = false
		`, change.Ref.ProductID, storeID).Scan(&name, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: product %s", store.ErrItemNotFound, change.Ref.ProductID)
		}
	case domain.HolderVariant:
		err = pgTx.QueryRowContext(ctx, `
			SELECT p.name || ' ' || v.name, v.quantity
			FROM product_variants v JOIN products p ON p.id = v.product_id
			WHERE v.id = $1 AND v.product_id = $2 AND p.store_id = $3 AND p.deleted = false
		`, change.Ref.VariantID, change.Ref.ProductID, storeID).Scan(&name, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: variant %s of product %s", store.ErrVariantNotFound, change.Ref.VariantID, change.Ref.ProductID)
		}
	case domain.HolderAddon:
		err = pgTx.QueryRowContext(ctx, `
			SELECT a.name, a.quantity
			FROM product_addons a JOIN products p ON p.id = a.product_id
			WHERE a.id = $1 AND a.product_id = $2 AND p.store_id = $3 AND p.deleted = false
		`, change.Ref.AddonID, change.Ref.ProductID, storeID).Scan(&name, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: addon %s of product %s", store.ErrItemNotFound, change.Ref.AddonID, change.Ref.ProductID)
		}
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s (available %d)", store.ErrInsufficientStock, name, available)
}

func (s *Store) AdjustStock(ctx context.Context, storeID string, change store.StockChange) (*domain.StockLedgerEntry, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	entry, err := s.applyChange(ctx, pgTx, storeID, change)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) ListStockLedger(ctx context.Context, storeID string, sku string, limit int) ([]domain.StockLedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, sku, product_name_snapshot, prev_stock, change, new_stock,
		       COALESCE(reason, ''), entry_type, COALESCE(transaction_id, ''), updated_by, created_at
		FROM stock_ledger
		WHERE store_id = $1 AND deleted = false AND ($2 = '' OR sku = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, storeID, sku, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockLedgerEntry, 0, limit)
	for rows.Next() {
		var e domain.StockLedgerEntry
		if err := rows.Scan(&e.ID, &e.StoreID, &e.SKU, &e.NameSnapshot, &e.PrevStock, &e.Change, &e.NewStock,
			&e.Reason, &e.EntryType, &e.TransactionID, &e.UpdatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) insertTransaction(ctx context.Context, pgTx *sql.Tx, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	cart, err := json.Marshal(tx.Cart)
	if err != nil {
		return err
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (id, transaction_id, store_id, session_id, customer_id, cart,
		                          net_cents, vat_cents, total_cents, payment_method, cash_cents, change_cents,
		                          status, ref_transaction_id, created_by, deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,false,$16,$17)
	`, tx.ID, tx.TransactionID, tx.StoreID, nullIfEmpty(tx.SessionID), nullIfEmpty(tx.CustomerID), cart,
		tx.NetCents, tx.VatCents, tx.TotalCents, tx.PaymentMethod, tx.CashCents, tx.ChangeCents,
		tx.Status, nullIfEmpty(tx.RefTxID), tx.CreatedBy, tx.CreatedAt, tx.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: duplicate transaction id %s", store.ErrInvalidInput, tx.TransactionID)
	}
	return err
}

func (s *Store) CreateSale(ctx context.Context, tx domain.Transaction, decrements []store.StockChange) (*domain.Transaction, error) {
	if tx.TransactionID == "" || len(tx.Cart) == 0 {
		return nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, change := range decrements {
		if _, err := s.applyChange(ctx, pgTx, tx.StoreID, change); err != nil {
			return nil, err
		}
	}

	if tx.Status == "" {
		tx.Status = domain.TxStatusCompleted
	}
	if err := s.insertTransaction(ctx, pgTx, &tx); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.getTransaction(ctx, s.db, transactionID, false)
}

func (s *Store) getTransaction(ctx context.Context, q querier, transactionID string, forUpdate bool) (*domain.Transaction, error) {
	query := `
		SELECT id, transaction_id, store_id, COALESCE(session_id, ''), COALESCE(customer_id, ''), cart,
		       net_cents, vat_cents, total_cents, payment_method, cash_cents, change_cents,
		       status, COALESCE(ref_transaction_id, ''), created_by, created_at, updated_at
		FROM transactions
		WHERE transaction_id = $1 AND deleted = false`
	if forUpdate {
		query += `
		FOR UPDATE`
	}

	var tx domain.Transaction
	var cart []byte
	err := q.QueryRowContext(ctx, query, transactionID).Scan(
		&tx.ID, &tx.TransactionID, &tx.StoreID, &tx.SessionID, &tx.CustomerID, &cart,
		&tx.NetCents, &tx.VatCents, &tx.TotalCents, &tx.PaymentMethod, &tx.CashCents, &tx.ChangeCents,
		&tx.Status, &tx.RefTxID, &tx.CreatedBy, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, transactionID)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cart, &tx.Cart); err != nil {
		return nil, fmt.Errorf("decode cart for %s: %w", transactionID, err)
	}
	return &tx, nil
}

func (s *Store) TransactionIDExists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id = $1)
	`, transactionID).Scan(&exists)
	return exists, err
}

func (s *Store) ListCompletedTransactions(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, store_id, COALESCE(session_id, ''), COALESCE(customer_id, ''), cart,
		       net_cents, vat_cents, total_cents, payment_method, cash_cents, change_cents,
		       status, COALESCE(ref_transaction_id, ''), created_by, created_at, updated_at
		FROM transactions
		WHERE store_id = $1 AND deleted = false AND status = $2
		  AND created_at >= $3 AND created_at <= $4
		ORDER BY created_at
	`, storeID, domain.TxStatusCompleted, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		var tx domain.Transaction
		var cart []byte
		if err := rows.Scan(&tx.ID, &tx.TransactionID, &tx.StoreID, &tx.SessionID, &tx.CustomerID, &cart,
			&tx.NetCents, &tx.VatCents, &tx.TotalCents, &tx.PaymentMethod, &tx.CashCents, &tx.ChangeCents,
			&tx.Status, &tx.RefTxID, &tx.CreatedBy, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cart, &tx.Cart); err != nil {
			return nil, fmt.Errorf("decode cart for %s: %w", tx.TransactionID, err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
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

func (s *Store) VoidSale(ctx context.Context, original domain.Transaction, mirror domain.Transaction, restocks []store.StockChange) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	current, err := s.getTransaction(ctx, pgTx, original.TransactionID, true)
	if err != nil {
		return nil, err
	}
	if err := statusGuard(current.Status, original.TransactionID); err != nil {
		return nil, err
	}
	// The restocks mirror the caller's snapshot of the cart; a write that
	// landed since the snapshot (a partial refund, say) invalidates them.
	if !current.UpdatedAt.Equal(original.UpdatedAt) {
		return nil, fmt.Errorf("%w: %s", store.ErrUpdateConflict, original.TransactionID)
	}

	for _, change := range restocks {
		if _, err := s.applyChange(ctx, pgTx, current.StoreID, change); err != nil {
			return nil, err
		}
	}

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE transactions SET status = $1, updated_at = now()
		WHERE transaction_id = $2
	`, domain.TxStatusVoided, original.TransactionID); err != nil {
		return nil, err
	}

	mirror.Status = domain.TxStatusVoided
	if err := s.insertTransaction(ctx, pgTx, &mirror); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &mirror, nil
}

func (s *Store) ApplyRefund(ctx context.Context, original domain.Transaction, refund domain.Transaction, restocks []store.StockChange) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	current, err := s.getTransaction(ctx, pgTx, original.TransactionID, true)
	if err != nil {
		return nil, err
	}
	if err := statusGuard(current.Status, original.TransactionID); err != nil {
		return nil, err
	}
	// A partial refund leaves the original Completed, so the status guard
	// alone cannot catch two refunds reconciled from the same snapshot.
	if !current.UpdatedAt.Equal(original.UpdatedAt) {
		return nil, fmt.Errorf("%w: %s", store.ErrUpdateConflict, original.TransactionID)
	}

	for _, change := range restocks {
		if _, err := s.applyChange(ctx, pgTx, current.StoreID, change); err != nil {
			return nil, err
		}
	}

	cart, err := json.Marshal(original.Cart)
	if err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE transactions
		SET cart = $1, status = $2, net_cents = $3, vat_cents = $4, total_cents = $5, updated_at = now()
		WHERE transaction_id = $6
	`, cart, original.Status, original.NetCents, original.VatCents, original.TotalCents, original.TransactionID); err != nil {
		return nil, err
	}

	refund.Status = domain.TxStatusReturned
	if err := s.insertTransaction(ctx, pgTx, &refund); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (s *Store) CreateSession(ctx context.Context, session domain.TransactionSession) (*domain.TransactionSession, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	session.Active = true
	session.EndedAt = nil
	session.Summary = nil

	// A partial unique index on (store_id) WHERE is_active enforces the
	// one-active-session invariant at write time.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, store_id, started_by, started_at, is_active, is_scheduled)
		VALUES ($1,$2,$3,$4,true,$5)
	`, session.ID, session.StoreID, session.StartedBy, session.StartedAt, session.Scheduled)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: store %q", store.ErrSessionAlreadyActive, session.StoreID)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) GetActiveSession(ctx context.Context, storeID string) (*domain.TransactionSession, error) {
	var session domain.TransactionSession
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, started_by, started_at, is_active, is_scheduled
		FROM sessions
		WHERE store_id = $1 AND is_active = true
	`, storeID).Scan(&session.ID, &session.StoreID, &session.StartedBy, &session.StartedAt, &session.Active, &session.Scheduled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: store %q", store.ErrNoActiveSession, storeID)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) EndActiveSession(ctx context.Context, storeID string, endedBy string, at time.Time, summary domain.SalesSummary) (*domain.TransactionSession, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	var session domain.TransactionSession
	var endedAt time.Time
	err = s.db.QueryRowContext(ctx, `
		UPDATE sessions
		SET is_active = false, ended_by = $1, ended_at = $2, summary = $3
		WHERE store_id = $4 AND is_active = true
		RETURNING id, store_id, started_by, ended_by, started_at, ended_at, is_scheduled
	`, endedBy, at, payload, storeID).Scan(&session.ID, &session.StoreID, &session.StartedBy, &session.EndedBy,
		&session.StartedAt, &endedAt, &session.Scheduled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: store %q", store.ErrNoActiveSession, storeID)
	}
	if err != nil {
		return nil, err
	}
	session.EndedAt = &endedAt
	session.Summary = &summary
	return &session, nil
}

func (s *Store) ListStoreSchedules(ctx context.Context) ([]domain.StoreSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, schedule_enabled, COALESCE(schedule_start, ''), COALESCE(schedule_end, ''),
		       COALESCE(schedule_actor_id, ''), backup
		FROM store_schedules
		ORDER BY store_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]domain.StoreSchedule, 0, 16)
	for rows.Next() {
		var schedule domain.StoreSchedule
		var backup []byte
		if err := rows.Scan(&schedule.StoreID, &schedule.ScheduleEnabled, &schedule.ScheduleStart,
			&schedule.ScheduleEnd, &schedule.ScheduleActorID, &backup); err != nil {
			return nil, err
		}
		if len(backup) > 0 {
			var b domain.BackupSchedule
			if err := json.Unmarshal(backup, &b); err != nil {
				return nil, fmt.Errorf("decode backup schedule for %s: %w", schedule.StoreID, err)
			}
			schedule.Backup = &b
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

func (s *Store) RecordBackupRun(ctx context.Context, storeID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE store_schedules
		SET backup = jsonb_set(backup, '{last_run_at}', to_jsonb($1::timestamptz))
		WHERE store_id = $2 AND backup IS NOT NULL
	`, at, storeID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: backup schedule for store %q", store.ErrItemNotFound, storeID)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, balance_cents FROM customers WHERE id = $1
	`, customerID).Scan(&c.ID, &c.Name, &c.BalanceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %s", store.ErrItemNotFound, customerID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreditCustomerBalance(ctx context.Context, customerID string, amountCents int64, transactionID string) (*domain.CustomerLedgerEntry, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive", store.ErrInvalidInput)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var before int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT balance_cents FROM customers WHERE id = $1 FOR UPDATE
	`, customerID).Scan(&before)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %s", store.ErrItemNotFound, customerID)
	}
	if err != nil {
		return nil, err
	}

	entry := domain.CustomerLedgerEntry{
		ID:            uuid.NewString(),
		CustomerID:    customerID,
		AmountCents:   amountCents,
		BeforeCents:   before,
		AfterCents:    before + amountCents,
		EntryType:     "Refund",
		TransactionID: transactionID,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE customers SET balance_cents = $1 WHERE id = $2
	`, entry.AfterCents, customerID); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO customer_ledger (id, customer_id, amount_cents, balance_before_cents, balance_after_cents,
		                             entry_type, transaction_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.CustomerID, entry.AmountCents, entry.BeforeCents, entry.AfterCents,
		entry.EntryType, nullIfEmpty(entry.TransactionID), entry.CreatedAt); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, COALESCE(store_id, ''), created_at
		FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.StoreID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", store.ErrItemNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.StoreID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, limit int) ([]domain.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.Actor, &entry.Action, &entry.EntityType,
			&entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
