package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

func TestVoidSaleRestocksInventory(t *testing.T) {
	databaseURL := os.Getenv("TOKOPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	storeID := "main-store"
	productID := fmt.Sprintf("prod-void-it-%d", stamp)
	sku := fmt.Sprintf("SKU-VOID-IT-%d", stamp)
	txID := fmt.Sprintf("%09d", stamp%1_000_000_000)
	mirrorID := fmt.Sprintf("%09d", (stamp+1)%1_000_000_000)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_ledger WHERE sku = $1`, sku)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE transaction_id IN ($1, $2)`, txID, mirrorID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, store_id, sku, name, category, price_cents, cost_cents,
		                      quantity, quantity_alert, status, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, 'Produk Void IT', 'snack', 12000, 5000, 10, 2, 'active', false, now(), now())
	`, productID, storeID, sku); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	cart := []domain.CartLine{{
		LineID:     productID,
		ProductID:  productID,
		Name:       "Produk Void IT",
		Qty:        2,
		PriceCents: 12000,
		TotalCents: 24000,
	}}
	cartJSON, _ := json.Marshal(cart)
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, transaction_id, store_id, cart, net_cents, vat_cents, total_cents,
		                          payment_method, cash_cents, change_cents, status, created_by, deleted, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, 24000, 0, 24000, 'Cash', 25000, 1000, $4, 'it-test', false, now(), now())
	`, txID, storeID, cartJSON, domain.TxStatusCompleted); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	mirror := domain.Transaction{
		TransactionID: mirrorID,
		StoreID:       storeID,
		Cart:          cart,
		NetCents:      24000,
		TotalCents:    24000,
		PaymentMethod: domain.PayCash,
		Status:        domain.TxStatusVoided,
		RefTxID:       txID,
		CreatedBy:     "it-test",
	}
	restocks := []store.StockChange{{
		Ref:           domain.HolderRef{Kind: domain.HolderProduct, ProductID: productID},
		Delta:         2,
		EntryType:     domain.LedgerVoided,
		TransactionID: txID,
		UpdatedBy:     "it-test",
	}}

	snapshot, err := s.GetTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if _, err := s.VoidSale(ctx, *snapshot, mirror, restocks); err != nil {
		t.Fatalf("void sale: %v", err)
	}

	var qty int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT quantity FROM products WHERE id = $1
	`, productID).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if qty != 12 {
		t.Fatalf("expected stock 12 after void restock, got %d", qty)
	}

	original, err := s.GetTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Status != domain.TxStatusVoided {
		t.Fatalf("expected original flipped to Voided, got %s", original.Status)
	}

	entries, err := s.ListStockLedger(ctx, storeID, sku, 10)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	if entries[0].PrevStock != 10 || entries[0].Change != 2 || entries[0].NewStock != 12 {
		t.Fatalf("unexpected ledger entry: %+v", entries[0])
	}
}
