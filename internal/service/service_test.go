package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tokopos/internal/cache"
	"tokopos/internal/domain"
	"tokopos/internal/store"
	"tokopos/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopSessionCache{}, nil, "main-store"), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func startSession(t *testing.T, svc *Service) *domain.TransactionSession {
	t.Helper()
	session, err := svc.StartSession(adminCtx(), "main-store")
	if err != nil {
		t.Fatalf("start session failed: %v", err)
	}
	return session
}

func TestCreateTransactionRequiresActiveSession(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateTransaction(adminCtx(), domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayCash,
		CashCents:     100000,
		Cart:          []domain.CartLineInput{{ProductID: "prod-roti", Qty: 2}},
	})
	if !errors.Is(err, store.ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
}

func TestCreateTransactionCashHappyPath(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	tx, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayCash,
		CashCents:     50000,
		VatRate:       0.11,
		Cart:          []domain.CartLineInput{{ProductID: "prod-roti", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create transaction failed: %v", err)
	}
	if len(tx.TransactionID) != 9 {
		t.Fatalf("expected 9-digit transaction id, got %q", tx.TransactionID)
	}
	if tx.NetCents != 30000 {
		t.Fatalf("expected net 30000, got %d", tx.NetCents)
	}
	if tx.VatCents != 3300 {
		t.Fatalf("expected vat 3300, got %d", tx.VatCents)
	}
	if tx.ChangeCents != 50000-33300 {
		t.Fatalf("expected change %d, got %d", 50000-33300, tx.ChangeCents)
	}
	if tx.Status != domain.TxStatusCompleted {
		t.Fatalf("expected Completed status, got %s", tx.Status)
	}

	products, err := svc.ListProducts(ctx, "main-store")
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		if p.ID == "prod-roti" && p.Quantity != 58 {
			t.Fatalf("expected roti stock 58 after sale, got %d", p.Quantity)
		}
	}
}

func TestCreateTransactionRejectsCashBelowTotal(t *testing.T) {
	svc, _ := newTestService()
	startSession(t, svc)

	_, err := svc.CreateTransaction(adminCtx(), domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayCash,
		CashCents:     100,
		Cart:          []domain.CartLineInput{{ProductID: "prod-roti", Qty: 1}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short cash, got %v", err)
	}
}

func TestCreateTransactionAtomicOnPartialFailure(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	// Second line asks for more than the seeded 80 units, so the whole
	// cart must be rejected and the first line's stock left untouched.
	_, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart: []domain.CartLineInput{
			{ProductID: "prod-roti", Qty: 2},
			{ProductID: "prod-teh", Qty: 500},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	products, err := svc.ListProducts(ctx, "main-store")
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		switch p.ID {
		case "prod-roti":
			if p.Quantity != 60 {
				t.Fatalf("roti stock mutated on failed cart: %d", p.Quantity)
			}
		case "prod-teh":
			if p.Quantity != 80 {
				t.Fatalf("teh stock mutated on failed cart: %d", p.Quantity)
			}
		}
	}

	entries, err := svc.ListStockLedger(ctx, "main-store", "", 100)
	if err != nil {
		t.Fatalf("list ledger failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger after failed cart, got %d entries", len(entries))
	}
}

func TestSellToZeroThenInsufficientStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	_, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart:          []domain.CartLineInput{{ProductID: "prod-roti", Qty: 60}},
	})
	if err != nil {
		t.Fatalf("selling exact stock should succeed: %v", err)
	}

	_, err = svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart:          []domain.CartLineInput{{ProductID: "prod-roti", Qty: 1}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock at zero stock, got %v", err)
	}
}

func TestStockLedgerChainBalances(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
			StoreID:       "main-store",
			PaymentMethod: domain.PayQRIS,
			Cart:          []domain.CartLineInput{{ProductID: "prod-teh", Qty: 5}},
		}); err != nil {
			t.Fatalf("sale %d failed: %v", i, err)
		}
	}
	if _, err := svc.AdjustStock(ctx, "main-store", domain.HolderRef{Kind: domain.HolderProduct, ProductID: "prod-teh"}, 20, "weekly delivery", domain.LedgerRestock); err != nil {
		t.Fatalf("restock failed: %v", err)
	}

	entries, err := svc.ListStockLedger(ctx, "main-store", "SKU-TEH-01", 100)
	if err != nil {
		t.Fatalf("list ledger failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 ledger entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.NewStock != entry.PrevStock+entry.Change {
			t.Fatalf("ledger entry does not balance: prev=%d change=%d new=%d", entry.PrevStock, entry.Change, entry.NewStock)
		}
	}
}

func TestAdjustStockRejectsSaleEntryTypes(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AdjustStock(adminCtx(), "main-store", domain.HolderRef{Kind: domain.HolderProduct, ProductID: "prod-teh"}, -1, "", domain.LedgerPurchased)
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for sale entry type, got %v", err)
	}
}

func TestVoidRestoresStockAndFlipsOriginal(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	sale, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart: []domain.CartLineInput{
			{ProductID: "prod-kopi", VariantID: "var-kopi-r", Qty: 3, Addons: []domain.AddonLineInput{{AddonID: "addon-shot", Qty: 3}}},
		},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	mirror, err := svc.VoidTransaction(ctx, sale.TransactionID, "wrong order")
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if mirror.Status != domain.TxStatusVoided {
		t.Fatalf("expected mirror status Voided, got %s", mirror.Status)
	}
	if mirror.RefTxID != sale.TransactionID {
		t.Fatalf("mirror must reference the original transaction")
	}
	if mirror.TransactionID == sale.TransactionID {
		t.Fatalf("mirror must get its own transaction id")
	}

	original, err := svc.GetTransaction(ctx, sale.TransactionID)
	if err != nil {
		t.Fatalf("get original failed: %v", err)
	}
	if original.Status != domain.TxStatusVoided {
		t.Fatalf("expected original flipped to Voided, got %s", original.Status)
	}

	products, err := svc.ListProducts(ctx, "main-store")
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		if p.ID != "prod-kopi" {
			continue
		}
		for _, v := range p.Variants {
			if v.ID == "var-kopi-r" && v.Quantity != 40 {
				t.Fatalf("expected variant stock restored to 40, got %d", v.Quantity)
			}
		}
		for _, a := range p.Addons {
			if a.ID == "addon-shot" && a.Quantity != 100 {
				t.Fatalf("expected addon stock restored to 100, got %d", a.Quantity)
			}
		}
	}

	if _, err := svc.VoidTransaction(ctx, sale.TransactionID, "twice"); !errors.Is(err, store.ErrAlreadyVoided) {
		t.Fatalf("expected ErrAlreadyVoided on second void, got %v", err)
	}
}

func TestVoidAndRefundRequireActiveSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	sale, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayCash,
		CashCents:     50_000,
		Cart:          []domain.CartLineInput{{ProductID: "prod-roti", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if _, err := svc.EndSession(ctx, "main-store"); err != nil {
		t.Fatalf("end session failed: %v", err)
	}

	if _, err := svc.VoidTransaction(ctx, sale.TransactionID, "closed"); !errors.Is(err, store.ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive on void, got %v", err)
	}
	if _, err := svc.RefundTransaction(ctx, domain.RefundRequest{
		TransactionID: sale.TransactionID,
		Lines:         []domain.RefundLineInput{{LineID: "prod-roti", Qty: 1}},
	}); !errors.Is(err, store.ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive on refund, got %v", err)
	}

	// The session gate comes first even when the transaction id is unknown.
	if _, err := svc.VoidTransaction(ctx, "999999999", ""); !errors.Is(err, store.ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive for unknown id with closed session, got %v", err)
	}
}

func TestConcurrentPartialRefundsSettleExactly(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	sale, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart:          []domain.CartLineInput{{ProductID: "prod-roti", Qty: 4}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	// Both refunds snapshot the original before either applies. The loser
	// of the write race must reconcile the remaining two units, not restock
	// its stale view of all four.
	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.RefundTransaction(ctx, domain.RefundRequest{
				TransactionID: sale.TransactionID,
				Lines:         []domain.RefundLineInput{{LineID: "prod-roti", Qty: 2}},
			})
		}(i)
	}
	close(start)
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("refund %d failed: %v", i, err)
		}
	}

	products, err := svc.ListProducts(ctx, "main-store")
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	for _, p := range products {
		if p.ID == "prod-roti" && p.Quantity != 60 {
			t.Fatalf("expected exactly the 4 sold units restored (60), got %d", p.Quantity)
		}
	}

	original, err := svc.GetTransaction(ctx, sale.TransactionID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Status != domain.TxStatusReturned {
		t.Fatalf("expected original fully Returned, got %s", original.Status)
	}
	if len(original.Cart) != 0 {
		t.Fatalf("expected empty reconciled cart, got %d lines", len(original.Cart))
	}

	if _, err := svc.RefundTransaction(ctx, domain.RefundRequest{
		TransactionID: sale.TransactionID,
		Lines:         []domain.RefundLineInput{{LineID: "prod-roti", Qty: 1}},
	}); !errors.Is(err, store.ErrAlreadyReturned) {
		t.Fatalf("expected ErrAlreadyReturned on third refund, got %v", err)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	// 30 sales of 5 units each against 120 on hand: exactly 24 can fit.
	const workers = 30
	start := make(chan struct{})
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
				StoreID:       "main-store",
				PaymentMethod: domain.PayQRIS,
				Cart:          []domain.CartLineInput{{ProductID: "prod-air", Qty: 5}},
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientStock):
		default:
			t.Fatalf("unexpected sale error: %v", err)
		}
	}
	if succeeded != 24 {
		t.Fatalf("expected 24 sales to fit in 120 units, got %d", succeeded)
	}

	products, err := svc.ListProducts(ctx, "main-store")
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	for _, p := range products {
		if p.ID == "prod-air" {
			if p.Quantity != 0 {
				t.Fatalf("expected counter drained to 0, got %d", p.Quantity)
			}
			if p.Status != domain.StatusSoldOut {
				t.Fatalf("expected sold-out status, got %s", p.Status)
			}
		}
	}

	// Newest-first entries must chain: each prev equals the next entry's new.
	entries, err := svc.ListStockLedger(ctx, "main-store", "SKU-AIR-01", 100)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 24 {
		t.Fatalf("expected 24 ledger entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.NewStock != e.PrevStock+e.Change {
			t.Fatalf("entry does not balance: %+v", e)
		}
	}
	for i := 0; i+1 < len(entries); i++ {
		if entries[i].PrevStock != entries[i+1].NewStock {
			t.Fatalf("ledger chain broken between entries %d and %d", i, i+1)
		}
	}
	if entries[len(entries)-1].PrevStock != 120 || entries[0].NewStock != 0 {
		t.Fatalf("chain endpoints wrong: first prev %d, last new %d",
			entries[len(entries)-1].PrevStock, entries[0].NewStock)
	}
}

func TestPartialRefundReconcilesOriginalCart(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	sale, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		VatRate:       0.10,
		Cart: []domain.CartLineInput{
			{ProductID: "prod-roti", Qty: 4},
			{ProductID: "prod-teh", Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	refund, err := svc.RefundTransaction(ctx, domain.RefundRequest{
		TransactionID: sale.TransactionID,
		RefundMethod:  domain.PayQRIS,
		Lines:         []domain.RefundLineInput{{LineID: "prod-roti", IsVariant: false, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refund.Status != domain.TxStatusReturned {
		t.Fatalf("expected refund record status Returned, got %s", refund.Status)
	}
	if refund.RefTxID != sale.TransactionID {
		t.Fatalf("refund must reference the original transaction")
	}
	if refund.NetCents != 30000 {
		t.Fatalf("expected refund net 30000, got %d", refund.NetCents)
	}

	original, err := svc.GetTransaction(ctx, sale.TransactionID)
	if err != nil {
		t.Fatalf("get original failed: %v", err)
	}
	if original.Status != domain.TxStatusCompleted {
		t.Fatalf("partially refunded sale must stay Completed, got %s", original.Status)
	}
	if len(original.Cart) != 2 {
		t.Fatalf("expected both lines kept, got %d", len(original.Cart))
	}
	for _, line := range original.Cart {
		if line.LineID == "prod-roti" && line.Qty != 2 {
			t.Fatalf("expected roti line reduced to 2, got %d", line.Qty)
		}
	}
	// VAT conservation: refund VAT plus remaining VAT equals the original.
	if refund.VatCents+original.VatCents != sale.VatCents {
		t.Fatalf("vat not conserved: refund=%d remaining=%d original=%d", refund.VatCents, original.VatCents, sale.VatCents)
	}

	products, err := svc.ListProducts(ctx, "main-store")
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	for _, p := range products {
		if p.ID == "prod-roti" && p.Quantity != 58 {
			t.Fatalf("expected roti stock back at 58 after refund, got %d", p.Quantity)
		}
	}
}

func TestFullRefundMarksOriginalReturned(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	sale, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart:          []domain.CartLineInput{{ProductID: "prod-air", Qty: 3}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	if _, err := svc.RefundTransaction(ctx, domain.RefundRequest{
		TransactionID: sale.TransactionID,
		RefundMethod:  domain.PayQRIS,
		Lines:         []domain.RefundLineInput{{LineID: "prod-air", Qty: 3}},
	}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	original, err := svc.GetTransaction(ctx, sale.TransactionID)
	if err != nil {
		t.Fatalf("get original failed: %v", err)
	}
	if original.Status != domain.TxStatusReturned {
		t.Fatalf("expected original status Returned, got %s", original.Status)
	}
	if len(original.Cart) != 0 {
		t.Fatalf("expected empty cart after full refund, got %d lines", len(original.Cart))
	}
	if original.TotalCents != 0 || original.NetCents != 0 || original.VatCents != 0 {
		t.Fatalf("expected zeroed totals after full refund")
	}

	if _, err := svc.RefundTransaction(ctx, domain.RefundRequest{
		TransactionID: sale.TransactionID,
		RefundMethod:  domain.PayQRIS,
		Lines:         []domain.RefundLineInput{{LineID: "prod-air", Qty: 1}},
	}); !errors.Is(err, store.ErrAlreadyReturned) {
		t.Fatalf("expected ErrAlreadyReturned on second refund, got %v", err)
	}
}

func TestRefundRejectsBadLines(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	sale, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart:          []domain.CartLineInput{{ProductID: "prod-air", Qty: 3}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	cases := []struct {
		name  string
		lines []domain.RefundLineInput
	}{
		{"over quantity", []domain.RefundLineInput{{LineID: "prod-air", Qty: 4}}},
		{"unknown line", []domain.RefundLineInput{{LineID: "prod-teh", Qty: 1}}},
		{"variant mismatch", []domain.RefundLineInput{{LineID: "prod-air", IsVariant: true, Qty: 1}}},
		{"duplicate line", []domain.RefundLineInput{{LineID: "prod-air", Qty: 1}, {LineID: "prod-air", Qty: 1}}},
	}
	for _, tc := range cases {
		_, err := svc.RefundTransaction(ctx, domain.RefundRequest{
			TransactionID: sale.TransactionID,
			RefundMethod:  domain.PayQRIS,
			Lines:         tc.lines,
		})
		if !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestEWalletRefundCreditsCustomerBalance(t *testing.T) {
	svc, repo := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	sale, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		CustomerID:    "cust-1",
		PaymentMethod: domain.PayEWallet,
		Cart:          []domain.CartLineInput{{ProductID: "prod-air", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	refund, err := svc.RefundTransaction(ctx, domain.RefundRequest{
		TransactionID: sale.TransactionID,
		RefundMethod:  domain.PayEWallet,
		Lines:         []domain.RefundLineInput{{LineID: "prod-air", Qty: 2}},
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	customer, err := repo.GetCustomer(ctx, "cust-1")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if customer.BalanceCents != refund.TotalCents {
		t.Fatalf("expected balance %d credited, got %d", refund.TotalCents, customer.BalanceCents)
	}
}

func TestSessionDoubleStartFails(t *testing.T) {
	svc, _ := newTestService()
	startSession(t, svc)

	_, err := svc.StartSession(adminCtx(), "main-store")
	if !errors.Is(err, store.ErrSessionAlreadyActive) {
		t.Fatalf("expected ErrSessionAlreadyActive, got %v", err)
	}

	// A different store scope is independent.
	if _, err := svc.StartSession(adminCtx(), "branch-2"); err != nil {
		t.Fatalf("second scope should start cleanly: %v", err)
	}
}

func TestEndSessionComputesSummaryWithCostFallback(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	// Large kopi has zero variant cost, so profit must fall back to the
	// parent product cost of 7000.
	if _, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart:          []domain.CartLineInput{{ProductID: "prod-kopi", VariantID: "var-kopi-l", Qty: 2}},
	}); err != nil {
		t.Fatalf("sale failed: %v", err)
	}

	session, err := svc.EndSession(ctx, "main-store")
	if err != nil {
		t.Fatalf("end session failed: %v", err)
	}
	if session.Active {
		t.Fatalf("ended session must not be active")
	}
	if session.EndedAt == nil {
		t.Fatalf("ended session must carry EndedAt")
	}
	if session.Summary == nil {
		t.Fatalf("ended session must carry a sales summary")
	}
	if session.Summary.TransactionCount != 1 {
		t.Fatalf("expected 1 transaction, got %d", session.Summary.TransactionCount)
	}
	if session.Summary.TotalSalesCents != 44000 {
		t.Fatalf("expected sales 44000, got %d", session.Summary.TotalSalesCents)
	}
	if want := int64(22000-7000) * 2; session.Summary.TotalProfitCents != want {
		t.Fatalf("expected profit %d via parent cost fallback, got %d", want, session.Summary.TotalProfitCents)
	}
	if session.Summary.TotalProducts != 2 {
		t.Fatalf("expected 2 products sold, got %d", session.Summary.TotalProducts)
	}

	if _, err := svc.EndSession(ctx, "main-store"); !errors.Is(err, store.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession on second end, got %v", err)
	}
}

func TestVoidedSalesExcludedFromSummary(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	startSession(t, svc)

	kept, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart:          []domain.CartLineInput{{ProductID: "prod-teh", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	voided, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		StoreID:       "main-store",
		PaymentMethod: domain.PayQRIS,
		Cart:          []domain.CartLineInput{{ProductID: "prod-air", Qty: 5}},
	})
	if err != nil {
		t.Fatalf("sale failed: %v", err)
	}
	if _, err := svc.VoidTransaction(ctx, voided.TransactionID, ""); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	session, err := svc.EndSession(ctx, "main-store")
	if err != nil {
		t.Fatalf("end session failed: %v", err)
	}
	if session.Summary.TransactionCount != 1 {
		t.Fatalf("expected only the completed sale counted, got %d", session.Summary.TransactionCount)
	}
	if session.Summary.TotalSalesCents != kept.TotalCents {
		t.Fatalf("expected sales %d, got %d", kept.TotalCents, session.Summary.TotalSalesCents)
	}
}

func TestGetSessionStatusWithoutSession(t *testing.T) {
	svc, _ := newTestService()

	status, err := svc.GetSessionStatus(context.Background(), "main-store")
	if err != nil {
		t.Fatalf("status lookup failed: %v", err)
	}
	if status.Active || status.Session != nil {
		t.Fatalf("expected inactive status for fresh store")
	}

	startSession(t, svc)
	status, err = svc.GetSessionStatus(context.Background(), "main-store")
	if err != nil {
		t.Fatalf("status lookup failed: %v", err)
	}
	if !status.Active || status.Session == nil {
		t.Fatalf("expected active status after start")
	}
}

func TestGetSalesReportRejectsEmptyWindow(t *testing.T) {
	svc, _ := newTestService()
	now := time.Now().UTC()

	_, err := svc.GetSalesReport(context.Background(), "main-store", now, now)
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty window, got %v", err)
	}
}

func TestAuthenticateSeededUsers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("expected seeded admin login to work: %v", err)
	}
	if user.Role != "admin" {
		t.Fatalf("expected admin role, got %s", user.Role)
	}

	if _, err := svc.Authenticate(ctx, "admin", "wrong"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if _, err := svc.Authenticate(ctx, "ghost", "whatever"); err == nil {
		t.Fatalf("expected unknown user to fail")
	}
}
