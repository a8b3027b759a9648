package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tokopos/internal/cache"
	"tokopos/internal/domain"
	"tokopos/internal/metrics"
	"tokopos/internal/store"
	"tokopos/internal/txid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const sessionStatusTTL = 30 * time.Second

type Service struct {
	repo           store.Repository
	ids            *txid.Allocator
	sessions       cache.SessionCache
	log            *zap.Logger
	defaultStoreID string
}

func New(repo store.Repository, sessions cache.SessionCache, logger *zap.Logger, defaultStoreID string) *Service {
	if defaultStoreID == "" {
		defaultStoreID = "main-store"
	}
	if sessions == nil {
		sessions = cache.NoopSessionCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:           repo,
		ids:            txid.NewAllocator(repo.TransactionIDExists),
		sessions:       sessions,
		log:            logger,
		defaultStoreID: defaultStoreID,
	}
}

func (s *Service) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, s.storeOrDefault(storeID))
}

func (s *Service) ListStockLedger(ctx context.Context, storeID string, sku string, limit int) ([]domain.StockLedgerEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListStockLedger(ctx, s.storeOrDefault(storeID), strings.ToUpper(strings.TrimSpace(sku)), limit)
}

// AdjustStock applies a manual correction or a restock to a single holder.
// Only the two operator-facing entry types are accepted here; sale-driven
// entries are written by the transaction paths.
func (s *Service) AdjustStock(ctx context.Context, storeID string, ref domain.HolderRef, delta int64, reason string, entryType string) (*domain.StockLedgerEntry, error) {
	storeID = s.storeOrDefault(storeID)
	if entryType != domain.LedgerManual && entryType != domain.LedgerRestock {
		return nil, fmt.Errorf("%w: entry type %q not allowed for direct adjustment", store.ErrInvalidInput, entryType)
	}
	if delta == 0 {
		return nil, fmt.Errorf("%w: zero stock change", store.ErrInvalidInput)
	}

	entry, err := s.repo.AdjustStock(ctx, storeID, store.StockChange{
		Ref:       ref,
		Delta:     delta,
		Reason:    strings.TrimSpace(reason),
		EntryType: entryType,
		UpdatedBy: s.actorName(ctx),
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			metrics.InsufficientStockTotal.Inc()
		}
		return nil, err
	}

	metrics.StockAdjustmentsTotal.WithLabelValues(entryType).Inc()
	s.logAudit(ctx, storeID, "stock_adjust", "stock", entry.SKU, fmt.Sprintf("delta=%d,new=%d,type=%s", delta, entry.NewStock, entryType))
	return entry, nil
}

// resolvedCart is a validated cart: catalog-priced lines plus the stock
// decrements that selling them requires.
type resolvedCart struct {
	lines      []domain.CartLine
	decrements []store.StockChange
	netCents   int64
}

func (s *Service) resolveCart(ctx context.Context, storeID string, inputs []domain.CartLineInput, actor string) (*resolvedCart, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: empty cart", store.ErrInvalidInput)
	}

	result := &resolvedCart{
		lines:      make([]domain.CartLine, 0, len(inputs)),
		decrements: make([]store.StockChange, 0, len(inputs)),
	}
	for _, input := range inputs {
		if input.Qty < 1 {
			return nil, fmt.Errorf("%w: line quantity must be at least 1", store.ErrInvalidInput)
		}
		product, err := s.repo.GetProduct(ctx, storeID, input.ProductID)
		if err != nil {
			return nil, err
		}
		if product.Status == domain.StatusInactive {
			return nil, fmt.Errorf("%w: product %s is inactive", store.ErrItemNotFound, input.ProductID)
		}

		line := domain.CartLine{
			ProductID: product.ID,
			Qty:       input.Qty,
		}
		var ref domain.HolderRef
		if input.VariantID != "" {
			variant := findVariant(product, input.VariantID)
			if variant == nil {
				return nil, fmt.Errorf("%w: variant %s of product %s", store.ErrVariantNotFound, input.VariantID, input.ProductID)
			}
			line.LineID = variant.ID
			line.IsVariant = true
			line.Name = product.Name + " " + variant.Name
			line.PriceCents = variant.PriceCents
			ref = domain.HolderRef{Kind: domain.HolderVariant, ProductID: product.ID, VariantID: variant.ID}
		} else {
			line.LineID = product.ID
			line.Name = product.Name
			line.PriceCents = product.PriceCents
			ref = domain.HolderRef{Kind: domain.HolderProduct, ProductID: product.ID}
		}
		line.TotalCents = line.PriceCents * line.Qty

		lineTotal := line.TotalCents
		for _, addonInput := range input.Addons {
			if addonInput.Qty < 1 {
				return nil, fmt.Errorf("%w: addon quantity must be at least 1", store.ErrInvalidInput)
			}
			addon := findAddon(product, addonInput.AddonID)
			if addon == nil {
				return nil, fmt.Errorf("%w: addon %s of product %s", store.ErrItemNotFound, addonInput.AddonID, input.ProductID)
			}
			line.Addons = append(line.Addons, domain.AddonLine{
				AddonID:    addon.ID,
				Name:       addon.Name,
				Qty:        addonInput.Qty,
				PriceCents: addon.PriceCents,
			})
			lineTotal += addon.PriceCents * addonInput.Qty
			result.decrements = append(result.decrements, store.StockChange{
				Ref:       domain.HolderRef{Kind: domain.HolderAddon, ProductID: product.ID, AddonID: addon.ID},
				Delta:     -addonInput.Qty,
				EntryType: domain.LedgerPurchased,
				UpdatedBy: actor,
			})
		}

		result.lines = append(result.lines, line)
		result.decrements = append(result.decrements, store.StockChange{
			Ref:       ref,
			Delta:     -line.Qty,
			EntryType: domain.LedgerPurchased,
			UpdatedBy: actor,
		})
		result.netCents += lineTotal
	}
	return result, nil
}

// CreateTransaction validates the whole cart against the catalog, then
// persists the sale and its stock decrements in one atomic write. Nothing
// is mutated when any line fails.
func (s *Service) CreateTransaction(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	storeID := s.storeOrDefault(req.StoreID)
	actor := s.actorName(ctx)

	session, err := s.repo.GetActiveSession(ctx, storeID)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveSession) {
			metrics.TransactionsRejectedTotal.WithLabelValues("session_inactive").Inc()
			return nil, fmt.Errorf("%w: store %q", store.ErrSessionInactive, storeID)
		}
		return nil, err
	}

	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: payment method %q", store.ErrInvalidInput, req.PaymentMethod)
	}
	if req.VatRate < 0 || req.VatRate > 1 {
		return nil, fmt.Errorf("%w: vat rate out of range", store.ErrInvalidInput)
	}

	resolved, err := s.resolveCart(ctx, storeID, req.Cart, actor)
	if err != nil {
		metrics.TransactionsRejectedTotal.WithLabelValues("invalid_cart").Inc()
		return nil, err
	}

	vat := int64(math.Round(float64(resolved.netCents) * req.VatRate))
	total := resolved.netCents + vat

	var change int64
	if req.PaymentMethod == domain.PayCash {
		if req.CashCents < total {
			return nil, fmt.Errorf("%w: cash received below total", store.ErrInvalidInput)
		}
		change = req.CashCents - total
	}

	id, err := s.ids.Next(ctx)
	if err != nil {
		return nil, err
	}
	for i := range resolved.decrements {
		resolved.decrements[i].TransactionID = id
	}

	tx := domain.Transaction{
		TransactionID: id,
		StoreID:       storeID,
		SessionID:     session.ID,
		CustomerID:    req.CustomerID,
		Cart:          resolved.lines,
		NetCents:      resolved.netCents,
		VatCents:      vat,
		TotalCents:    total,
		PaymentMethod: req.PaymentMethod,
		CashCents:     req.CashCents,
		ChangeCents:   change,
		Status:        domain.TxStatusCompleted,
		CreatedBy:     actor,
	}

	created, err := s.repo.CreateSale(ctx, tx, resolved.decrements)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			metrics.InsufficientStockTotal.Inc()
			metrics.TransactionsRejectedTotal.WithLabelValues("insufficient_stock").Inc()
		}
		return nil, err
	}

	metrics.TransactionsTotal.WithLabelValues("sale").Inc()
	metrics.StockAdjustmentsTotal.WithLabelValues(domain.LedgerPurchased).Add(float64(len(resolved.decrements)))
	s.logAudit(ctx, storeID, "transaction_create", "transaction", created.TransactionID, fmt.Sprintf("total=%d,payment=%s,lines=%d", created.TotalCents, created.PaymentMethod, len(created.Cart)))
	return created, nil
}

// requireActiveSession gates mutating sale operations on an open session
// for the store scope the transaction belongs to.
func (s *Service) requireActiveSession(ctx context.Context, storeID string) error {
	if _, err := s.repo.GetActiveSession(ctx, storeID); err != nil {
		if errors.Is(err, store.ErrNoActiveSession) {
			metrics.TransactionsRejectedTotal.WithLabelValues("session_inactive").Inc()
			return fmt.Errorf("%w: store %q", store.ErrSessionInactive, storeID)
		}
		return err
	}
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", store.ErrInvalidInput)
	}
	return s.repo.GetTransaction(ctx, transactionID)
}

// conflictRetries bounds the re-read-and-retry loop around the optimistic
// UpdatedAt check in VoidSale and ApplyRefund.
const conflictRetries = 3

// loadForMutation gates a void or refund on an active session before the
// transaction itself is consulted. When the load fails the session check
// still runs against the default store scope, so a closed session is
// reported ahead of a missing transaction.
func (s *Service) loadForMutation(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	original, loadErr := s.repo.GetTransaction(ctx, transactionID)
	scope := s.storeOrDefault("")
	if loadErr == nil {
		scope = original.StoreID
	}
	if err := s.requireActiveSession(ctx, scope); err != nil {
		return nil, err
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return original, nil
}

func mutableStatus(tx *domain.Transaction) error {
	switch tx.Status {
	case domain.TxStatusCompleted:
		return nil
	case domain.TxStatusVoided:
		return fmt.Errorf("%w: %s", store.ErrAlreadyVoided, tx.TransactionID)
	case domain.TxStatusReturned:
		return fmt.Errorf("%w: %s", store.ErrAlreadyReturned, tx.TransactionID)
	case domain.TxStatusCanceled:
		return fmt.Errorf("%w: transaction %s is canceled", store.ErrInvalidInput, tx.TransactionID)
	default:
		return fmt.Errorf("%w: transaction %s in status %s", store.ErrInvalidInput, tx.TransactionID, tx.Status)
	}
}

func voidRestocks(original *domain.Transaction, reason string, actor string) []store.StockChange {
	restocks := make([]store.StockChange, 0, len(original.Cart))
	for _, line := range original.Cart {
		restocks = append(restocks, store.StockChange{
			Ref:           lineRef(line),
			Delta:         line.Qty,
			Reason:        reason,
			EntryType:     domain.LedgerVoided,
			TransactionID: original.TransactionID,
			UpdatedBy:     actor,
		})
		for _, addon := range line.Addons {
			restocks = append(restocks, store.StockChange{
				Ref:           domain.HolderRef{Kind: domain.HolderAddon, ProductID: line.ProductID, AddonID: addon.AddonID},
				Delta:         addon.Qty,
				Reason:        reason,
				EntryType:     domain.LedgerVoided,
				TransactionID: original.TransactionID,
				UpdatedBy:     actor,
			})
		}
	}
	return restocks
}

// VoidTransaction cancels a completed sale whole: every sold line and addon
// is restocked, the original flips to Voided and a mirror record with its
// own id points back at it. The restocks are recomputed from a fresh read
// whenever the store reports a concurrent update.
func (s *Service) VoidTransaction(ctx context.Context, transactionID string, reason string) (*domain.Transaction, error) {
	actor := s.actorName(ctx)
	original, err := s.loadForMutation(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	mirrorID, err := s.ids.Next(ctx)
	if err != nil {
		return nil, err
	}

	var created *domain.Transaction
	var restocks []store.StockChange
	for attempt := 0; ; attempt++ {
		if err := mutableStatus(original); err != nil {
			return nil, err
		}

		restocks = voidRestocks(original, reason, actor)
		mirror := domain.Transaction{
			TransactionID: mirrorID,
			StoreID:       original.StoreID,
			SessionID:     original.SessionID,
			CustomerID:    original.CustomerID,
			Cart:          original.Cart,
			NetCents:      original.NetCents,
			VatCents:      original.VatCents,
			TotalCents:    original.TotalCents,
			PaymentMethod: original.PaymentMethod,
			Status:        domain.TxStatusVoided,
			RefTxID:       original.TransactionID,
			CreatedBy:     actor,
		}

		created, err = s.repo.VoidSale(ctx, *original, mirror, restocks)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrUpdateConflict) || attempt+1 >= conflictRetries {
			return nil, err
		}
		original, err = s.repo.GetTransaction(ctx, transactionID)
		if err != nil {
			return nil, err
		}
	}

	metrics.TransactionsTotal.WithLabelValues("void").Inc()
	metrics.StockAdjustmentsTotal.WithLabelValues(domain.LedgerVoided).Add(float64(len(restocks)))
	s.logAudit(ctx, original.StoreID, "transaction_void", "transaction", original.TransactionID, fmt.Sprintf("mirror=%s,reason=%s", mirrorID, reason))
	return created, nil
}

// refundPlan is one attempt's worth of refund reconciliation, computed from
// a single read of the original transaction. The snapshot it was derived
// from travels along in updated.UpdatedAt so the store can reject the plan
// when the original has moved on.
type refundPlan struct {
	updated  domain.Transaction
	refund   domain.Transaction
	restocks []store.StockChange
}

func buildRefundPlan(original *domain.Transaction, req domain.RefundRequest, refundID string, actor string, reason string) (refundPlan, error) {
	type lineKey struct {
		id        string
		isVariant bool
	}
	seen := make(map[lineKey]bool, len(req.Lines))
	remaining := cloneCart(original.Cart)
	refundedLines := make([]domain.CartLine, 0, len(req.Lines))
	restocks := make([]store.StockChange, 0, len(req.Lines))
	var refundNet int64

	for _, refundLine := range req.Lines {
		if refundLine.Qty < 1 {
			return refundPlan{}, fmt.Errorf("%w: refund quantity must be at least 1", store.ErrInvalidInput)
		}
		key := lineKey{id: refundLine.LineID, isVariant: refundLine.IsVariant}
		if seen[key] {
			return refundPlan{}, fmt.Errorf("%w: duplicate refund line %s", store.ErrInvalidInput, refundLine.LineID)
		}
		seen[key] = true

		idx := findCartLine(remaining, refundLine.LineID, refundLine.IsVariant)
		if idx < 0 {
			return refundPlan{}, fmt.Errorf("%w: line %s not in original cart", store.ErrInvalidInput, refundLine.LineID)
		}
		line := remaining[idx]
		if refundLine.Qty > line.Qty {
			return refundPlan{}, fmt.Errorf("%w: refund quantity %d exceeds sold quantity %d", store.ErrInvalidInput, refundLine.Qty, line.Qty)
		}

		restocks = append(restocks, store.StockChange{
			Ref:           lineRef(line),
			Delta:         refundLine.Qty,
			Reason:        reason,
			EntryType:     domain.LedgerReturned,
			TransactionID: refundID,
			UpdatedBy:     actor,
		})

		refunded := domain.CartLine{
			LineID:     line.LineID,
			ProductID:  line.ProductID,
			IsVariant:  line.IsVariant,
			Name:       line.Name,
			Qty:        refundLine.Qty,
			PriceCents: line.PriceCents,
			TotalCents: line.PriceCents * refundLine.Qty,
		}
		refundNet += refunded.TotalCents

		if refundLine.Qty == line.Qty {
			// Full line refund: its add-ons go back too.
			for _, addon := range line.Addons {
				restocks = append(restocks, store.StockChange{
					Ref:           domain.HolderRef{Kind: domain.HolderAddon, ProductID: line.ProductID, AddonID: addon.AddonID},
					Delta:         addon.Qty,
					Reason:        reason,
					EntryType:     domain.LedgerReturned,
					TransactionID: refundID,
					UpdatedBy:     actor,
				})
				refundNet += addon.PriceCents * addon.Qty
			}
			refunded.Addons = line.Addons
			remaining = append(remaining[:idx], remaining[idx+1:]...)
		} else {
			remaining[idx].Qty -= refundLine.Qty
			remaining[idx].TotalCents = remaining[idx].PriceCents * remaining[idx].Qty
		}
		refundedLines = append(refundedLines, refunded)
	}

	updated := *original
	updated.Cart = remaining
	if len(remaining) == 0 {
		updated.Status = domain.TxStatusReturned
		updated.NetCents = 0
		updated.VatCents = 0
		updated.TotalCents = 0
	} else {
		var newNet int64
		for _, line := range remaining {
			newNet += line.TotalCents
			for _, addon := range line.Addons {
				newNet += addon.PriceCents * addon.Qty
			}
		}
		newVat := proportionalVat(newNet, original.NetCents, original.VatCents)
		updated.NetCents = newNet
		updated.VatCents = newVat
		updated.TotalCents = newNet + newVat
	}

	refundVat := original.VatCents - updated.VatCents
	refund := domain.Transaction{
		TransactionID: refundID,
		StoreID:       original.StoreID,
		SessionID:     original.SessionID,
		CustomerID:    original.CustomerID,
		Cart:          refundedLines,
		NetCents:      refundNet,
		VatCents:      refundVat,
		TotalCents:    refundNet + refundVat,
		PaymentMethod: req.RefundMethod,
		Status:        domain.TxStatusReturned,
		RefTxID:       original.TransactionID,
		CreatedBy:     actor,
	}

	return refundPlan{updated: updated, refund: refund, restocks: restocks}, nil
}

// RefundTransaction restores stock for the requested lines and records a
// new Returned transaction pointing at the original. The original's cart is
// reconciled line by line: a fully refunded line is dropped together with
// its add-ons, a partially refunded line keeps its add-ons and shrinks. The
// reconciliation is recomputed from a fresh read whenever the store reports
// a concurrent update, so two overlapping refunds never restock the same
// units twice.
func (s *Service) RefundTransaction(ctx context.Context, req domain.RefundRequest) (*domain.Transaction, error) {
	actor := s.actorName(ctx)
	original, err := s.loadForMutation(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: no refund lines", store.ErrInvalidInput)
	}
	if req.RefundMethod == "" {
		req.RefundMethod = original.PaymentMethod
	}
	if !isSupportedPaymentMethod(req.RefundMethod) {
		return nil, fmt.Errorf("%w: refund method %q", store.ErrInvalidInput, req.RefundMethod)
	}

	refundID, err := s.ids.Next(ctx)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)

	var created *domain.Transaction
	var plan refundPlan
	for attempt := 0; ; attempt++ {
		if err := mutableStatus(original); err != nil {
			return nil, err
		}
		plan, err = buildRefundPlan(original, req, refundID, actor, reason)
		if err != nil {
			return nil, err
		}

		created, err = s.repo.ApplyRefund(ctx, plan.updated, plan.refund, plan.restocks)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrUpdateConflict) || attempt+1 >= conflictRetries {
			return nil, err
		}
		original, err = s.repo.GetTransaction(ctx, req.TransactionID)
		if err != nil {
			return nil, err
		}
	}

	if req.RefundMethod == domain.PayEWallet {
		if original.CustomerID == "" {
			s.log.Warn("e-wallet refund without customer, balance not credited",
				zap.String("transaction_id", created.TransactionID))
		} else if _, err := s.repo.CreditCustomerBalance(ctx, original.CustomerID, created.TotalCents, created.TransactionID); err != nil {
			s.log.Error("failed to credit customer balance for refund",
				zap.String("customer_id", original.CustomerID),
				zap.String("transaction_id", created.TransactionID),
				zap.Error(err))
		}
	}

	metrics.TransactionsTotal.WithLabelValues("refund").Inc()
	metrics.StockAdjustmentsTotal.WithLabelValues(domain.LedgerReturned).Add(float64(len(plan.restocks)))
	s.logAudit(ctx, original.StoreID, "transaction_refund", "transaction", original.TransactionID, fmt.Sprintf("refund=%s,amount=%d,lines=%d", refundID, created.TotalCents, len(plan.refund.Cart)))
	return created, nil
}

// StartSession opens a manual session for the given store scope.
func (s *Service) StartSession(ctx context.Context, storeID string) (*domain.TransactionSession, error) {
	return s.startSession(ctx, storeID, s.actorName(ctx), false)
}

// StartScheduledSession is the scheduler entry point; the actor comes from
// the store schedule, not a request context.
func (s *Service) StartScheduledSession(ctx context.Context, storeID string, actorID string) (*domain.TransactionSession, error) {
	return s.startSession(ctx, storeID, actorID, true)
}

func (s *Service) startSession(ctx context.Context, storeID string, startedBy string, scheduled bool) (*domain.TransactionSession, error) {
	storeID = s.storeOrDefault(storeID)
	session, err := s.repo.CreateSession(ctx, domain.TransactionSession{
		StoreID:   storeID,
		StartedBy: startedBy,
		StartedAt: time.Now().UTC(),
		Scheduled: scheduled,
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Invalidate(ctx, storeID); err != nil {
		s.log.Warn("failed to invalidate session cache", zap.String("store_id", storeID), zap.Error(err))
	}
	metrics.SessionsStartedTotal.WithLabelValues(sessionTrigger(scheduled)).Inc()
	s.logAudit(ctx, storeID, "session_start", "session", session.ID, fmt.Sprintf("scheduled=%t,by=%s", scheduled, startedBy))
	return session, nil
}

func (s *Service) EndSession(ctx context.Context, storeID string) (*domain.TransactionSession, error) {
	return s.endSession(ctx, storeID, s.actorName(ctx), false)
}

func (s *Service) EndScheduledSession(ctx context.Context, storeID string, actorID string) (*domain.TransactionSession, error) {
	return s.endSession(ctx, storeID, actorID, true)
}

func (s *Service) endSession(ctx context.Context, storeID string, endedBy string, scheduled bool) (*domain.TransactionSession, error) {
	storeID = s.storeOrDefault(storeID)
	active, err := s.repo.GetActiveSession(ctx, storeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	summary, _, err := s.computeSummary(ctx, storeID, active.StartedAt, now)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.EndActiveSession(ctx, storeID, endedBy, now, summary)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Invalidate(ctx, storeID); err != nil {
		s.log.Warn("failed to invalidate session cache", zap.String("store_id", storeID), zap.Error(err))
	}
	metrics.SessionsEndedTotal.WithLabelValues(sessionTrigger(scheduled)).Inc()
	s.logAudit(ctx, storeID, "session_end", "session", session.ID, fmt.Sprintf("sales=%d,profit=%d,transactions=%d", summary.TotalSalesCents, summary.TotalProfitCents, summary.TransactionCount))
	return session, nil
}

// GetSessionStatus answers through the short-lived cache when it can. A
// store with no active session is a valid, cacheable answer.
func (s *Service) GetSessionStatus(ctx context.Context, storeID string) (*cache.SessionStatus, error) {
	storeID = s.storeOrDefault(storeID)
	if cached, ok, err := s.sessions.Get(ctx, storeID); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.log.Warn("session cache read failed", zap.String("store_id", storeID), zap.Error(err))
	}

	status := &cache.SessionStatus{}
	session, err := s.repo.GetActiveSession(ctx, storeID)
	switch {
	case err == nil:
		status.Active = true
		status.Session = session
	case errors.Is(err, store.ErrNoActiveSession):
	default:
		return nil, err
	}

	if err := s.sessions.Set(ctx, storeID, status, sessionStatusTTL); err != nil {
		s.log.Warn("session cache write failed", zap.String("store_id", storeID), zap.Error(err))
	}
	return status, nil
}

func (s *Service) GetSalesReport(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesReport, error) {
	storeID = s.storeOrDefault(storeID)
	if !to.After(from) {
		return domain.SalesReport{}, fmt.Errorf("%w: report window is empty", store.ErrInvalidInput)
	}
	summary, byMethod, err := s.computeSummary(ctx, storeID, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return domain.SalesReport{
		StoreID:          storeID,
		From:             from,
		To:               to,
		TotalSalesCents:  summary.TotalSalesCents,
		TotalProfitCents: summary.TotalProfitCents,
		TotalProducts:    summary.TotalProducts,
		TransactionCount: summary.TransactionCount,
		ByPaymentMethod:  byMethod,
	}, nil
}

// computeSummary aggregates completed transactions in [from, to]. Profit is
// figured against the catalog as it stands now: a variant with zero cost
// falls back to its parent product's cost, an add-on carries no cost, and a
// line whose product has since vanished contributes zero cost.
func (s *Service) computeSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, map[string]int64, error) {
	transactions, err := s.repo.ListCompletedTransactions(ctx, storeID, from, to)
	if err != nil {
		return domain.SalesSummary{}, nil, err
	}

	var summary domain.SalesSummary
	byMethod := make(map[string]int64)
	productMemo := make(map[string]*domain.Product)

	for _, tx := range transactions {
		summary.TransactionCount++
		summary.TotalSalesCents += tx.TotalCents
		byMethod[tx.PaymentMethod] += tx.TotalCents

		for _, line := range tx.Cart {
			product, ok := productMemo[line.ProductID]
			if !ok {
				product, err = s.repo.GetProduct(ctx, storeID, line.ProductID)
				if err != nil {
					if !errors.Is(err, store.ErrItemNotFound) {
						return domain.SalesSummary{}, nil, err
					}
					s.log.Warn("product missing during summary, cost treated as zero",
						zap.String("product_id", line.ProductID),
						zap.String("transaction_id", tx.TransactionID))
					product = nil
				}
				productMemo[line.ProductID] = product
			}

			cost := resolveUnitCost(product, line)
			summary.TotalProfitCents += (line.PriceCents - cost) * line.Qty
			summary.TotalProducts += line.Qty
			for _, addon := range line.Addons {
				summary.TotalProfitCents += addon.PriceCents * addon.Qty
				summary.TotalProducts += addon.Qty
			}
		}
	}
	return summary, byMethod, nil
}

func (s *Service) Authenticate(ctx context.Context, username string, password string) (*domain.UserAccount, error) {
	username = strings.TrimSpace(username)
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return nil, fmt.Errorf("invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return user, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, s.storeOrDefault(storeID), limit)
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         uuid.NewString(),
		StoreID:    storeID,
		Actor:      actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

func (s *Service) storeOrDefault(storeID string) string {
	if strings.TrimSpace(storeID) == "" {
		return s.defaultStoreID
	}
	return storeID
}

func (s *Service) actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return "system"
}

func sessionTrigger(scheduled bool) string {
	if scheduled {
		return "scheduled"
	}
	return "manual"
}

func lineRef(line domain.CartLine) domain.HolderRef {
	if line.IsVariant {
		return domain.HolderRef{Kind: domain.HolderVariant, ProductID: line.ProductID, VariantID: line.LineID}
	}
	return domain.HolderRef{Kind: domain.HolderProduct, ProductID: line.ProductID}
}

func findVariant(product *domain.Product, variantID string) *domain.Variant {
	for i := range product.Variants {
		if product.Variants[i].ID == variantID {
			return &product.Variants[i]
		}
	}
	return nil
}

func findAddon(product *domain.Product, addonID string) *domain.Addon {
	for i := range product.Addons {
		if product.Addons[i].ID == addonID {
			return &product.Addons[i]
		}
	}
	return nil
}

func findCartLine(cart []domain.CartLine, lineID string, isVariant bool) int {
	for i, line := range cart {
		if line.LineID == lineID && line.IsVariant == isVariant {
			return i
		}
	}
	return -1
}

// resolveUnitCost keeps the legacy cost semantics: zero variant cost means
// "use the parent product's cost", which also swallows genuinely free
// variants. Reporting depends on this reading, so it stays.
func resolveUnitCost(product *domain.Product, line domain.CartLine) int64 {
	if product == nil {
		return 0
	}
	if !line.IsVariant {
		return product.CostCents
	}
	for _, variant := range product.Variants {
		if variant.ID == line.LineID {
			if variant.CostCents != 0 {
				return variant.CostCents
			}
			return product.CostCents
		}
	}
	return product.CostCents
}

func proportionalVat(newNet int64, origNet int64, origVat int64) int64 {
	if origNet <= 0 || origVat <= 0 {
		return 0
	}
	return int64(math.Round(float64(origVat) * float64(newNet) / float64(origNet)))
}

func cloneCart(cart []domain.CartLine) []domain.CartLine {
	clone := make([]domain.CartLine, len(cart))
	copy(clone, cart)
	for i := range clone {
		addons := make([]domain.AddonLine, len(cart[i].Addons))
		copy(addons, cart[i].Addons)
		clone[i].Addons = addons
	}
	return clone
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PayCash, domain.PayEWallet, domain.PayQRIS, domain.PayDebit:
		return true
	}
	return false
}
