package store

import (
	"context"
	"errors"
	"time"

	"tokopos/internal/domain"
)

var (
	ErrItemNotFound         = errors.New("item not found")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrSessionInactive      = errors.New("no active session")
	ErrSessionAlreadyActive = errors.New("session already active")
	ErrNoActiveSession      = errors.New("no active session found")
	ErrAlreadyVoided        = errors.New("transaction already voided")
	ErrAlreadyReturned      = errors.New("transaction already returned")
	ErrInvalidInput         = errors.New("invalid input")
	ErrIDSpaceExhausted     = errors.New("transaction id space exhausted")
	ErrUpdateConflict       = errors.New("transaction changed concurrently")
)

// StockChange is one requested mutation of a holder's quantity counter
// together with the ledger metadata recorded alongside it. Delta is signed;
// a change that would take the counter below zero must be rejected whole.
type StockChange struct {
	Ref           domain.HolderRef
	Delta         int64
	Reason        string
	EntryType     string
	TransactionID string
	UpdatedBy     string
}

// Repository is the persistence boundary. Every multi-change method is
// all-or-nothing: either all stock counters move and all ledger entries
// land, or nothing does.
type Repository interface {
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, storeID string, productID string) (*domain.Product, error)

	// AdjustStock applies a single conditional stock change and appends its
	// ledger entry atomically. Returns ErrInsufficientStock when the change
	// would drive the counter negative.
	AdjustStock(ctx context.Context, storeID string, change StockChange) (*domain.StockLedgerEntry, error)
	ListStockLedger(ctx context.Context, storeID string, sku string, limit int) ([]domain.StockLedgerEntry, error)

	// CreateSale persists a completed transaction and applies its stock
	// decrements in one atomic unit.
	CreateSale(ctx context.Context, tx domain.Transaction, decrements []StockChange) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	TransactionIDExists(ctx context.Context, transactionID string) (bool, error)
	ListCompletedTransactions(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.Transaction, error)

	// VoidSale flips the original transaction to Voided, persists the mirror
	// record and restores stock, atomically. Fails with ErrAlreadyVoided or
	// ErrAlreadyReturned when the original is no longer Completed, and with
	// ErrUpdateConflict when the stored record's UpdatedAt no longer matches
	// the snapshot the restocks were computed from.
	VoidSale(ctx context.Context, original domain.Transaction, mirror domain.Transaction, restocks []StockChange) (*domain.Transaction, error)

	// ApplyRefund persists the refund record, rewrites the original's cart
	// and status and restores stock, atomically. The original parameter is
	// the caller's reconciled snapshot; its UpdatedAt must still match the
	// stored record when the write lands, otherwise ErrUpdateConflict is
	// returned and the caller must re-read and reconcile again.
	ApplyRefund(ctx context.Context, original domain.Transaction, refund domain.Transaction, restocks []StockChange) (*domain.Transaction, error)

	// CreateSession activates a new session for its store scope. Fails with
	// ErrSessionAlreadyActive when the scope already has an active session.
	CreateSession(ctx context.Context, session domain.TransactionSession) (*domain.TransactionSession, error)
	GetActiveSession(ctx context.Context, storeID string) (*domain.TransactionSession, error)
	EndActiveSession(ctx context.Context, storeID string, endedBy string, at time.Time, summary domain.SalesSummary) (*domain.TransactionSession, error)

	ListStoreSchedules(ctx context.Context) ([]domain.StoreSchedule, error)
	RecordBackupRun(ctx context.Context, storeID string, at time.Time) error

	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	CreditCustomerBalance(ctx context.Context, customerID string, amountCents int64, transactionID string) (*domain.CustomerLedgerEntry, error)

	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, limit int) ([]domain.AuditLog, error)
}
