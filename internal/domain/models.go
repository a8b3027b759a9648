package domain

import "time"

// Holder kinds. A stock holder is anything that carries its own quantity
// counter: a standalone product, a product variant, or an add-on.
const (
	HolderProduct = "product"
	HolderVariant = "variant"
	HolderAddon   = "addon"
)

// Product status values mirrored into ledger snapshots.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusSoldOut  = "sold-out"
)

// Transaction statuses.
const (
	TxStatusCompleted = "Completed"
	TxStatusVoided    = "Voided"
	TxStatusReturned  = "Returned"
	TxStatusCanceled  = "Canceled"
)

// Ledger entry types. Capitalisation is uneven on purpose: these strings
// are persisted and downstream reporting already matches on them as-is.
const (
	LedgerManual    = "manual"
	LedgerPurchased = "Purchased"
	LedgerReturned  = "Returned"
	LedgerVoided    = "Voided"
	LedgerRestock   = "restock"
)

// Payment methods.
const (
	PayCash    = "Cash"
	PayEWallet = "E-wallet"
	PayQRIS    = "QRIS"
	PayDebit   = "Debit"
)

// HolderRef addresses one stock counter.
type HolderRef struct {
	Kind      string `json:"kind"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	AddonID   string `json:"addon_id,omitempty"`
}

// Variant is a sellable variation of a product with its own stock counter.
// CostCents may legitimately be zero, in which case cost resolution falls
// back to the parent product's cost.
type Variant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Quantity   int64  `json:"quantity"`
}

// Addon is an optional extra attached to a product. Add-ons carry a price
// and their own stock counter but no cost of goods.
type Addon struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int64  `json:"quantity"`
}

type Product struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	PriceCents    int64     `json:"price_cents"`
	CostCents     int64     `json:"cost_cents"`
	Quantity      int64     `json:"quantity"`
	QuantityAlert int64     `json:"quantity_alert"`
	Status        string    `json:"status"`
	Variants      []Variant `json:"variants,omitempty"`
	Addons        []Addon   `json:"addons,omitempty"`
	Deleted       bool      `json:"deleted"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockLedgerEntry is one immutable row of the stock audit trail. Entries
// are only ever appended; NewStock must always equal PrevStock + Change.
type StockLedgerEntry struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	SKU           string    `json:"sku"`
	NameSnapshot  string    `json:"product_name_snapshot"`
	PrevStock     int64     `json:"prev_stock"`
	Change        int64     `json:"change"`
	NewStock      int64     `json:"new_stock"`
	Reason        string    `json:"reason,omitempty"`
	EntryType     string    `json:"transaction_type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	UpdatedBy     string    `json:"updated_by"`
	CreatedAt     time.Time `json:"created_at"`
	Deleted       bool      `json:"deleted"`
}

// AddonLine is a sold add-on nested under a cart line.
type AddonLine struct {
	AddonID    string `json:"addon_id"`
	Name       string `json:"name"`
	Qty        int64  `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

// CartLine is one sold item inside a transaction. LineID plus IsVariant
// identify the line for refund reconciliation: for variant lines LineID is
// the variant id, otherwise the product id.
type CartLine struct {
	LineID     string      `json:"line_id"`
	ProductID  string      `json:"product_id"`
	IsVariant  bool        `json:"is_variant"`
	Name       string      `json:"name"`
	Qty        int64       `json:"qty"`
	PriceCents int64       `json:"price_cents"`
	TotalCents int64       `json:"total_cents"`
	Addons     []AddonLine `json:"addons,omitempty"`
}

type Transaction struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transaction_id"`
	StoreID       string     `json:"store_id"`
	SessionID     string     `json:"session_id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	Cart          []CartLine `json:"cart"`
	NetCents      int64      `json:"net_cents"`
	VatCents      int64      `json:"vat_cents"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	CashCents     int64      `json:"cash_cents,omitempty"`
	ChangeCents   int64      `json:"change_cents,omitempty"`
	Status        string     `json:"status"`
	RefTxID       string     `json:"ref_transaction_id,omitempty"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Deleted       bool       `json:"deleted"`
}

// SalesSummary is computed once when a session ends and stored on it.
type SalesSummary struct {
	TotalSalesCents  int64 `json:"total_sales_cents"`
	TotalProfitCents int64 `json:"total_profit_cents"`
	TotalProducts    int64 `json:"total_products_sold"`
	TransactionCount int64 `json:"transaction_count"`
}

// TransactionSession is one register session. At most one session may be
// active per store scope at a time; an empty StoreID is its own scope.
type TransactionSession struct {
	ID        string        `json:"id"`
	StoreID   string        `json:"store_id"`
	StartedBy string        `json:"started_by"`
	EndedBy   string        `json:"ended_by,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Active    bool          `json:"is_active"`
	Scheduled bool          `json:"is_scheduled"`
	Summary   *SalesSummary `json:"sales_summary,omitempty"`
}

// Backup frequencies.
const (
	BackupDaily   = "daily"
	BackupWeekly  = "weekly"
	BackupMonthly = "monthly"
)

// BackupSchedule configures automatic backups for a store. Time is a
// wall-clock "HH:MM" string; DayOfWeek uses time.Weekday numbering.
type BackupSchedule struct {
	Enabled    bool       `json:"enabled"`
	Frequency  string     `json:"frequency"`
	Time       string     `json:"time"`
	DayOfWeek  int        `json:"day_of_week"`
	DayOfMonth int        `json:"day_of_month"`
	Options    []string   `json:"options,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
}

// StoreSchedule is the per-store configuration the schedulers poll. The
// engine reads schedule windows; it never edits them.
type StoreSchedule struct {
	StoreID         string          `json:"store_id"`
	ScheduleEnabled bool            `json:"schedule_enabled"`
	ScheduleStart   string          `json:"schedule_start_time"`
	ScheduleEnd     string          `json:"schedule_end_time"`
	ScheduleActorID string          `json:"schedule_actor_id"`
	Backup          *BackupSchedule `json:"backup,omitempty"`
}

// CustomerLedgerEntry records a balance mutation on a customer account,
// e.g. an E-wallet refund credit.
type CustomerLedgerEntry struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	AmountCents   int64     `json:"amount_cents"`
	BeforeCents   int64     `json:"balance_before_cents"`
	AfterCents    int64     `json:"balance_after_cents"`
	EntryType     string    `json:"transaction_type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Customer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BalanceCents int64  `json:"balance_cents"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// Actor identifies who performs an operation, carried on the context.
type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type UserAccount struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	StoreID      string    `json:"store_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// CartLineInput is one requested line of a new transaction.
type CartLineInput struct {
	ProductID string           `json:"product_id"`
	VariantID string           `json:"variant_id,omitempty"`
	Qty       int64            `json:"qty"`
	Addons    []AddonLineInput `json:"addons,omitempty"`
}

type AddonLineInput struct {
	AddonID string `json:"addon_id"`
	Qty     int64  `json:"qty"`
}

type CreateTransactionRequest struct {
	StoreID       string          `json:"store_id"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Cart          []CartLineInput `json:"cart"`
	PaymentMethod string          `json:"payment_method"`
	CashCents     int64           `json:"cash_cents,omitempty"`
	VatRate       float64         `json:"vat_rate,omitempty"`
}

// StockAdjustRequest is a manual or restock correction to one stock counter.
type StockAdjustRequest struct {
	StoreID   string    `json:"store_id,omitempty"`
	Ref       HolderRef `json:"ref"`
	Delta     int64     `json:"delta"`
	Reason    string    `json:"reason,omitempty"`
	EntryType string    `json:"entry_type"`
}

// RefundLineInput identifies part of an original cart to restore. LineID
// plus IsVariant must match an original cart line.
type RefundLineInput struct {
	LineID    string `json:"line_id"`
	IsVariant bool   `json:"is_variant"`
	Qty       int64  `json:"qty"`
}

type RefundRequest struct {
	TransactionID string            `json:"transaction_id"`
	Lines         []RefundLineInput `json:"lines"`
	Reason        string            `json:"reason,omitempty"`
	RefundMethod  string            `json:"refund_method"`
}

type SalesReport struct {
	StoreID          string           `json:"store_id"`
	From             time.Time        `json:"from"`
	To               time.Time        `json:"to"`
	TotalSalesCents  int64            `json:"total_sales_cents"`
	TotalProfitCents int64            `json:"total_profit_cents"`
	TotalProducts    int64            `json:"total_products_sold"`
	TransactionCount int64            `json:"transaction_count"`
	ByPaymentMethod  map[string]int64 `json:"by_payment_method"`
}
