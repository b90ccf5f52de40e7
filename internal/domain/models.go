package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "ACTIVE"
	ProductInactive ProductStatus = "INACTIVE"
)

// Payment methods accepted on a sale.
const (
	PaymentCash   = "cash"
	PaymentQRIS   = "qris"
	PaymentCredit = "credit"
)

// Product is the single source of truth for available stock. Stock is mutated
// exclusively through the ledger's unit of work; catalog fields are managed by
// the catalog operations.
type Product struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Stock     int             `json:"stock"`
	MinStock  int             `json:"min_stock"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Status    ProductStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleItem is a journal line: quantity and the unit price captured at sale
// time. Subtotal = PricePerUnit * Quantity.
type SaleItem struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Sale is immutable once committed. A credit sale owns exactly one Debt.
type Sale struct {
	ID            string           `json:"id"`
	InvoiceNumber string           `json:"invoice_number"`
	CustomerID    string           `json:"customer_id,omitempty"`
	Items         []SaleItem       `json:"items"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	PaymentMethod string           `json:"payment_method"`
	PaymentAmount *decimal.Decimal `json:"payment_amount,omitempty"`
	ChangeAmount  *decimal.Decimal `json:"change_amount,omitempty"`
	QRISData      string           `json:"qris_data,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	Status        string           `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

const SaleCompleted = "completed"

type PurchaseItem struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Purchase (kulakan) restocks products. Unlike sales it is editable: an edit
// reverses the old items' stock effect before applying the new set.
type Purchase struct {
	ID             string          `json:"id"`
	PurchaseNumber string          `json:"purchase_number"`
	Supplier       string          `json:"supplier,omitempty"`
	Items          []PurchaseItem  `json:"items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type DebtStatus string

const (
	DebtUnpaid  DebtStatus = "unpaid"
	DebtPartial DebtStatus = "partial"
	DebtPaid    DebtStatus = "paid"
)

// Debt is a customer's outstanding balance from one credit sale.
// Invariant: RemainingDebt = TotalDebt - PaidAmount, never negative on a
// committed record, and Status is always DeriveDebtStatus(PaidAmount, TotalDebt).
type Debt struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	CustomerID    string          `json:"customer_id"`
	TotalDebt     decimal.Decimal `json:"total_debt"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	RemainingDebt decimal.Decimal `json:"remaining_debt"`
	Status        DebtStatus      `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type DebtPayment struct {
	ID            string          `json:"id"`
	DebtID        string          `json:"debt_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DeriveDebtStatus is the pure status function: nothing paid is unpaid,
// anything between is partial, paid >= total is paid.
func DeriveDebtStatus(paid, total decimal.Decimal) DebtStatus {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return DebtUnpaid
	case paid.LessThan(total):
		return DebtPartial
	default:
		return DebtPaid
	}
}

// ApplyTotals recomputes the derived debt fields from paid and total.
// RemainingDebt is clamped at zero on the committed record.
func (d *Debt) ApplyTotals(paid, total decimal.Decimal) {
	d.PaidAmount = paid
	d.TotalDebt = total
	d.RemainingDebt = total.Sub(paid)
	if d.RemainingDebt.IsNegative() {
		d.RemainingDebt = decimal.Zero
	}
	d.Status = DeriveDebtStatus(paid, total)
}

// Commands: the closed set of typed requests the ledger accepts. The HTTP
// boundary validates and converts into these before the engine runs.

type SaleLine struct {
	ProductID string
	Quantity  int
}

type SaleCommand struct {
	CustomerID    string
	PaymentMethod string
	PaymentAmount *decimal.Decimal
	QRISData      string
	Notes         string
	Items         []SaleLine
}

type PurchaseLine struct {
	ProductID    string
	Quantity     int
	PricePerUnit decimal.Decimal
}

type PurchaseCommand struct {
	Supplier string
	Notes    string
	Items    []PurchaseLine
}

type DebtPaymentCommand struct {
	DebtID        string
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
}

type ReconcilePaymentCommand struct {
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         *string
}

// Filters for journal scans (read surface).

type SaleFilter struct {
	From          *time.Time
	To            *time.Time
	CustomerID    string
	PaymentMethod string
}

type PurchaseFilter struct {
	From *time.Time
	To   *time.Time
}

type DebtFilter struct {
	Status     DebtStatus
	CustomerID string
}

// Stock alert severities (read surface).
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

type StockAlert struct {
	ProductID    string `json:"product_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	CurrentStock int    `json:"current_stock"`
	MinStock     int    `json:"min_stock"`
	Deficit      int    `json:"deficit"`
	Severity     string `json:"severity"`
}

// AlertSeverity grades a low-stock product: out of stock is critical, below
// half the threshold is high, otherwise medium.
func AlertSeverity(stock, minStock int) string {
	switch {
	case stock == 0:
		return SeverityCritical
	case stock*2 < minStock:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Report payloads consumed by the external dashboard.

type DashboardSummary struct {
	TodayRevenue          decimal.Decimal `json:"today_revenue"`
	TodayProfit           decimal.Decimal `json:"today_profit"`
	TodayTransactionCount int             `json:"today_transactions_count"`
	LowStockCount         int             `json:"low_stock_count"`
	TotalUnpaidDebt       decimal.Decimal `json:"total_unpaid_debt"`
}

type PaymentMethodTotals struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type SalesReport struct {
	Period            string                         `json:"period"`
	StartDate         time.Time                      `json:"start_date"`
	EndDate           time.Time                      `json:"end_date"`
	TotalTransactions int                            `json:"total_transactions"`
	TotalRevenue      decimal.Decimal                `json:"total_revenue"`
	TotalProfit       decimal.Decimal                `json:"total_profit"`
	ByPaymentMethod   map[string]PaymentMethodTotals `json:"by_payment_method"`
}

// AuditLog records every committed ledger mutation for after-the-fact review.
type AuditLog struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
