// Package store defines the persistence boundary of the ledger engine. Two
// implementations exist: an in-memory store for dev/demo and tests, and a
// postgres store for production. Both guarantee that everything executed
// inside one InTx call commits atomically or not at all.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"warungpos/internal/domain"
)

// Repository is the full persistence surface. Reads outside InTx observe only
// committed state; all ledger mutations go through InTx.
type Repository interface {
	// InTx runs fn as one unit of work. If fn returns an error every mutation
	// staged through the UnitOfWork is discarded; otherwise all of them become
	// visible together.
	InTx(ctx context.Context, fn func(uow UnitOfWork) error) error

	// Catalog.
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	LowStockProducts(ctx context.Context) ([]domain.Product, error)

	// Customers.
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	// Journal reads.
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error)

	// Debt reads.
	GetDebt(ctx context.Context, id string) (*domain.Debt, error)
	ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.Debt, error)
	ListDebtPayments(ctx context.Context, debtID string) ([]domain.DebtPayment, error)

	// Audit trail.
	AppendAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// UnitOfWork is the mutation surface available inside a transaction. Row reads
// (ForUpdate) lock or stage the row so concurrent units of work against the
// same product or debt serialize.
type UnitOfWork interface {
	// ProductForUpdate loads and locks a product row.
	// Returns domain.ErrProductNotFound if absent.
	ProductForUpdate(ctx context.Context, productID string) (*domain.Product, error)

	// AdjustStock applies a signed stock delta as an atomic conditional
	// update. Returns the new stock level, domain.ErrInsufficientStock if the
	// delta would drive stock negative, or domain.ErrProductNotFound.
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)

	CreateSale(ctx context.Context, sale *domain.Sale) error
	CreateDebt(ctx context.Context, debt *domain.Debt) error

	CreatePurchase(ctx context.Context, purchase *domain.Purchase) error
	// PurchaseForUpdate loads and locks a purchase with its items.
	PurchaseForUpdate(ctx context.Context, purchaseID string) (*domain.Purchase, error)
	// UpdatePurchase rewrites the purchase header and replaces its item set.
	UpdatePurchase(ctx context.Context, purchase *domain.Purchase) error

	DebtForUpdate(ctx context.Context, debtID string) (*domain.Debt, error)
	DebtPaymentForUpdate(ctx context.Context, paymentID string) (*domain.DebtPayment, error)
	CreateDebtPayment(ctx context.Context, payment *domain.DebtPayment) error
	UpdateDebtPayment(ctx context.Context, payment *domain.DebtPayment) error
	DeleteDebtPayment(ctx context.Context, paymentID string) error
	// SumDebtPayments totals all current payment rows for the debt, including
	// rows staged earlier in this unit of work.
	SumDebtPayments(ctx context.Context, debtID string) (decimal.Decimal, error)
	// SaveDebt persists recomputed debt totals, status and notes.
	SaveDebt(ctx context.Context, debt *domain.Debt) error
}
