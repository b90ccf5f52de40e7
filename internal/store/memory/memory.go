// Package memory implements store.Repository on plain maps. It backs tests
// and the zero-config dev mode. A single mutex spans each InTx call, so units
// of work serialize fully; mutations are staged in per-tx buffers and
// published only when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"warungpos/internal/domain"
	"warungpos/internal/store"
	"warungpos/internal/xid"
)

type Store struct {
	mu sync.Mutex

	products  map[string]domain.Product
	customers map[string]domain.Customer
	sales     map[string]domain.Sale
	purchases map[string]domain.Purchase
	debts     map[string]domain.Debt
	payments  map[string]domain.DebtPayment
	audit     []domain.AuditLog
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		products:  map[string]domain.Product{},
		customers: map[string]domain.Customer{},
		sales:     map[string]domain.Sale{},
		purchases: map[string]domain.Purchase{},
		debts:     map[string]domain.Debt{},
		payments:  map[string]domain.DebtPayment{},
	}
}

// NewSeeded returns a store pre-filled with a small warung catalog so the
// server is usable immediately without a database.
func NewSeeded() *Store {
	s := New()
	now := time.Now()
	seed := []domain.Product{
		{Code: "BRS-001", Name: "Beras Premium 5kg", Category: "Sembako", Stock: 20, MinStock: 5, BuyPrice: decimal.NewFromInt(62000), SellPrice: decimal.NewFromInt(68000)},
		{Code: "MNY-001", Name: "Minyak Goreng 1L", Category: "Sembako", Stock: 30, MinStock: 10, BuyPrice: decimal.NewFromInt(15500), SellPrice: decimal.NewFromInt(17500)},
		{Code: "GLA-001", Name: "Gula Pasir 1kg", Category: "Sembako", Stock: 25, MinStock: 8, BuyPrice: decimal.NewFromInt(13000), SellPrice: decimal.NewFromInt(15000)},
		{Code: "IND-001", Name: "Indomie Goreng", Category: "Makanan", Stock: 120, MinStock: 40, BuyPrice: decimal.NewFromInt(2800), SellPrice: decimal.NewFromInt(3500)},
		{Code: "KPI-001", Name: "Kopi Kapal Api Sachet", Category: "Minuman", Stock: 80, MinStock: 24, BuyPrice: decimal.NewFromInt(1300), SellPrice: decimal.NewFromInt(2000)},
		{Code: "AQU-001", Name: "Aqua 600ml", Category: "Minuman", Stock: 48, MinStock: 12, BuyPrice: decimal.NewFromInt(2500), SellPrice: decimal.NewFromInt(4000)},
		{Code: "SAB-001", Name: "Sabun Lifebuoy", Category: "Kebersihan", Stock: 3, MinStock: 10, BuyPrice: decimal.NewFromInt(3800), SellPrice: decimal.NewFromInt(5000)},
		{Code: "TEL-001", Name: "Telur Ayam 1kg", Category: "Sembako", Stock: 0, MinStock: 5, BuyPrice: decimal.NewFromInt(26000), SellPrice: decimal.NewFromInt(30000)},
	}
	for _, p := range seed {
		p.ID = xid.New("prod")
		p.Status = domain.ProductActive
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

// ---- transaction ----

// memTx stages writes against copies of the rows it touched. Nothing leaks
// into the shared maps until commit.
type memTx struct {
	s *Store

	products        map[string]domain.Product
	sales           map[string]domain.Sale
	purchases       map[string]domain.Purchase
	debts           map[string]domain.Debt
	payments        map[string]domain.DebtPayment
	deletedPayments map[string]bool
}

var _ store.UnitOfWork = (*memTx)(nil)

func (s *Store) InTx(ctx context.Context, fn func(uow store.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:               s,
		products:        map[string]domain.Product{},
		sales:           map[string]domain.Sale{},
		purchases:       map[string]domain.Purchase{},
		debts:           map[string]domain.Debt{},
		payments:        map[string]domain.DebtPayment{},
		deletedPayments: map[string]bool{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (tx *memTx) commit() {
	for id, p := range tx.products {
		tx.s.products[id] = p
	}
	for id, sale := range tx.sales {
		tx.s.sales[id] = sale
	}
	for id, pur := range tx.purchases {
		tx.s.purchases[id] = pur
	}
	for id, d := range tx.debts {
		tx.s.debts[id] = d
	}
	for id, pay := range tx.payments {
		tx.s.payments[id] = pay
	}
	for id := range tx.deletedPayments {
		delete(tx.s.payments, id)
	}
}

func (tx *memTx) product(id string) (domain.Product, bool) {
	if p, ok := tx.products[id]; ok {
		return p, true
	}
	p, ok := tx.s.products[id]
	return p, ok
}

func (tx *memTx) ProductForUpdate(_ context.Context, productID string) (*domain.Product, error) {
	p, ok := tx.product(productID)
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (tx *memTx) AdjustStock(_ context.Context, productID string, delta int) (int, error) {
	p, ok := tx.product(productID)
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	next := p.Stock + delta
	if next < 0 {
		return 0, domain.ErrInsufficientStock
	}
	p.Stock = next
	p.UpdatedAt = time.Now()
	tx.products[productID] = p
	return next, nil
}

func (tx *memTx) CreateSale(_ context.Context, sale *domain.Sale) error {
	tx.sales[sale.ID] = *sale
	return nil
}

func (tx *memTx) CreateDebt(_ context.Context, debt *domain.Debt) error {
	tx.debts[debt.ID] = *debt
	return nil
}

func (tx *memTx) CreatePurchase(_ context.Context, purchase *domain.Purchase) error {
	tx.purchases[purchase.ID] = *purchase
	return nil
}

func (tx *memTx) PurchaseForUpdate(_ context.Context, purchaseID string) (*domain.Purchase, error) {
	if p, ok := tx.purchases[purchaseID]; ok {
		cp := p
		cp.Items = append([]domain.PurchaseItem(nil), p.Items...)
		return &cp, nil
	}
	p, ok := tx.s.purchases[purchaseID]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	cp := p
	cp.Items = append([]domain.PurchaseItem(nil), p.Items...)
	return &cp, nil
}

func (tx *memTx) UpdatePurchase(_ context.Context, purchase *domain.Purchase) error {
	if _, ok := tx.purchases[purchase.ID]; !ok {
		if _, ok := tx.s.purchases[purchase.ID]; !ok {
			return domain.ErrPurchaseNotFound
		}
	}
	tx.purchases[purchase.ID] = *purchase
	return nil
}

func (tx *memTx) DebtForUpdate(_ context.Context, debtID string) (*domain.Debt, error) {
	if d, ok := tx.debts[debtID]; ok {
		return &d, nil
	}
	d, ok := tx.s.debts[debtID]
	if !ok {
		return nil, domain.ErrDebtNotFound
	}
	return &d, nil
}

func (tx *memTx) DebtPaymentForUpdate(_ context.Context, paymentID string) (*domain.DebtPayment, error) {
	if tx.deletedPayments[paymentID] {
		return nil, domain.ErrPaymentNotFound
	}
	if p, ok := tx.payments[paymentID]; ok {
		return &p, nil
	}
	p, ok := tx.s.payments[paymentID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (tx *memTx) CreateDebtPayment(_ context.Context, payment *domain.DebtPayment) error {
	tx.payments[payment.ID] = *payment
	return nil
}

func (tx *memTx) UpdateDebtPayment(_ context.Context, payment *domain.DebtPayment) error {
	if tx.deletedPayments[payment.ID] {
		return domain.ErrPaymentNotFound
	}
	if _, ok := tx.payments[payment.ID]; !ok {
		if _, ok := tx.s.payments[payment.ID]; !ok {
			return domain.ErrPaymentNotFound
		}
	}
	tx.payments[payment.ID] = *payment
	return nil
}

func (tx *memTx) DeleteDebtPayment(_ context.Context, paymentID string) error {
	_, staged := tx.payments[paymentID]
	_, committed := tx.s.payments[paymentID]
	if tx.deletedPayments[paymentID] || (!staged && !committed) {
		return domain.ErrPaymentNotFound
	}
	delete(tx.payments, paymentID)
	tx.deletedPayments[paymentID] = true
	return nil
}

func (tx *memTx) SumDebtPayments(_ context.Context, debtID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	seen := map[string]bool{}
	for id, p := range tx.payments {
		seen[id] = true
		if p.DebtID == debtID {
			sum = sum.Add(p.Amount)
		}
	}
	for id, p := range tx.s.payments {
		if seen[id] || tx.deletedPayments[id] {
			continue
		}
		if p.DebtID == debtID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (tx *memTx) SaveDebt(_ context.Context, debt *domain.Debt) error {
	if _, ok := tx.debts[debt.ID]; !ok {
		if _, ok := tx.s.debts[debt.ID]; !ok {
			return domain.ErrDebtNotFound
		}
	}
	d := *debt
	d.UpdatedAt = time.Now()
	tx.debts[debt.ID] = d
	return nil
}

// ---- catalog ----

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if strings.EqualFold(p.Code, product.Code) {
			return nil, domain.ErrDuplicateCode
		}
	}
	now := time.Now()
	product.ID = xid.New("prod")
	if product.Status == "" {
		product.Status = domain.ProductActive
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[product.ID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	for id, p := range s.products {
		if id != product.ID && strings.EqualFold(p.Code, product.Code) {
			return nil, domain.ErrDuplicateCode
		}
	}
	// Stock is ledger-owned: catalog updates never touch it.
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now()
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	for _, sale := range s.sales {
		for _, it := range sale.Items {
			if it.ProductID == id {
				return domain.ErrProductInUse
			}
		}
	}
	for _, pur := range s.purchases {
		for _, it := range pur.Items {
			if it.ProductID == id {
				return domain.ErrProductInUse
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (s *Store) GetProductByCode(_ context.Context, code string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if strings.EqualFold(p.Code, code) {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) LowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Product
	for _, p := range s.products {
		if p.Status == domain.ProductActive && p.Stock <= p.MinStock {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, nil
}

// ---- customers ----

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer.ID = xid.New("cust")
	customer.CreatedAt = time.Now()
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return domain.ErrCustomerNotFound
	}
	for _, sale := range s.sales {
		if sale.CustomerID == id {
			return domain.ErrCustomerInUse
		}
	}
	for _, d := range s.debts {
		if d.CustomerID == id {
			return domain.ErrCustomerInUse
		}
	}
	delete(s.customers, id)
	return nil
}

// ---- journal reads ----

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := sale
	cp.Items = append([]domain.SaleItem(nil), sale.Items...)
	return &cp, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Sale
	for _, sale := range s.sales {
		if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.PaymentMethod != "" && sale.PaymentMethod != filter.PaymentMethod {
			continue
		}
		cp := sale
		cp.Items = append([]domain.SaleItem(nil), sale.Items...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	cp := p
	cp.Items = append([]domain.PurchaseItem(nil), p.Items...)
	return &cp, nil
}

func (s *Store) ListPurchases(_ context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Purchase
	for _, p := range s.purchases {
		if filter.From != nil && p.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !p.CreatedAt.Before(*filter.To) {
			continue
		}
		cp := p
		cp.Items = append([]domain.PurchaseItem(nil), p.Items...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- debt reads ----

func (s *Store) GetDebt(_ context.Context, id string) (*domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debts[id]
	if !ok {
		return nil, domain.ErrDebtNotFound
	}
	return &d, nil
}

func (s *Store) ListDebts(_ context.Context, filter domain.DebtFilter) ([]domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Debt
	for _, d := range s.debts {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.CustomerID != "" && d.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListDebtPayments(_ context.Context, debtID string) ([]domain.DebtPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DebtPayment
	for _, p := range s.payments {
		if p.DebtID == debtID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- audit ----

func (s *Store) AppendAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.audit)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.AuditLog, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.audit[n-1-i]
	}
	return out, nil
}
