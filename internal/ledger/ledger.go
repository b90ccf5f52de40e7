// Package ledger is the transaction engine: sales, purchases and the debt
// book. Every mutation runs inside one store unit of work, so a failed
// invariant check aborts with no partial state, and every committed mutation
// appends an audit entry and invalidates the report cache.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"warungpos/internal/cache"
	"warungpos/internal/domain"
	"warungpos/internal/store"
	"warungpos/internal/xid"
)

const (
	cacheKeyDashboard   = "reports:dashboard"
	cacheKeyStockAlerts = "reports:stock_alerts"
)

type Service struct {
	repo  store.Repository
	cache cache.ReportCache
	log   *zap.Logger
	ttl   time.Duration
}

func New(repo store.Repository, reportCache cache.ReportCache, log *zap.Logger, cacheTTL time.Duration) *Service {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, cache: reportCache, log: log, ttl: cacheTTL}
}

// RecordSale commits a sale atomically: all line deductions and, for credit,
// the opening debt, or nothing. Unit prices come from the catalog at commit
// time, never from the caller.
func (s *Service) RecordSale(ctx context.Context, cmd domain.SaleCommand) (*domain.Sale, *domain.Debt, error) {
	if len(cmd.Items) == 0 {
		return nil, nil, fmt.Errorf("%w: sale needs at least one item", domain.ErrInvalidInput)
	}
	for _, line := range cmd.Items {
		if line.ProductID == "" || line.Quantity < 1 {
			return nil, nil, fmt.Errorf("%w: each item needs a product and a positive quantity", domain.ErrInvalidInput)
		}
	}
	switch cmd.PaymentMethod {
	case domain.PaymentCash, domain.PaymentQRIS:
	case domain.PaymentCredit:
		if cmd.CustomerID == "" {
			return nil, nil, fmt.Errorf("%w: credit sale requires a customer", domain.ErrInvalidInput)
		}
	default:
		return nil, nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidInput, cmd.PaymentMethod)
	}

	if cmd.CustomerID != "" {
		if _, err := s.repo.GetCustomer(ctx, cmd.CustomerID); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now()
	sale := &domain.Sale{
		ID:            xid.New("sale"),
		InvoiceNumber: journalNumber("INV", now),
		CustomerID:    cmd.CustomerID,
		PaymentMethod: cmd.PaymentMethod,
		QRISData:      cmd.QRISData,
		Notes:         cmd.Notes,
		Status:        domain.SaleCompleted,
		CreatedAt:     now,
	}
	var debt *domain.Debt

	err := s.repo.InTx(ctx, func(uow store.UnitOfWork) error {
		// Lock in a stable order so concurrent sales over the same products
		// cannot deadlock, then deduct in the order the caller sent.
		products := map[string]*domain.Product{}
		for _, id := range sortedProductIDs(saleProductIDs(cmd.Items)) {
			p, err := uow.ProductForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if p.Status != domain.ProductActive {
				return fmt.Errorf("%w: %s", domain.ErrProductInactive, p.Name)
			}
			products[id] = p
		}

		total := decimal.Zero
		items := make([]domain.SaleItem, 0, len(cmd.Items))
		for _, line := range cmd.Items {
			p := products[line.ProductID]
			if _, err := uow.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
				if errors.Is(err, domain.ErrInsufficientStock) {
					return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, p.Name)
				}
				return err
			}
			subtotal := p.SellPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, domain.SaleItem{
				ProductID:    p.ID,
				ProductName:  p.Name,
				Quantity:     line.Quantity,
				PricePerUnit: p.SellPrice,
				Subtotal:     subtotal,
			})
			total = total.Add(subtotal)
		}
		sale.Items = items
		sale.TotalAmount = total

		switch cmd.PaymentMethod {
		case domain.PaymentCash:
			if cmd.PaymentAmount == nil {
				return fmt.Errorf("%w: cash sale requires a payment amount", domain.ErrInvalidInput)
			}
			if cmd.PaymentAmount.LessThan(total) {
				return domain.ErrPaymentTooLow
			}
			sale.PaymentAmount = cmd.PaymentAmount
			if change := cmd.PaymentAmount.Sub(total); change.IsPositive() {
				sale.ChangeAmount = &change
			}
		case domain.PaymentQRIS:
			paid := total
			sale.PaymentAmount = &paid
		case domain.PaymentCredit:
			debt = &domain.Debt{
				ID:            xid.New("debt"),
				TransactionID: sale.ID,
				CustomerID:    cmd.CustomerID,
				Notes:         cmd.Notes,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			debt.ApplyTotals(decimal.Zero, total)
		}

		if err := uow.CreateSale(ctx, sale); err != nil {
			return err
		}
		if debt != nil {
			return uow.CreateDebt(ctx, debt)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit(ctx, "sale.recorded", "sale", sale.ID, fmt.Sprintf("%s total %s", sale.InvoiceNumber, sale.TotalAmount))
	s.invalidateReports(ctx)
	return sale, debt, nil
}

// RecordPurchase books a restock: every line increases stock and the journal
// entry commits with it.
func (s *Service) RecordPurchase(ctx context.Context, cmd domain.PurchaseCommand) (*domain.Purchase, error) {
	if err := validatePurchaseLines(cmd.Items); err != nil {
		return nil, err
	}

	now := time.Now()
	purchase := &domain.Purchase{
		ID:             xid.New("pur"),
		PurchaseNumber: journalNumber("PUR", now),
		Supplier:       cmd.Supplier,
		Notes:          cmd.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.repo.InTx(ctx, func(uow store.UnitOfWork) error {
		items, total, err := applyPurchaseLines(ctx, uow, cmd.Items)
		if err != nil {
			return err
		}
		purchase.Items = items
		purchase.TotalAmount = total
		return uow.CreatePurchase(ctx, purchase)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "purchase.recorded", "purchase", purchase.ID, fmt.Sprintf("%s total %s", purchase.PurchaseNumber, purchase.TotalAmount))
	s.invalidateReports(ctx)
	return purchase, nil
}

// EditPurchase replaces a purchase's line set. The old lines' stock effect is
// reversed before the new lines apply; if reversing would drive any stock
// negative (the goods were already sold) the whole edit aborts.
func (s *Service) EditPurchase(ctx context.Context, purchaseID string, cmd domain.PurchaseCommand) (*domain.Purchase, error) {
	if err := validatePurchaseLines(cmd.Items); err != nil {
		return nil, err
	}

	var updated *domain.Purchase
	err := s.repo.InTx(ctx, func(uow store.UnitOfWork) error {
		purchase, err := uow.PurchaseForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}

		// Lock the union of old and new products up front, in stable order.
		ids := map[string]bool{}
		for _, it := range purchase.Items {
			ids[it.ProductID] = true
		}
		for _, line := range cmd.Items {
			ids[line.ProductID] = true
		}
		for _, id := range sortedProductIDs(ids) {
			if _, err := uow.ProductForUpdate(ctx, id); err != nil {
				return err
			}
		}

		for _, it := range purchase.Items {
			if _, err := uow.AdjustStock(ctx, it.ProductID, -it.Quantity); err != nil {
				return err
			}
		}

		items, total, err := applyPurchaseLines(ctx, uow, cmd.Items)
		if err != nil {
			return err
		}
		purchase.Supplier = cmd.Supplier
		purchase.Notes = cmd.Notes
		purchase.Items = items
		purchase.TotalAmount = total
		purchase.UpdatedAt = time.Now()
		if err := uow.UpdatePurchase(ctx, purchase); err != nil {
			return err
		}
		updated = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "purchase.edited", "purchase", updated.ID, fmt.Sprintf("%s total %s", updated.PurchaseNumber, updated.TotalAmount))
	s.invalidateReports(ctx)
	return updated, nil
}

// ApplyDebtPayment records an installment against a debt and recomputes the
// debt's totals from the full payment set.
func (s *Service) ApplyDebtPayment(ctx context.Context, cmd domain.DebtPaymentCommand) (*domain.Debt, *domain.DebtPayment, error) {
	if cmd.DebtID == "" || !cmd.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: payment needs a debt and a positive amount", domain.ErrInvalidInput)
	}
	method := cmd.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}

	payment := &domain.DebtPayment{
		ID:            xid.New("pay"),
		DebtID:        cmd.DebtID,
		Amount:        cmd.Amount,
		PaymentMethod: method,
		Notes:         cmd.Notes,
		CreatedAt:     time.Now(),
	}
	var debt *domain.Debt

	err := s.repo.InTx(ctx, func(uow store.UnitOfWork) error {
		d, err := uow.DebtForUpdate(ctx, cmd.DebtID)
		if err != nil {
			return err
		}
		if d.Status == domain.DebtPaid || !d.RemainingDebt.IsPositive() {
			return domain.ErrDebtAlreadyPaid
		}
		if cmd.Amount.GreaterThan(d.RemainingDebt) {
			return domain.ErrAmountExceedsRemaining
		}
		if err := uow.CreateDebtPayment(ctx, payment); err != nil {
			return err
		}
		if err := s.recomputeDebt(ctx, uow, d); err != nil {
			return err
		}
		debt = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit(ctx, "debt.payment_applied", "debt", debt.ID, fmt.Sprintf("payment %s amount %s", payment.ID, payment.Amount))
	s.invalidateReports(ctx)
	return debt, payment, nil
}

// ReconcilePayment corrects a recorded payment in place. The debt's totals
// are recomputed from the corrected payment set, so a mistyped entry cannot
// leave drift behind.
func (s *Service) ReconcilePayment(ctx context.Context, paymentID string, cmd domain.ReconcilePaymentCommand) (*domain.Debt, *domain.DebtPayment, error) {
	if !cmd.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: corrected amount must be positive", domain.ErrInvalidInput)
	}

	var (
		debt    *domain.Debt
		payment *domain.DebtPayment
	)
	err := s.repo.InTx(ctx, func(uow store.UnitOfWork) error {
		p, err := uow.DebtPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		d, err := uow.DebtForUpdate(ctx, p.DebtID)
		if err != nil {
			return err
		}

		p.Amount = cmd.Amount
		if cmd.PaymentMethod != "" {
			p.PaymentMethod = cmd.PaymentMethod
		}
		if cmd.Notes != nil {
			p.Notes = *cmd.Notes
		}
		if err := uow.UpdateDebtPayment(ctx, p); err != nil {
			return err
		}

		paid, err := uow.SumDebtPayments(ctx, d.ID)
		if err != nil {
			return err
		}
		if paid.GreaterThan(d.TotalDebt) {
			return domain.ErrAmountExceedsTotal
		}
		d.ApplyTotals(paid, d.TotalDebt)
		if err := uow.SaveDebt(ctx, d); err != nil {
			return err
		}
		debt, payment = d, p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit(ctx, "debt.payment_reconciled", "debt", debt.ID, fmt.Sprintf("payment %s amount %s", payment.ID, payment.Amount))
	s.invalidateReports(ctx)
	return debt, payment, nil
}

// DeletePayment removes a recorded payment and restores the debt's balance
// from the remaining payment set.
func (s *Service) DeletePayment(ctx context.Context, paymentID string) (*domain.Debt, error) {
	var debt *domain.Debt
	err := s.repo.InTx(ctx, func(uow store.UnitOfWork) error {
		p, err := uow.DebtPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		d, err := uow.DebtForUpdate(ctx, p.DebtID)
		if err != nil {
			return err
		}
		if err := uow.DeleteDebtPayment(ctx, paymentID); err != nil {
			return err
		}
		if err := s.recomputeDebt(ctx, uow, d); err != nil {
			return err
		}
		debt = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "debt.payment_deleted", "debt", debt.ID, fmt.Sprintf("payment %s", paymentID))
	s.invalidateReports(ctx)
	return debt, nil
}

// AdjustDebt sets a new total for the debt, e.g. after a pricing correction.
// The new total may not undercut what was already paid.
func (s *Service) AdjustDebt(ctx context.Context, debtID string, newTotal decimal.Decimal, notes string) (*domain.Debt, error) {
	if newTotal.IsNegative() {
		return nil, fmt.Errorf("%w: adjusted total cannot be negative", domain.ErrInvalidInput)
	}

	var debt *domain.Debt
	err := s.repo.InTx(ctx, func(uow store.UnitOfWork) error {
		d, err := uow.DebtForUpdate(ctx, debtID)
		if err != nil {
			return err
		}
		if d.PaidAmount.GreaterThan(newTotal) {
			return fmt.Errorf("%w: adjusted total undercuts paid amount %s", domain.ErrInvalidInput, d.PaidAmount)
		}
		d.ApplyTotals(d.PaidAmount, newTotal)
		if notes != "" {
			d.Notes = notes
		}
		if err := uow.SaveDebt(ctx, d); err != nil {
			return err
		}
		debt = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "debt.adjusted", "debt", debt.ID, fmt.Sprintf("total %s", debt.TotalDebt))
	s.invalidateReports(ctx)
	return debt, nil
}

// recomputeDebt re-derives the debt's totals from the payment rows rather
// than applying a delta, so drift cannot accumulate across corrections.
func (s *Service) recomputeDebt(ctx context.Context, uow store.UnitOfWork, d *domain.Debt) error {
	paid, err := uow.SumDebtPayments(ctx, d.ID)
	if err != nil {
		return err
	}
	d.ApplyTotals(paid, d.TotalDebt)
	return uow.SaveDebt(ctx, d)
}

func (s *Service) audit(ctx context.Context, action, entityType, entityID, detail string) {
	entry := domain.AuditLog{
		ID:         xid.New("audit"),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.AppendAuditLog(ctx, entry); err != nil {
		s.log.Warn("audit append failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) invalidateReports(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cacheKeyDashboard, cacheKeyStockAlerts); err != nil {
		s.log.Warn("report cache invalidation failed", zap.Error(err))
	}
}

func validatePurchaseLines(lines []domain.PurchaseLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: purchase needs at least one item", domain.ErrInvalidInput)
	}
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity < 1 || !line.PricePerUnit.IsPositive() {
			return fmt.Errorf("%w: each item needs a product, positive quantity and positive price", domain.ErrInvalidInput)
		}
	}
	return nil
}

func applyPurchaseLines(ctx context.Context, uow store.UnitOfWork, lines []domain.PurchaseLine) ([]domain.PurchaseItem, decimal.Decimal, error) {
	products := map[string]*domain.Product{}
	ids := map[string]bool{}
	for _, line := range lines {
		ids[line.ProductID] = true
	}
	for _, id := range sortedProductIDs(ids) {
		p, err := uow.ProductForUpdate(ctx, id)
		if err != nil {
			return nil, decimal.Zero, err
		}
		products[id] = p
	}

	total := decimal.Zero
	items := make([]domain.PurchaseItem, 0, len(lines))
	for _, line := range lines {
		if _, err := uow.AdjustStock(ctx, line.ProductID, line.Quantity); err != nil {
			return nil, decimal.Zero, err
		}
		subtotal := line.PricePerUnit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, domain.PurchaseItem{
			ProductID:    line.ProductID,
			ProductName:  products[line.ProductID].Name,
			Quantity:     line.Quantity,
			PricePerUnit: line.PricePerUnit,
			Subtotal:     subtotal,
		})
		total = total.Add(subtotal)
	}
	return items, total, nil
}

func saleProductIDs(lines []domain.SaleLine) map[string]bool {
	ids := map[string]bool{}
	for _, line := range lines {
		ids[line.ProductID] = true
	}
	return ids
}

func sortedProductIDs(ids map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// journalNumber builds a human-scannable document number like
// INV-20250117-9F3A21C4.
func journalNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}
