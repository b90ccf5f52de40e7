package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"warungpos/internal/domain"
)

// Read surface. Journal scans pass through to the store; the dashboard and
// stock alerts are served from the report cache when warm.

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

func (s *Service) ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx, filter)
}

func (s *Service) GetDebt(ctx context.Context, id string) (*domain.Debt, error) {
	return s.repo.GetDebt(ctx, id)
}

func (s *Service) ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.Debt, error) {
	return s.repo.ListDebts(ctx, filter)
}

func (s *Service) ListDebtPayments(ctx context.Context, debtID string) ([]domain.DebtPayment, error) {
	if _, err := s.repo.GetDebt(ctx, debtID); err != nil {
		return nil, err
	}
	return s.repo.ListDebtPayments(ctx, debtID)
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, limit)
}

// StockAlerts lists active products at or below their minimum stock, graded
// by severity.
func (s *Service) StockAlerts(ctx context.Context) ([]domain.StockAlert, error) {
	var cached []domain.StockAlert
	if hit, err := s.cache.Get(ctx, cacheKeyStockAlerts, &cached); err != nil {
		s.log.Warn("stock alert cache read failed", zap.Error(err))
	} else if hit {
		return cached, nil
	}

	products, err := s.repo.LowStockProducts(ctx)
	if err != nil {
		return nil, err
	}
	alerts := make([]domain.StockAlert, 0, len(products))
	for _, p := range products {
		alerts = append(alerts, domain.StockAlert{
			ProductID:    p.ID,
			Code:         p.Code,
			Name:         p.Name,
			Category:     p.Category,
			CurrentStock: p.Stock,
			MinStock:     p.MinStock,
			Deficit:      p.MinStock - p.Stock,
			Severity:     domain.AlertSeverity(p.Stock, p.MinStock),
		})
	}

	if err := s.cache.Set(ctx, cacheKeyStockAlerts, alerts, s.ttl); err != nil {
		s.log.Warn("stock alert cache write failed", zap.Error(err))
	}
	return alerts, nil
}

// Dashboard summarizes today's trade: revenue, profit, transaction count,
// low-stock count and the outstanding debt book.
func (s *Service) Dashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	var cached domain.DashboardSummary
	if hit, err := s.cache.Get(ctx, cacheKeyDashboard, &cached); err != nil {
		s.log.Warn("dashboard cache read failed", zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{From: &start})
	if err != nil {
		return nil, err
	}

	buyPrices, err := s.buyPriceIndex(ctx)
	if err != nil {
		return nil, err
	}

	summary := domain.DashboardSummary{
		TodayRevenue: decimal.Zero,
		TodayProfit:  decimal.Zero,
	}
	for _, sale := range sales {
		summary.TodayRevenue = summary.TodayRevenue.Add(sale.TotalAmount)
		summary.TodayProfit = summary.TodayProfit.Add(saleProfit(sale, buyPrices))
		summary.TodayTransactionCount++
	}

	lowStock, err := s.repo.LowStockProducts(ctx)
	if err != nil {
		return nil, err
	}
	summary.LowStockCount = len(lowStock)

	summary.TotalUnpaidDebt = decimal.Zero
	debts, err := s.repo.ListDebts(ctx, domain.DebtFilter{})
	if err != nil {
		return nil, err
	}
	for _, d := range debts {
		if d.Status != domain.DebtPaid {
			summary.TotalUnpaidDebt = summary.TotalUnpaidDebt.Add(d.RemainingDebt)
		}
	}

	if err := s.cache.Set(ctx, cacheKeyDashboard, &summary, s.ttl); err != nil {
		s.log.Warn("dashboard cache write failed", zap.Error(err))
	}
	return &summary, nil
}

// SalesReport aggregates sales in [from, to) with totals per payment method.
func (s *Service) SalesReport(ctx context.Context, period string, from, to time.Time) (*domain.SalesReport, error) {
	if !to.After(from) {
		return nil, domain.ErrInvalidInput
	}
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	buyPrices, err := s.buyPriceIndex(ctx)
	if err != nil {
		return nil, err
	}

	report := domain.SalesReport{
		Period:          period,
		StartDate:       from,
		EndDate:         to,
		TotalRevenue:    decimal.Zero,
		TotalProfit:     decimal.Zero,
		ByPaymentMethod: map[string]domain.PaymentMethodTotals{},
	}
	for _, sale := range sales {
		report.TotalTransactions++
		report.TotalRevenue = report.TotalRevenue.Add(sale.TotalAmount)
		report.TotalProfit = report.TotalProfit.Add(saleProfit(sale, buyPrices))

		totals := report.ByPaymentMethod[sale.PaymentMethod]
		totals.Count++
		totals.Total = totals.Total.Add(sale.TotalAmount)
		report.ByPaymentMethod[sale.PaymentMethod] = totals
	}
	return &report, nil
}

// buyPriceIndex maps product id to its current buy price. Profit is valued at
// today's cost, not the cost at sale time.
func (s *Service) buyPriceIndex(ctx context.Context) (map[string]decimal.Decimal, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		index[p.ID] = p.BuyPrice
	}
	return index, nil
}

func saleProfit(sale domain.Sale, buyPrices map[string]decimal.Decimal) decimal.Decimal {
	profit := decimal.Zero
	for _, it := range sale.Items {
		buy, ok := buyPrices[it.ProductID]
		if !ok {
			continue
		}
		margin := it.PricePerUnit.Sub(buy).Mul(decimal.NewFromInt(int64(it.Quantity)))
		profit = profit.Add(margin)
	}
	return profit
}
