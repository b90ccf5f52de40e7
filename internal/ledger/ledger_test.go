package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"warungpos/internal/cache"
	"warungpos/internal/domain"
	"warungpos/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New(), cache.NoopReportCache{}, zap.NewNop(), 5*time.Second)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func mustProduct(t *testing.T, svc *Service, code string, stock, minStock int, buy, sell int64) *domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), domain.Product{
		Code:      code,
		Name:      "Produk " + code,
		Category:  "Umum",
		Stock:     stock,
		MinStock:  minStock,
		BuyPrice:  dec(buy),
		SellPrice: dec(sell),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", code, err)
	}
	return p
}

func mustCustomer(t *testing.T, svc *Service, name string) *domain.Customer {
	t.Helper()
	c, err := svc.CreateCustomer(context.Background(), domain.Customer{Name: name})
	if err != nil {
		t.Fatalf("create customer %s: %v", name, err)
	}
	return c
}

func stockOf(t *testing.T, svc *Service, productID string) int {
	t.Helper()
	p, err := svc.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p.Stock
}

func TestRecordSaleCashComputesTotalsAndDeductsStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 10, 2, 12, 20)

	pay := dec(100)
	sale, debt, err := svc.RecordSale(ctx, domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if debt != nil {
		t.Fatalf("cash sale must not open a debt")
	}
	if !sale.TotalAmount.Equal(dec(80)) {
		t.Fatalf("expected total 80, got %s", sale.TotalAmount)
	}
	if sale.ChangeAmount == nil || !sale.ChangeAmount.Equal(dec(20)) {
		t.Fatalf("expected change 20, got %v", sale.ChangeAmount)
	}
	if got := stockOf(t, svc, p.ID); got != 6 {
		t.Fatalf("expected stock 6 after sale, got %d", got)
	}
	if sale.InvoiceNumber == "" {
		t.Fatalf("expected an invoice number")
	}
	if len(sale.Items) != 1 || !sale.Items[0].PricePerUnit.Equal(dec(20)) {
		t.Fatalf("sale items must carry the catalog sell price, got %+v", sale.Items)
	}
}

func TestRecordSaleExactCashHasNoChange(t *testing.T) {
	svc := newTestService()
	p := mustProduct(t, svc, "SKU-A", 5, 1, 10, 15)

	pay := dec(30)
	sale, _, err := svc.RecordSale(context.Background(), domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if sale.ChangeAmount != nil {
		t.Fatalf("exact payment must not record change, got %s", sale.ChangeAmount)
	}
}

func TestRecordSaleCashRejectsUnderpayment(t *testing.T) {
	svc := newTestService()
	p := mustProduct(t, svc, "SKU-A", 5, 1, 10, 15)

	pay := dec(10)
	_, _, err := svc.RecordSale(context.Background(), domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrPaymentTooLow) {
		t.Fatalf("expected ErrPaymentTooLow, got %v", err)
	}
	if got := stockOf(t, svc, p.ID); got != 5 {
		t.Fatalf("failed sale must not move stock, got %d", got)
	}
}

func TestRecordSaleRejectsInvalidInput(t *testing.T) {
	svc := newTestService()
	p := mustProduct(t, svc, "SKU-A", 5, 1, 10, 15)
	ctx := context.Background()

	cases := []domain.SaleCommand{
		{PaymentMethod: domain.PaymentCash},
		{PaymentMethod: "transfer", Items: []domain.SaleLine{{ProductID: p.ID, Quantity: 1}}},
		{PaymentMethod: domain.PaymentCash, Items: []domain.SaleLine{{ProductID: p.ID, Quantity: 0}}},
		{PaymentMethod: domain.PaymentCredit, Items: []domain.SaleLine{{ProductID: p.ID, Quantity: 1}}},
	}
	for i, cmd := range cases {
		if _, _, err := svc.RecordSale(ctx, cmd); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestRecordSaleInactiveProduct(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 5, 1, 10, 15)
	p.Status = domain.ProductInactive
	if _, err := svc.UpdateProduct(ctx, *p); err != nil {
		t.Fatalf("deactivate product: %v", err)
	}

	pay := dec(100)
	_, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}
}

func TestRecordSaleInsufficientStockRollsBackWholeSale(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a := mustProduct(t, svc, "SKU-A", 10, 1, 10, 15)
	b := mustProduct(t, svc, "SKU-B", 2, 1, 10, 15)

	pay := dec(1000)
	_, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items: []domain.SaleLine{
			{ProductID: a.ID, Quantity: 3},
			{ProductID: b.ID, Quantity: 5},
		},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := stockOf(t, svc, a.ID); got != 10 {
		t.Fatalf("aborted sale must not touch product A, got stock %d", got)
	}
	if got := stockOf(t, svc, b.ID); got != 2 {
		t.Fatalf("aborted sale must not touch product B, got stock %d", got)
	}
	sales, err := svc.ListSales(ctx, domain.SaleFilter{})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("aborted sale must not appear in the journal, got %d entries", len(sales))
	}
}

func TestRecordSaleCreditOpensDebt(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 20, 1, 30000, 50000)
	c := mustCustomer(t, svc, "Bu Siti")

	sale, debt, err := svc.RecordSale(ctx, domain.SaleCommand{
		CustomerID:    c.ID,
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("record credit sale: %v", err)
	}
	if debt == nil {
		t.Fatalf("credit sale must open a debt")
	}
	if debt.TransactionID != sale.ID {
		t.Fatalf("debt must reference the sale")
	}
	if debt.Status != domain.DebtUnpaid {
		t.Fatalf("expected unpaid debt, got %s", debt.Status)
	}
	if !debt.TotalDebt.Equal(dec(50000)) || !debt.RemainingDebt.Equal(dec(50000)) || !debt.PaidAmount.IsZero() {
		t.Fatalf("unexpected debt figures: %+v", debt)
	}
}

func TestDebtPaymentLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 20, 1, 30000, 50000)
	c := mustCustomer(t, svc, "Bu Siti")

	_, debt, err := svc.RecordSale(ctx, domain.SaleCommand{
		CustomerID:    c.ID,
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("record credit sale: %v", err)
	}

	after, _, err := svc.ApplyDebtPayment(ctx, domain.DebtPaymentCommand{DebtID: debt.ID, Amount: dec(20000)})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if after.Status != domain.DebtPartial || !after.RemainingDebt.Equal(dec(30000)) {
		t.Fatalf("expected partial/30000, got %s/%s", after.Status, after.RemainingDebt)
	}

	after, _, err = svc.ApplyDebtPayment(ctx, domain.DebtPaymentCommand{DebtID: debt.ID, Amount: dec(30000)})
	if err != nil {
		t.Fatalf("settling payment: %v", err)
	}
	if after.Status != domain.DebtPaid || !after.RemainingDebt.IsZero() {
		t.Fatalf("expected paid/0, got %s/%s", after.Status, after.RemainingDebt)
	}

	_, _, err = svc.ApplyDebtPayment(ctx, domain.DebtPaymentCommand{DebtID: debt.ID, Amount: dec(1000)})
	if !errors.Is(err, domain.ErrDebtAlreadyPaid) {
		t.Fatalf("expected ErrDebtAlreadyPaid, got %v", err)
	}

	payments, err := svc.ListDebtPayments(ctx, debt.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 recorded payments, got %d", len(payments))
	}
}

func TestDebtPaymentExceedingRemainingIsRejected(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 20, 1, 30000, 50000)
	c := mustCustomer(t, svc, "Pak Budi")

	_, debt, err := svc.RecordSale(ctx, domain.SaleCommand{
		CustomerID:    c.ID,
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("record credit sale: %v", err)
	}

	_, _, err = svc.ApplyDebtPayment(ctx, domain.DebtPaymentCommand{DebtID: debt.ID, Amount: dec(60000)})
	if !errors.Is(err, domain.ErrAmountExceedsRemaining) {
		t.Fatalf("expected ErrAmountExceedsRemaining, got %v", err)
	}
	got, err := svc.GetDebt(ctx, debt.ID)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if !got.RemainingDebt.Equal(dec(50000)) || got.Status != domain.DebtUnpaid {
		t.Fatalf("rejected payment must leave the debt untouched, got %+v", got)
	}
}

func TestReconcilePaymentRecomputesFromPaymentSet(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 20, 1, 30000, 50000)
	c := mustCustomer(t, svc, "Bu Siti")

	_, debt, err := svc.RecordSale(ctx, domain.SaleCommand{
		CustomerID:    c.ID,
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("record credit sale: %v", err)
	}
	_, payment, err := svc.ApplyDebtPayment(ctx, domain.DebtPaymentCommand{DebtID: debt.ID, Amount: dec(20000)})
	if err != nil {
		t.Fatalf("apply payment: %v", err)
	}

	after, _, err := svc.ReconcilePayment(ctx, payment.ID, domain.ReconcilePaymentCommand{Amount: dec(5000)})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !after.PaidAmount.Equal(dec(5000)) || !after.RemainingDebt.Equal(dec(45000)) || after.Status != domain.DebtPartial {
		t.Fatalf("expected 5000 paid / 45000 remaining / partial, got %+v", after)
	}

	_, _, err = svc.ReconcilePayment(ctx, payment.ID, domain.ReconcilePaymentCommand{Amount: dec(60000)})
	if !errors.Is(err, domain.ErrAmountExceedsTotal) {
		t.Fatalf("expected ErrAmountExceedsTotal, got %v", err)
	}
	got, err := svc.GetDebt(ctx, debt.ID)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if !got.PaidAmount.Equal(dec(5000)) {
		t.Fatalf("failed reconcile must not change the debt, got paid %s", got.PaidAmount)
	}
}

func TestDeletePaymentRestoresBalance(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 20, 1, 30000, 50000)
	c := mustCustomer(t, svc, "Bu Siti")

	_, debt, err := svc.RecordSale(ctx, domain.SaleCommand{
		CustomerID:    c.ID,
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("record credit sale: %v", err)
	}
	_, payment, err := svc.ApplyDebtPayment(ctx, domain.DebtPaymentCommand{DebtID: debt.ID, Amount: dec(20000)})
	if err != nil {
		t.Fatalf("apply payment: %v", err)
	}

	after, err := svc.DeletePayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if after.Status != domain.DebtUnpaid || !after.RemainingDebt.Equal(dec(50000)) || !after.PaidAmount.IsZero() {
		t.Fatalf("expected unpaid/50000/0 after delete, got %+v", after)
	}

	if _, err := svc.DeletePayment(ctx, payment.ID); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound on double delete, got %v", err)
	}
}

func TestAdjustDebt(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 20, 1, 30000, 50000)
	c := mustCustomer(t, svc, "Bu Siti")

	_, debt, err := svc.RecordSale(ctx, domain.SaleCommand{
		CustomerID:    c.ID,
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("record credit sale: %v", err)
	}
	if _, _, err := svc.ApplyDebtPayment(ctx, domain.DebtPaymentCommand{DebtID: debt.ID, Amount: dec(20000)}); err != nil {
		t.Fatalf("apply payment: %v", err)
	}

	after, err := svc.AdjustDebt(ctx, debt.ID, dec(60000), "harga dikoreksi")
	if err != nil {
		t.Fatalf("adjust debt: %v", err)
	}
	if !after.TotalDebt.Equal(dec(60000)) || !after.RemainingDebt.Equal(dec(40000)) || after.Status != domain.DebtPartial {
		t.Fatalf("unexpected debt after adjust: %+v", after)
	}

	if _, err := svc.AdjustDebt(ctx, debt.ID, dec(10000), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("adjusting below paid amount must fail, got %v", err)
	}
}

func TestRecordPurchaseIncreasesStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 3, 1, 10, 15)

	purchase, err := svc.RecordPurchase(ctx, domain.PurchaseCommand{
		Supplier: "Toko Grosir Makmur",
		Items:    []domain.PurchaseLine{{ProductID: p.ID, Quantity: 12, PricePerUnit: dec(9)}},
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	if !purchase.TotalAmount.Equal(dec(108)) {
		t.Fatalf("expected total 108, got %s", purchase.TotalAmount)
	}
	if got := stockOf(t, svc, p.ID); got != 15 {
		t.Fatalf("expected stock 15 after restock, got %d", got)
	}
}

func TestEditPurchaseReversesThenApplies(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 0, 1, 10, 15)

	purchase, err := svc.RecordPurchase(ctx, domain.PurchaseCommand{
		Items: []domain.PurchaseLine{{ProductID: p.ID, Quantity: 10, PricePerUnit: dec(9)}},
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}

	edited, err := svc.EditPurchase(ctx, purchase.ID, domain.PurchaseCommand{
		Items: []domain.PurchaseLine{{ProductID: p.ID, Quantity: 4, PricePerUnit: dec(9)}},
	})
	if err != nil {
		t.Fatalf("edit purchase: %v", err)
	}
	if got := stockOf(t, svc, p.ID); got != 4 {
		t.Fatalf("expected stock 4 after edit, got %d", got)
	}
	if !edited.TotalAmount.Equal(dec(36)) {
		t.Fatalf("expected total 36, got %s", edited.TotalAmount)
	}

	// Applying the same edit again must not drift stock.
	if _, err := svc.EditPurchase(ctx, purchase.ID, domain.PurchaseCommand{
		Items: []domain.PurchaseLine{{ProductID: p.ID, Quantity: 4, PricePerUnit: dec(9)}},
	}); err != nil {
		t.Fatalf("repeat edit: %v", err)
	}
	if got := stockOf(t, svc, p.ID); got != 4 {
		t.Fatalf("repeated edit must keep stock at 4, got %d", got)
	}
}

func TestEditPurchaseAbortsWhenGoodsAlreadySold(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 0, 1, 10, 15)

	purchase, err := svc.RecordPurchase(ctx, domain.PurchaseCommand{
		Items: []domain.PurchaseLine{{ProductID: p.ID, Quantity: 10, PricePerUnit: dec(9)}},
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	pay := dec(1000)
	if _, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 8}},
	}); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	_, err = svc.EditPurchase(ctx, purchase.ID, domain.PurchaseCommand{
		Items: []domain.PurchaseLine{{ProductID: p.ID, Quantity: 1, PricePerUnit: dec(9)}},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := stockOf(t, svc, p.ID); got != 2 {
		t.Fatalf("aborted edit must leave stock at 2, got %d", got)
	}
	unchanged, err := svc.GetPurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if len(unchanged.Items) != 1 || unchanged.Items[0].Quantity != 10 {
		t.Fatalf("aborted edit must leave the purchase unchanged, got %+v", unchanged.Items)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 10, 1, 10, 15)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pay := dec(15)
			_, _, err := svc.RecordSale(ctx, domain.SaleCommand{
				PaymentMethod: domain.PaymentCash,
				PaymentAmount: &pay,
				Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected sale error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 sales to succeed, got %d", succeeded)
	}
	if got := stockOf(t, svc, p.ID); got != 0 {
		t.Fatalf("expected stock 0 after concurrent sales, got %d", got)
	}
}

func TestStockAlertSeverities(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	mustProduct(t, svc, "SKU-OUT", 0, 5, 10, 15)
	mustProduct(t, svc, "SKU-LOW", 2, 10, 10, 15)
	mustProduct(t, svc, "SKU-NEAR", 5, 8, 10, 15)
	mustProduct(t, svc, "SKU-OK", 50, 8, 10, 15)

	alerts, err := svc.StockAlerts(ctx)
	if err != nil {
		t.Fatalf("stock alerts: %v", err)
	}
	bySeverity := map[string]domain.StockAlert{}
	for _, a := range alerts {
		bySeverity[a.Severity] = a
	}
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}
	if a := bySeverity[domain.SeverityCritical]; a.Code != "SKU-OUT" || a.Deficit != 5 {
		t.Fatalf("unexpected critical alert: %+v", a)
	}
	if a := bySeverity[domain.SeverityHigh]; a.Code != "SKU-LOW" || a.Deficit != 8 {
		t.Fatalf("unexpected high alert: %+v", a)
	}
	if a := bySeverity[domain.SeverityMedium]; a.Code != "SKU-NEAR" || a.Deficit != 3 {
		t.Fatalf("unexpected medium alert: %+v", a)
	}
}

func TestDashboardSummary(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 20, 1, 12, 20)
	c := mustCustomer(t, svc, "Bu Siti")

	pay := dec(100)
	if _, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 5}},
	}); err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if _, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		CustomerID:    c.ID,
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 2}},
	}); err != nil {
		t.Fatalf("credit sale: %v", err)
	}

	summary, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !summary.TodayRevenue.Equal(dec(140)) {
		t.Fatalf("expected revenue 140, got %s", summary.TodayRevenue)
	}
	// Profit at current buy price: (20-12) * 7.
	if !summary.TodayProfit.Equal(dec(56)) {
		t.Fatalf("expected profit 56, got %s", summary.TodayProfit)
	}
	if summary.TodayTransactionCount != 2 {
		t.Fatalf("expected 2 transactions, got %d", summary.TodayTransactionCount)
	}
	if !summary.TotalUnpaidDebt.Equal(dec(40)) {
		t.Fatalf("expected unpaid debt 40, got %s", summary.TotalUnpaidDebt)
	}
}

func TestSalesReportAggregatesByPaymentMethod(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 50, 1, 12, 20)

	pay := dec(200)
	for i := 0; i < 3; i++ {
		if _, _, err := svc.RecordSale(ctx, domain.SaleCommand{
			PaymentMethod: domain.PaymentCash,
			PaymentAmount: &pay,
			Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 2}},
		}); err != nil {
			t.Fatalf("cash sale %d: %v", i, err)
		}
	}
	if _, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		PaymentMethod: domain.PaymentQRIS,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("qris sale: %v", err)
	}

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	report, err := svc.SalesReport(ctx, "daily", from, to)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if report.TotalTransactions != 4 {
		t.Fatalf("expected 4 transactions, got %d", report.TotalTransactions)
	}
	if !report.TotalRevenue.Equal(dec(140)) {
		t.Fatalf("expected revenue 140, got %s", report.TotalRevenue)
	}
	if cash := report.ByPaymentMethod[domain.PaymentCash]; cash.Count != 3 || !cash.Total.Equal(dec(120)) {
		t.Fatalf("unexpected cash totals: %+v", cash)
	}
	if qris := report.ByPaymentMethod[domain.PaymentQRIS]; qris.Count != 1 || !qris.Total.Equal(dec(20)) {
		t.Fatalf("unexpected qris totals: %+v", qris)
	}
}

func TestDeleteProductReferencedByJournalIsRejected(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 10, 1, 10, 15)

	pay := dec(15)
	if _, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	if err := svc.DeleteProduct(ctx, p.ID); !errors.Is(err, domain.ErrProductInUse) {
		t.Fatalf("expected ErrProductInUse, got %v", err)
	}
}

func TestDeleteCustomerWithDebtsIsRejected(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 10, 1, 10, 15)
	c := mustCustomer(t, svc, "Bu Siti")

	if _, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		CustomerID:    c.ID,
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("record credit sale: %v", err)
	}

	if err := svc.DeleteCustomer(ctx, c.ID); !errors.Is(err, domain.ErrCustomerInUse) {
		t.Fatalf("expected ErrCustomerInUse, got %v", err)
	}
}

func TestUpdateProductNeverTouchesStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 10, 1, 10, 15)

	edit := *p
	edit.Name = "Produk Baru"
	edit.Stock = 999
	updated, err := svc.UpdateProduct(ctx, edit)
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Stock != 10 {
		t.Fatalf("catalog update must not move stock, got %d", updated.Stock)
	}
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := mustProduct(t, svc, "SKU-A", 10, 1, 10, 15)

	pay := dec(15)
	if _, _, err := svc.RecordSale(ctx, domain.SaleCommand{
		PaymentMethod: domain.PaymentCash,
		PaymentAmount: &pay,
		Items:         []domain.SaleLine{{ProductID: p.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("record sale: %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) < 2 {
		t.Fatalf("expected product creation and sale in the audit trail, got %d entries", len(logs))
	}
	if logs[0].Action != "sale.recorded" {
		t.Fatalf("expected newest entry sale.recorded, got %s", logs[0].Action)
	}
}
