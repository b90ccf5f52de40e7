package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"warungpos/internal/cache"
	"warungpos/internal/ledger"
	"warungpos/internal/store/memory"
)

func newTestRouter() http.Handler {
	svc := ledger.New(memory.New(), cache.NoopReportCache{}, zap.NewNop(), 5*time.Second)
	return New(svc, zap.NewNop(), "http://127.0.0.1:3000").Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func createProduct(t *testing.T, router http.Handler, code string, stock int, sell int64) string {
	t.Helper()
	rec, body := doJSON(t, router, http.MethodPost, "/api/products", map[string]any{
		"code":       code,
		"name":       "Produk " + code,
		"category":   "Umum",
		"stock":      stock,
		"min_stock":  2,
		"buy_price":  sell - 5,
		"sell_price": sell,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: status %d body %v", rec.Code, body)
	}
	product := body["product"].(map[string]any)
	return product["id"].(string)
}

func createCustomer(t *testing.T, router http.Handler, name string) string {
	t.Helper()
	rec, body := doJSON(t, router, http.MethodPost, "/api/customers", map[string]any{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer: status %d body %v", rec.Code, body)
	}
	return body["customer"].(map[string]any)["id"].(string)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter()
	rec, body := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestRecordSaleEndpoint(t *testing.T) {
	router := newTestRouter()
	productID := createProduct(t, router, "SKU-A", 10, 20)

	rec, body := doJSON(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"payment_method": "cash",
		"payment_amount": 100,
		"items":          []map[string]any{{"product_id": productID, "quantity": 4}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record sale: status %d body %v", rec.Code, body)
	}
	tx := body["transaction"].(map[string]any)
	if tx["total_amount"] != "80" {
		t.Fatalf("expected total 80, got %v", tx["total_amount"])
	}
	if tx["change_amount"] != "20" {
		t.Fatalf("expected change 20, got %v", tx["change_amount"])
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/products/"+productID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: status %d", rec.Code)
	}
	if stock := body["product"].(map[string]any)["stock"].(float64); stock != 6 {
		t.Fatalf("expected stock 6, got %v", stock)
	}
}

func TestRecordSaleConflictAndValidation(t *testing.T) {
	router := newTestRouter()
	productID := createProduct(t, router, "SKU-A", 2, 20)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"payment_method": "cash",
		"payment_amount": 1000,
		"items":          []map[string]any{{"product_id": productID, "quantity": 5}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d", rec.Code)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"payment_method": "transfer",
		"items":          []map[string]any{{"product_id": productID, "quantity": 1}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown payment method, got %d", rec.Code)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"payment_method": "cash",
		"payment_amount": 100,
		"items":          []map[string]any{{"product_id": "prod-missing", "quantity": 1}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}

func TestDebtLifecycleEndpoints(t *testing.T) {
	router := newTestRouter()
	productID := createProduct(t, router, "SKU-A", 10, 50000)
	customerID := createCustomer(t, router, "Bu Siti")

	rec, body := doJSON(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"customer_id":    customerID,
		"payment_method": "credit",
		"items":          []map[string]any{{"product_id": productID, "quantity": 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("credit sale: status %d body %v", rec.Code, body)
	}
	debt := body["debt"].(map[string]any)
	debtID := debt["id"].(string)
	if debt["status"] != "unpaid" {
		t.Fatalf("expected unpaid debt, got %v", debt["status"])
	}

	rec, body = doJSON(t, router, http.MethodPost, "/api/debts/payments", map[string]any{
		"debt_id": debtID,
		"amount":  20000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("apply payment: status %d body %v", rec.Code, body)
	}
	paymentID := body["payment"].(map[string]any)["id"].(string)
	if got := body["debt"].(map[string]any)["remaining_debt"]; got != "30000" {
		t.Fatalf("expected remaining 30000, got %v", got)
	}

	rec, body = doJSON(t, router, http.MethodPut, "/api/debts/payments/"+paymentID, map[string]any{
		"amount": 5000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile payment: status %d body %v", rec.Code, body)
	}
	if got := body["debt"].(map[string]any)["remaining_debt"]; got != "45000" {
		t.Fatalf("expected remaining 45000 after reconcile, got %v", got)
	}

	rec, body = doJSON(t, router, http.MethodDelete, "/api/debts/payments/"+paymentID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete payment: status %d body %v", rec.Code, body)
	}
	if got := body["debt"].(map[string]any)["status"]; got != "unpaid" {
		t.Fatalf("expected unpaid after delete, got %v", got)
	}

	rec, body = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/debts/%s/adjust", debtID), map[string]any{
		"new_total": 60000,
		"notes":     "koreksi harga",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust debt: status %d body %v", rec.Code, body)
	}
	if got := body["debt"].(map[string]any)["total_debt"]; got != "60000" {
		t.Fatalf("expected total 60000, got %v", got)
	}
}

func TestPurchaseEndpoints(t *testing.T) {
	router := newTestRouter()
	productID := createProduct(t, router, "SKU-A", 0, 20)

	rec, body := doJSON(t, router, http.MethodPost, "/api/purchases", map[string]any{
		"supplier": "Toko Grosir Makmur",
		"items":    []map[string]any{{"product_id": productID, "quantity": 10, "price_per_unit": 9}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record purchase: status %d body %v", rec.Code, body)
	}
	purchaseID := body["purchase"].(map[string]any)["id"].(string)

	rec, body = doJSON(t, router, http.MethodPut, "/api/purchases/"+purchaseID, map[string]any{
		"items": []map[string]any{{"product_id": productID, "quantity": 4, "price_per_unit": 9}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit purchase: status %d body %v", rec.Code, body)
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/products/"+productID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: status %d", rec.Code)
	}
	if stock := body["product"].(map[string]any)["stock"].(float64); stock != 4 {
		t.Fatalf("expected stock 4 after edit, got %v", stock)
	}
}

func TestStockAlertsAndDashboardEndpoints(t *testing.T) {
	router := newTestRouter()
	createProduct(t, router, "SKU-EMPTY", 0, 20)
	productID := createProduct(t, router, "SKU-A", 10, 20)

	rec, body := doJSON(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"payment_method": "qris",
		"items":          []map[string]any{{"product_id": productID, "quantity": 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("qris sale: status %d body %v", rec.Code, body)
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/products/alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stock alerts: status %d", rec.Code)
	}
	alerts := body["alerts"].([]any)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if severity := alerts[0].(map[string]any)["severity"]; severity != "critical" {
		t.Fatalf("expected critical severity, got %v", severity)
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/reports/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: status %d", rec.Code)
	}
	summary := body["summary"].(map[string]any)
	if summary["today_revenue"] != "40" {
		t.Fatalf("expected revenue 40, got %v", summary["today_revenue"])
	}
	if summary["today_transactions_count"].(float64) != 1 {
		t.Fatalf("expected 1 transaction, got %v", summary["today_transactions_count"])
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/reports/sales?period=daily", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sales report: status %d", rec.Code)
	}
	report := body["report"].(map[string]any)
	if report["total_transactions"].(float64) != 1 {
		t.Fatalf("expected 1 transaction in report, got %v", report["total_transactions"])
	}
}

func TestMalformedBodyRejected(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString("{not-json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
