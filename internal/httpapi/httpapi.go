// Package httpapi exposes the ledger over REST. Handlers decode and validate
// typed request DTOs, call the engine, and map its sentinel errors onto
// status codes; nothing here touches stores directly.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"warungpos/internal/domain"
	"warungpos/internal/ledger"
)

type API struct {
	svc           *ledger.Service
	log           *zap.Logger
	validate      *validator.Validate
	allowedOrigin string
}

func New(svc *ledger.Service, log *zap.Logger, allowedOrigin string) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		svc:           svc,
		log:           log,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{a.allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", a.handleListProducts)
			r.Post("/", a.handleCreateProduct)
			r.Get("/alerts", a.handleStockAlerts)
			r.Get("/{id}", a.handleGetProduct)
			r.Put("/{id}", a.handleUpdateProduct)
			r.Delete("/{id}", a.handleDeleteProduct)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", a.handleListCustomers)
			r.Post("/", a.handleCreateCustomer)
			r.Get("/{id}", a.handleGetCustomer)
			r.Delete("/{id}", a.handleDeleteCustomer)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", a.handleListSales)
			r.Post("/", a.handleRecordSale)
			r.Get("/{id}", a.handleGetSale)
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", a.handleListPurchases)
			r.Post("/", a.handleRecordPurchase)
			r.Get("/{id}", a.handleGetPurchase)
			r.Put("/{id}", a.handleEditPurchase)
		})

		r.Route("/debts", func(r chi.Router) {
			r.Get("/", a.handleListDebts)
			r.Post("/payments", a.handleApplyDebtPayment)
			r.Put("/payments/{id}", a.handleReconcilePayment)
			r.Delete("/payments/{id}", a.handleDeletePayment)
			r.Get("/{id}", a.handleGetDebt)
			r.Get("/{id}/payments", a.handleListDebtPayments)
			r.Post("/{id}/adjust", a.handleAdjustDebt)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", a.handleDashboard)
			r.Get("/sales", a.handleSalesReport)
		})

		r.Get("/audit-logs", a.handleAuditLogs)
	})

	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- products ----

type productRequest struct {
	Code      string          `json:"code" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Category  string          `json:"category"`
	Stock     int             `json:"stock" validate:"gte=0"`
	MinStock  int             `json:"min_stock" validate:"gte=0"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Status    string          `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.svc.ListProducts(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.svc.CreateProduct(r.Context(), domain.Product{
		Code:      req.Code,
		Name:      req.Name,
		Category:  req.Category,
		Stock:     req.Stock,
		MinStock:  req.MinStock,
		BuyPrice:  req.BuyPrice,
		SellPrice: req.SellPrice,
		Status:    domain.ProductStatus(req.Status),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.svc.UpdateProduct(r.Context(), domain.Product{
		ID:        chi.URLParam(r, "id"),
		Code:      req.Code,
		Name:      req.Name,
		Category:  req.Category,
		MinStock:  req.MinStock,
		BuyPrice:  req.BuyPrice,
		SellPrice: req.SellPrice,
		Status:    domain.ProductStatus(req.Status),
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (a *API) handleStockAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.svc.StockAlerts(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// ---- customers ----

type customerRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.svc.ListCustomers(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !a.decode(w, r, &req) {
		return
	}
	customer, err := a.svc.CreateCustomer(r.Context(), domain.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.svc.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// ---- sales ----

type saleItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type saleRequest struct {
	CustomerID    string            `json:"customer_id"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash qris credit"`
	PaymentAmount *decimal.Decimal  `json:"payment_amount"`
	QRISData      string            `json:"qris_data"`
	Notes         string            `json:"notes"`
	Items         []saleItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (a *API) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if !a.decode(w, r, &req) {
		return
	}
	cmd := domain.SaleCommand{
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		PaymentAmount: req.PaymentAmount,
		QRISData:      req.QRISData,
		Notes:         req.Notes,
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, domain.SaleLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	sale, debt, err := a.svc.RecordSale(r.Context(), cmd)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	resp := map[string]any{"transaction": sale}
	if debt != nil {
		resp["debt"] = debt
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	filter := domain.SaleFilter{
		CustomerID:    r.URL.Query().Get("customer_id"),
		PaymentMethod: r.URL.Query().Get("payment_method"),
	}
	var ok bool
	if filter.From, ok = parseDateParam(w, r, "start_date", false); !ok {
		return
	}
	if filter.To, ok = parseDateParam(w, r, "end_date", true); !ok {
		return
	}
	sales, err := a.svc.ListSales(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": sales})
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.svc.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": sale})
}

// ---- purchases ----

type purchaseItemRequest struct {
	ProductID    string          `json:"product_id" validate:"required"`
	Quantity     int             `json:"quantity" validate:"required,min=1"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

type purchaseRequest struct {
	Supplier string                `json:"supplier"`
	Notes    string                `json:"notes"`
	Items    []purchaseItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (req purchaseRequest) command() domain.PurchaseCommand {
	cmd := domain.PurchaseCommand{Supplier: req.Supplier, Notes: req.Notes}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, domain.PurchaseLine{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			PricePerUnit: it.PricePerUnit,
		})
	}
	return cmd
}

func (a *API) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !a.decode(w, r, &req) {
		return
	}
	purchase, err := a.svc.RecordPurchase(r.Context(), req.command())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"purchase": purchase})
}

func (a *API) handleEditPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !a.decode(w, r, &req) {
		return
	}
	purchase, err := a.svc.EditPurchase(r.Context(), chi.URLParam(r, "id"), req.command())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchase": purchase})
}

func (a *API) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	var filter domain.PurchaseFilter
	var ok bool
	if filter.From, ok = parseDateParam(w, r, "start_date", false); !ok {
		return
	}
	if filter.To, ok = parseDateParam(w, r, "end_date", true); !ok {
		return
	}
	purchases, err := a.svc.ListPurchases(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

func (a *API) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := a.svc.GetPurchase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchase": purchase})
}

// ---- debts ----

type debtPaymentRequest struct {
	DebtID        string          `json:"debt_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash qris"`
	Notes         string          `json:"notes"`
}

type reconcilePaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash qris"`
	Notes         *string         `json:"notes"`
}

type adjustDebtRequest struct {
	NewTotal decimal.Decimal `json:"new_total" validate:"required"`
	Notes    string          `json:"notes"`
}

func (a *API) handleListDebts(w http.ResponseWriter, r *http.Request) {
	filter := domain.DebtFilter{
		Status:     domain.DebtStatus(r.URL.Query().Get("status")),
		CustomerID: r.URL.Query().Get("customer_id"),
	}
	debts, err := a.svc.ListDebts(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debts": debts})
}

func (a *API) handleGetDebt(w http.ResponseWriter, r *http.Request) {
	debt, err := a.svc.GetDebt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
}

func (a *API) handleListDebtPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := a.svc.ListDebtPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (a *API) handleApplyDebtPayment(w http.ResponseWriter, r *http.Request) {
	var req debtPaymentRequest
	if !a.decode(w, r, &req) {
		return
	}
	debt, payment, err := a.svc.ApplyDebtPayment(r.Context(), domain.DebtPaymentCommand{
		DebtID:        req.DebtID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"debt": debt, "payment": payment})
}

func (a *API) handleReconcilePayment(w http.ResponseWriter, r *http.Request) {
	var req reconcilePaymentRequest
	if !a.decode(w, r, &req) {
		return
	}
	debt, payment, err := a.svc.ReconcilePayment(r.Context(), chi.URLParam(r, "id"), domain.ReconcilePaymentCommand{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debt": debt, "payment": payment})
}

func (a *API) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	debt, err := a.svc.DeletePayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
}

func (a *API) handleAdjustDebt(w http.ResponseWriter, r *http.Request) {
	var req adjustDebtRequest
	if !a.decode(w, r, &req) {
		return
	}
	debt, err := a.svc.AdjustDebt(r.Context(), chi.URLParam(r, "id"), req.NewTotal, req.Notes)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
}

// ---- reports ----

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.Dashboard(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	now := time.Now()
	var from, to time.Time
	switch period {
	case "daily":
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 0, 1)
	case "weekly":
		to = now
		from = now.AddDate(0, 0, -7)
	case "monthly":
		to = now
		from = now.AddDate(0, -1, 0)
	case "custom":
		fromPtr, ok := parseDateParam(w, r, "start_date", false)
		if !ok {
			return
		}
		toPtr, ok := parseDateParam(w, r, "end_date", true)
		if !ok {
			return
		}
		if fromPtr == nil || toPtr == nil {
			writeError(w, http.StatusBadRequest, "custom period requires start_date and end_date")
			return
		}
		from, to = *fromPtr, *toPtr
	default:
		writeError(w, http.StatusBadRequest, "unknown period")
		return
	}

	report, err := a.svc.SalesReport(r.Context(), period, from, to)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	logs, err := a.svc.ListAuditLogs(r.Context(), limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

// ---- helpers ----

func (a *API) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrPurchaseNotFound),
		errors.Is(err, domain.ErrDebtNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductInactive),
		errors.Is(err, domain.ErrPaymentTooLow),
		errors.Is(err, domain.ErrDebtAlreadyPaid),
		errors.Is(err, domain.ErrAmountExceedsRemaining),
		errors.Is(err, domain.ErrAmountExceedsTotal),
		errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrProductInUse),
		errors.Is(err, domain.ErrCustomerInUse):
		writeError(w, http.StatusConflict, err.Error())
	default:
		a.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseDateParam reads a YYYY-MM-DD query parameter. End dates are exclusive:
// the value is advanced one day so the whole named day is included.
func parseDateParam(w http.ResponseWriter, r *http.Request, name string, endOfDay bool) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be YYYY-MM-DD")
		return nil, false
	}
	if endOfDay {
		parsed = parsed.AddDate(0, 0, 1)
	}
	return &parsed, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
