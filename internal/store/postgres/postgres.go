// Package postgres implements store.Repository on PostgreSQL via the pgx
// stdlib driver. Expected schema:
//
//	products      (id text pk, code text unique, name, category, stock int,
//	               min_stock int, buy_price numeric, sell_price numeric,
//	               status text, created_at, updated_at)
//	customers     (id text pk, name, phone, address, created_at)
//	sales         (id text pk, invoice_number text unique, customer_id,
//	               items jsonb, total_amount numeric, payment_method,
//	               payment_amount numeric null, change_amount numeric null,
//	               qris_data, notes, status, created_at)
//	purchases     (id text pk, purchase_number text unique, supplier,
//	               items jsonb, total_amount numeric, notes, created_at,
//	               updated_at)
//	debts         (id text pk, transaction_id, customer_id, total_debt numeric,
//	               paid_amount numeric, remaining_debt numeric, status, notes,
//	               created_at, updated_at)
//	debt_payments (id text pk, debt_id, amount numeric, payment_method, notes,
//	               created_at)
//	audit_logs    (id text pk, action, entity_type, entity_id, detail,
//	               created_at)
//
// Units of work run at SERIALIZABLE with explicit FOR UPDATE row locks; stock
// deltas apply through a conditional UPDATE so stock can never go negative
// even under concurrent writers.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"warungpos/internal/domain"
	"warungpos/internal/store"
	"warungpos/internal/xid"
)

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- transaction ----

type pgTx struct {
	tx *sql.Tx
}

var _ store.UnitOfWork = (*pgTx)(nil)

func (s *Store) InTx(ctx context.Context, fn func(uow store.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *pgTx) ProductForUpdate(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, code, name, category, stock, min_stock, buy_price, sell_price, status, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.Stock, &p.MinStock, &p.BuyPrice, &p.SellPrice, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	var stock int
	err := t.tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock
	`, productID, delta).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	// No row updated: either the product is gone or the delta would have
	// driven stock negative.
	var exists bool
	if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, domain.ErrProductNotFound
	}
	return 0, domain.ErrInsufficientStock
}

func (t *pgTx) CreateSale(ctx context.Context, sale *domain.Sale) error {
	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, invoice_number, customer_id, items, total_amount, payment_method,
			payment_amount, change_amount, qris_data, notes, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sale.ID, sale.InvoiceNumber, nullString(sale.CustomerID), itemsJSON, sale.TotalAmount,
		sale.PaymentMethod, nullDecimal(sale.PaymentAmount), nullDecimal(sale.ChangeAmount),
		nullString(sale.QRISData), nullString(sale.Notes), sale.Status, sale.CreatedAt)
	return err
}

func (t *pgTx) CreateDebt(ctx context.Context, debt *domain.Debt) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO debts (
			id, transaction_id, customer_id, total_debt, paid_amount, remaining_debt,
			status, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, debt.ID, debt.TransactionID, debt.CustomerID, debt.TotalDebt, debt.PaidAmount,
		debt.RemainingDebt, debt.Status, nullString(debt.Notes), debt.CreatedAt, debt.UpdatedAt)
	return err
}

func (t *pgTx) CreatePurchase(ctx context.Context, purchase *domain.Purchase) error {
	itemsJSON, err := json.Marshal(purchase.Items)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO purchases (
			id, purchase_number, supplier, items, total_amount, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, purchase.ID, purchase.PurchaseNumber, nullString(purchase.Supplier), itemsJSON,
		purchase.TotalAmount, nullString(purchase.Notes), purchase.CreatedAt, purchase.UpdatedAt)
	return err
}

func (t *pgTx) PurchaseForUpdate(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, purchase_number, supplier, items, total_amount, notes, created_at, updated_at
		FROM purchases
		WHERE id = $1
		FOR UPDATE
	`, purchaseID)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, err
	}
	return p, nil
}

func (t *pgTx) UpdatePurchase(ctx context.Context, purchase *domain.Purchase) error {
	itemsJSON, err := json.Marshal(purchase.Items)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE purchases
		SET supplier = $2, items = $3, total_amount = $4, notes = $5, updated_at = now()
		WHERE id = $1
	`, purchase.ID, nullString(purchase.Supplier), itemsJSON, purchase.TotalAmount, nullString(purchase.Notes))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

func (t *pgTx) DebtForUpdate(ctx context.Context, debtID string) (*domain.Debt, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, transaction_id, customer_id, total_debt, paid_amount, remaining_debt, status, notes, created_at, updated_at
		FROM debts
		WHERE id = $1
		FOR UPDATE
	`, debtID)
	d, err := scanDebt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDebtNotFound
		}
		return nil, err
	}
	return d, nil
}

func (t *pgTx) DebtPaymentForUpdate(ctx context.Context, paymentID string) (*domain.DebtPayment, error) {
	var p domain.DebtPayment
	var notes sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, debt_id, amount, payment_method, notes, created_at
		FROM debt_payments
		WHERE id = $1
		FOR UPDATE
	`, paymentID).Scan(&p.ID, &p.DebtID, &p.Amount, &p.PaymentMethod, &notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	p.Notes = notes.String
	return &p, nil
}

func (t *pgTx) CreateDebtPayment(ctx context.Context, payment *domain.DebtPayment) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO debt_payments (id, debt_id, amount, payment_method, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.ID, payment.DebtID, payment.Amount, payment.PaymentMethod, nullString(payment.Notes), payment.CreatedAt)
	return err
}

func (t *pgTx) UpdateDebtPayment(ctx context.Context, payment *domain.DebtPayment) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE debt_payments
		SET amount = $2, payment_method = $3, notes = $4
		WHERE id = $1
	`, payment.ID, payment.Amount, payment.PaymentMethod, nullString(payment.Notes))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (t *pgTx) DeleteDebtPayment(ctx context.Context, paymentID string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM debt_payments WHERE id = $1`, paymentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (t *pgTx) SumDebtPayments(ctx context.Context, debtID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM debt_payments
		WHERE debt_id = $1
	`, debtID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (t *pgTx) SaveDebt(ctx context.Context, debt *domain.Debt) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE debts
		SET total_debt = $2, paid_amount = $3, remaining_debt = $4, status = $5, notes = $6, updated_at = now()
		WHERE id = $1
	`, debt.ID, debt.TotalDebt, debt.PaidAmount, debt.RemainingDebt, debt.Status, nullString(debt.Notes))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrDebtNotFound
	}
	return nil
}

// ---- catalog ----

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	now := time.Now()
	product.ID = xid.New("prod")
	if product.Status == "" {
		product.Status = domain.ProductActive
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, code, name, category, stock, min_stock, buy_price, sell_price, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.Code, product.Name, product.Category, product.Stock, product.MinStock,
		product.BuyPrice, product.SellPrice, product.Status, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	// Stock is deliberately not in the SET list: only the ledger moves it.
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET code = $2, name = $3, category = $4, min_stock = $5, buy_price = $6, sell_price = $7, status = $8, updated_at = now()
		WHERE id = $1
		RETURNING id, code, name, category, stock, min_stock, buy_price, sell_price, status, created_at, updated_at
	`, product.ID, product.Code, product.Name, product.Category, product.MinStock,
		product.BuyPrice, product.SellPrice, product.Status)
	var updated domain.Product
	err := row.Scan(&updated.ID, &updated.Code, &updated.Name, &updated.Category, &updated.Stock,
		&updated.MinStock, &updated.BuyPrice, &updated.SellPrice, &updated.Status, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	var referenced bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sales WHERE items @> $1::jsonb
			UNION ALL
			SELECT 1 FROM purchases WHERE items @> $1::jsonb
		)
	`, productRef(id)).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return domain.ErrProductInUse
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.productBy(ctx, `id`, id)
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	return s.productBy(ctx, `code`, code)
}

func (s *Store) productBy(ctx context.Context, column, value string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, category, stock, min_stock, buy_price, sell_price, status, created_at, updated_at
		FROM products
		WHERE `+column+` = $1
	`, value).Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.Stock, &p.MinStock, &p.BuyPrice, &p.SellPrice, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, code, name, category, stock, min_stock, buy_price, sell_price, status, created_at, updated_at
		FROM products
		ORDER BY name
	`)
}

func (s *Store) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, code, name, category, stock, min_stock, buy_price, sell_price, status, created_at, updated_at
		FROM products
		WHERE status = 'ACTIVE' AND stock <= min_stock
		ORDER BY stock
	`)
}

func (s *Store) queryProducts(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.Stock, &p.MinStock, &p.BuyPrice, &p.SellPrice, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// ---- customers ----

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.ID = xid.New("cust")
	customer.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, address, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.Name, nullString(customer.Phone), nullString(customer.Address), customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	var phone, address sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &phone, &address, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	c.Phone = phone.String
	c.Address = address.String
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		var phone, address sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &phone, &address, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		c.Address = address.String
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	var referenced bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sales WHERE customer_id = $1
			UNION ALL
			SELECT 1 FROM debts WHERE customer_id = $1
		)
	`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return domain.ErrCustomerInUse
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// ---- journal reads ----

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, customer_id, items, total_amount, payment_method,
		       payment_amount, change_amount, qris_data, notes, status, created_at
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := `
		SELECT id, invoice_number, customer_id, items, total_amount, payment_method,
		       payment_amount, change_amount, qris_data, notes, status, created_at
		FROM sales
		WHERE 1=1
	`
	args := []any{}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += ` AND created_at >= $` + argn(len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += ` AND created_at < $` + argn(len(args))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += ` AND customer_id = $` + argn(len(args))
	}
	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		query += ` AND payment_method = $` + argn(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, purchase_number, supplier, items, total_amount, notes, created_at, updated_at
		FROM purchases
		WHERE id = $1
	`, id)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	query := `
		SELECT id, purchase_number, supplier, items, total_amount, notes, created_at, updated_at
		FROM purchases
		WHERE 1=1
	`
	args := []any{}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += ` AND created_at >= $` + argn(len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += ` AND created_at < $` + argn(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

// ---- debt reads ----

func (s *Store) GetDebt(ctx context.Context, id string) (*domain.Debt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, transaction_id, customer_id, total_debt, paid_amount, remaining_debt, status, notes, created_at, updated_at
		FROM debts
		WHERE id = $1
	`, id)
	d, err := scanDebt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDebtNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *Store) ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.Debt, error) {
	query := `
		SELECT id, transaction_id, customer_id, total_debt, paid_amount, remaining_debt, status, notes, created_at, updated_at
		FROM debts
		WHERE 1=1
	`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + argn(len(args))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += ` AND customer_id = $` + argn(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	debts := make([]domain.Debt, 0, 32)
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return debts, nil
}

func (s *Store) ListDebtPayments(ctx context.Context, debtID string) ([]domain.DebtPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, debt_id, amount, payment_method, notes, created_at
		FROM debt_payments
		WHERE debt_id = $1
		ORDER BY created_at
	`, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.DebtPayment, 0, 8)
	for rows.Next() {
		var p domain.DebtPayment
		var notes sql.NullString
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.PaymentMethod, &notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Notes = notes.String
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// ---- audit ----

func (s *Store) AppendAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.Action, entry.EntityType, entry.EntityID, nullString(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var e domain.AuditLog
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Detail = detail.String
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID, qrisData, notes sql.NullString
	var paymentAmount, changeAmount decimal.NullDecimal
	var itemsJSON []byte
	err := row.Scan(&sale.ID, &sale.InvoiceNumber, &customerID, &itemsJSON, &sale.TotalAmount,
		&sale.PaymentMethod, &paymentAmount, &changeAmount, &qrisData, &notes, &sale.Status, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.QRISData = qrisData.String
	sale.Notes = notes.String
	if paymentAmount.Valid {
		sale.PaymentAmount = &paymentAmount.Decimal
	}
	if changeAmount.Valid {
		sale.ChangeAmount = &changeAmount.Decimal
	}
	return &sale, nil
}

func scanPurchase(row rowScanner) (*domain.Purchase, error) {
	var p domain.Purchase
	var supplier, notes sql.NullString
	var itemsJSON []byte
	err := row.Scan(&p.ID, &p.PurchaseNumber, &supplier, &itemsJSON, &p.TotalAmount, &notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &p.Items); err != nil {
		return nil, err
	}
	p.Supplier = supplier.String
	p.Notes = notes.String
	return &p, nil
}

func scanDebt(row rowScanner) (*domain.Debt, error) {
	var d domain.Debt
	var notes sql.NullString
	err := row.Scan(&d.ID, &d.TransactionID, &d.CustomerID, &d.TotalDebt, &d.PaidAmount,
		&d.RemainingDebt, &d.Status, &notes, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Notes = notes.String
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func productRef(id string) string {
	ref, _ := json.Marshal([]map[string]string{{"product_id": id}})
	return string(ref)
}

func argn(n int) string {
	return strconv.Itoa(n)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
