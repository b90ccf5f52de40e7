package ledger

import (
	"context"
	"fmt"
	"strings"

	"warungpos/internal/domain"
)

// Catalog management. Stock never moves through these operations; the ledger
// owns stock exclusively.

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "product.created", "product", created.ID, created.Code)
	s.invalidateReports(ctx)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		return nil, fmt.Errorf("%w: product id required", domain.ErrInvalidInput)
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "product.updated", "product", updated.ID, updated.Code)
	s.invalidateReports(ctx)
	return updated, nil
}

// DeleteProduct refuses to remove a product referenced by any journal entry;
// deactivate it instead.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, "product.deleted", "product", id, "")
	s.invalidateReports(ctx)
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	return s.repo.GetProductByCode(ctx, code)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name required", domain.ErrInvalidInput)
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "customer.created", "customer", created.ID, created.Name)
	return created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// DeleteCustomer refuses to remove a customer with sales or debts on record.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, "customer.deleted", "customer", id, "")
	return nil
}

func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Code) == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product code and name required", domain.ErrInvalidInput)
	}
	if p.Stock < 0 || p.MinStock < 0 {
		return fmt.Errorf("%w: stock levels cannot be negative", domain.ErrInvalidInput)
	}
	if p.BuyPrice.IsNegative() || !p.SellPrice.IsPositive() {
		return fmt.Errorf("%w: sell price must be positive", domain.ErrInvalidInput)
	}
	switch p.Status {
	case "", domain.ProductActive, domain.ProductInactive:
	default:
		return fmt.Errorf("%w: unknown product status %q", domain.ErrInvalidInput, p.Status)
	}
	return nil
}
