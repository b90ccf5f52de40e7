package domain

import "errors"

// Failure kinds surfaced by the ledger engine. The HTTP layer maps these to
// status codes; the engine itself never retries or clamps past a failed
// invariant check.
var (
	// Validation: rejected before any state is touched.
	ErrInvalidInput = errors.New("invalid input")

	// Not-found: referenced entity absent.
	ErrProductNotFound     = errors.New("product not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrDebtNotFound        = errors.New("debt not found")
	ErrPaymentNotFound     = errors.New("payment not found")

	// Conflict / invariant: rejected after a consistency check, nothing mutated.
	ErrProductInactive        = errors.New("product is not available for sale")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrPaymentTooLow          = errors.New("payment amount is less than total")
	ErrDebtAlreadyPaid        = errors.New("debt already fully paid")
	ErrAmountExceedsRemaining = errors.New("payment amount exceeds remaining debt")
	ErrAmountExceedsTotal     = errors.New("payment amount exceeds total debt")
	ErrDuplicateCode          = errors.New("product code already exists")

	// Referential integrity: rejected, never cascaded.
	ErrProductInUse  = errors.New("product is referenced by journal entries")
	ErrCustomerInUse = errors.New("customer has transactions or debts")
)
