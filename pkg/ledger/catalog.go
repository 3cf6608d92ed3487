package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nfcsacco/saccoledger/pkg/models"
	"github.com/nfcsacco/saccoledger/pkg/store"
)

// Stock loan products. Seeding is insert-if-absent so admin edits to an
// existing product survive a reseed.
var defaultLoanTypes = []models.LoanType{
	{Name: "Major", AnnualRate: decimal.NewFromInt(10), DurationMonths: 24, Active: true},
	{Name: "Car", AnnualRate: decimal.NewFromInt(15), DurationMonths: 36, Active: true},
	{Name: "Electronics", AnnualRate: decimal.NewFromInt(10), DurationMonths: 18, Active: true},
	{Name: "Land", AnnualRate: decimal.NewFromInt(10), DurationMonths: 24, Active: true},
	{Name: "Essential Commodities", AnnualRate: decimal.NewFromInt(10), DurationMonths: 12, Active: true},
	{Name: "Education", AnnualRate: decimal.NewFromInt(10), DurationMonths: 6, Active: true},
	{Name: "Emergency", AnnualRate: decimal.NewFromInt(5), DurationMonths: 4, Active: true},
}

// RegisterDefaultLoanTypes seeds the stock products. It is idempotent and
// intended to run once at startup.
func (e *Engine) RegisterDefaultLoanTypes() error {
	for _, lt := range defaultLoanTypes {
		_, err := e.storage.GetLoanType(lt.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to check loan type %q: %w", lt.Name, err)
		}
		if err := e.storage.CreateLoanType(&lt); err != nil {
			return fmt.Errorf("failed to seed loan type %q: %w", lt.Name, err)
		}
	}
	return nil
}

// lookupActiveLoanType resolves a product by name. Missing and deactivated
// products are indistinguishable to the caller.
func (e *Engine) lookupActiveLoanType(name string) (*models.LoanType, error) {
	lt, err := e.storage.GetLoanType(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidLoanType
		}
		return nil, fmt.Errorf("failed to resolve loan type: %w", err)
	}
	if !lt.Active {
		return nil, ErrInvalidLoanType
	}
	return lt, nil
}

// ListLoanTypes returns the full catalog, active and inactive.
func (e *Engine) ListLoanTypes() ([]*models.LoanType, error) {
	return e.storage.ListLoanTypes()
}

// UpdateLoanType applies an admin edit to a catalog entry, matched by name.
// Deactivation goes through here too; products are never deleted.
func (e *Engine) UpdateLoanType(lt *models.LoanType) error {
	if lt.DurationMonths <= 0 {
		return &ValidationError{Field: "duration_months", Reason: "must be greater than zero"}
	}
	if lt.AnnualRate.IsNegative() {
		return &ValidationError{Field: "annual_rate", Reason: "must not be negative"}
	}
	return e.storage.UpdateLoanType(lt)
}
