package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nfcsacco/saccoledger/pkg/models"
	"github.com/nfcsacco/saccoledger/pkg/store"
)

// General-ledger account names used for loan repayment postings.
const (
	accountCash           = "Cash"
	accountLoanReceivable = "Loan Receivable"
)

// Engine implements the loan lifecycle: creation with amortization,
// approval/disbursement, payment posting with double-entry ledger records,
// and balance/arrears queries. It performs no logging and no retries; every
// operation is a single attempt reported to the caller as a typed failure.
type Engine struct {
	storage store.Storage
	now     func() time.Time // injectable clock for arrears tests
}

// NewEngine creates an Engine over the given Storage implementation.
func NewEngine(s store.Storage) *Engine {
	return &Engine{
		storage: s,
		now:     time.Now,
	}
}

// CreateLoan opens a loan against an active catalog product. The total
// payable is fixed here and never changes afterwards; the repayment schedule
// is persisted atomically with the loan.
func (e *Engine) CreateLoan(memberID, loanTypeName string, principal decimal.Decimal, startDate time.Time, method models.InterestMethod) (*models.Loan, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, &ValidationError{Field: "principal", Reason: "must be greater than zero"}
	}
	if method == "" {
		method = models.MethodFlat
	}
	if method != models.MethodFlat && method != models.MethodReduce {
		return nil, &ValidationError{Field: "method", Reason: "must be Flat or Reduce"}
	}

	product, err := e.lookupActiveLoanType(loanTypeName)
	if err != nil {
		return nil, err
	}

	interest := totalInterest(principal, product.AnnualRate, product.DurationMonths, method)
	now := e.now()

	loan := &models.Loan{
		MemberID:       memberID,
		LoanTypeName:   product.Name,
		Principal:      principal,
		AnnualRate:     product.AnnualRate,
		DurationMonths: product.DurationMonths,
		StartDate:      startDate,
		TotalPayable:   principal.Add(interest).Round(2),
		ApprovalStatus: models.ApprovalPending,
		Method:         method,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	entries := buildSchedule(principal, product.AnnualRate, product.DurationMonths, startDate, method)

	if err := e.storage.CreateLoanWithSchedule(loan, entries); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

// Approve advances a pending loan to Approved. Re-approving an approved loan
// is a no-op; a disbursed loan can no longer be approved.
func (e *Engine) Approve(loanID int64, perms models.Permissions) error {
	if !perms.Approve {
		return ErrPermissionDenied
	}

	loan, err := e.storage.GetLoan(loanID)
	if err != nil {
		return err
	}

	switch loan.ApprovalStatus {
	case models.ApprovalApproved:
		return nil
	case models.ApprovalDisbursed:
		return ErrAlreadyDisbursed
	}

	loan.ApprovalStatus = models.ApprovalApproved
	loan.UpdatedAt = e.now()
	if err := e.storage.UpdateLoan(loan); err != nil {
		return fmt.Errorf("failed to approve loan: %w", err)
	}
	return nil
}

// Disburse advances an approved loan to Disbursed and records the
// disbursement date. Disbursing a pending loan fails; disbursing an already
// disbursed loan is a no-op and keeps the original date.
func (e *Engine) Disburse(loanID int64, perms models.Permissions) error {
	if !perms.Disburse {
		return ErrPermissionDenied
	}

	loan, err := e.storage.GetLoan(loanID)
	if err != nil {
		return err
	}

	switch loan.ApprovalStatus {
	case models.ApprovalDisbursed:
		return nil
	case models.ApprovalPending:
		return ErrNotApproved
	}

	now := e.now()
	loan.ApprovalStatus = models.ApprovalDisbursed
	loan.DisbursementDate = &now
	loan.UpdatedAt = now
	if err := e.storage.UpdateLoan(loan); err != nil {
		return fmt.Errorf("failed to disburse loan: %w", err)
	}
	return nil
}

// RecordPayment posts a payment against one schedule entry and appends the
// balanced ledger pair (debit Cash, credit Loan Receivable). Overpayment is
// allowed; the entry simply stays Paid.
func (e *Engine) RecordPayment(scheduleID int64, amount decimal.Decimal) (*models.ScheduleEntry, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	entry, err := e.storage.GetScheduleEntry(scheduleID)
	if err != nil {
		return nil, err
	}

	entry.AmountPaid = entry.AmountPaid.Add(amount)
	entry.Status = models.PaymentStatusFor(entry.AmountPaid, entry.AmountDue)
	if err := e.storage.UpdateScheduleEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to update schedule entry: %w", err)
	}

	date := e.now()
	description := fmt.Sprintf("Loan repayment schedule %d receipt %s", scheduleID, uuid.New())
	err = e.storage.AppendLedgerEntries(
		&models.LedgerEntry{
			Date:        date,
			Account:     accountCash,
			Debit:       amount,
			Credit:      decimal.Zero,
			Description: description,
		},
		&models.LedgerEntry{
			Date:        date,
			Account:     accountLoanReceivable,
			Debit:       decimal.Zero,
			Credit:      amount,
			Description: description,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to post ledger entries: %w", err)
	}

	return entry, nil
}

// Balance is the result of a balance/arrears query. Outstanding covers every
// installment regardless of due date; Arrears only the shortfall on entries
// already past due.
type Balance struct {
	Outstanding decimal.Decimal `json:"outstanding"`
	Arrears     decimal.Decimal `json:"arrears"`
}

// LoanBalance recomputes the outstanding balance and arrears from the
// current schedule. It has no side effects and no caching.
func (e *Engine) LoanBalance(loanID int64) (*Balance, error) {
	if _, err := e.storage.GetLoan(loanID); err != nil {
		return nil, err
	}

	entries, err := e.storage.ListSchedule(loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	today := dateOf(e.now())
	balance := &Balance{Outstanding: decimal.Zero, Arrears: decimal.Zero}
	for _, entry := range entries {
		shortfall := entry.AmountDue.Sub(entry.AmountPaid)
		balance.Outstanding = balance.Outstanding.Add(shortfall)
		if dateOf(entry.DueDate).Before(today) && entry.AmountPaid.LessThan(entry.AmountDue) {
			balance.Arrears = balance.Arrears.Add(shortfall)
		}
	}
	return balance, nil
}

// Schedule returns a loan's installments ordered by due date.
func (e *Engine) Schedule(loanID int64) ([]*models.ScheduleEntry, error) {
	if _, err := e.storage.GetLoan(loanID); err != nil {
		return nil, err
	}
	return e.storage.ListSchedule(loanID)
}

// GetLoan retrieves a loan by id.
func (e *Engine) GetLoan(id int64) (*models.Loan, error) {
	return e.storage.GetLoan(id)
}

// ListLoans retrieves all loans.
func (e *Engine) ListLoans() ([]*models.Loan, error) {
	return e.storage.ListLoans()
}

// LoansByMember retrieves a member's loans.
func (e *Engine) LoansByMember(memberID string) ([]*models.Loan, error) {
	return e.storage.ListLoansByMember(memberID)
}

// LedgerEntries returns the full general ledger in posting order.
func (e *Engine) LedgerEntries() ([]*models.LedgerEntry, error) {
	return e.storage.ListLedgerEntries()
}

// dateOf truncates a timestamp to its calendar date. Arrears comparisons are
// at date granularity: an installment is past due strictly after its due date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
