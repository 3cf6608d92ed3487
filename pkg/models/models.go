package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestMethod selects how interest is charged over the loan term.
type InterestMethod string

const (
	MethodFlat   InterestMethod = "Flat"   // single charge on full principal over full term
	MethodReduce InterestMethod = "Reduce" // monthly charge on remaining principal
)

// ApprovalStatus advances monotonically Pending -> Approved -> Disbursed.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "Pending"
	ApprovalApproved  ApprovalStatus = "Approved"
	ApprovalDisbursed ApprovalStatus = "Disbursed"
)

// PaymentStatus is derived from AmountPaid vs AmountDue, never stored
// independently of them.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPartial PaymentStatus = "Partial"
	PaymentPaid    PaymentStatus = "Paid"
)

// PaymentStatusFor derives a schedule entry's status from its amounts.
func PaymentStatusFor(amountPaid, amountDue decimal.Decimal) PaymentStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(amountDue):
		return PaymentPaid
	case amountPaid.GreaterThan(decimal.Zero):
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// LoanType is an admin-configurable loan product. Products are deactivated,
// never deleted, so historical loans keep a valid reference.
type LoanType struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	AnnualRate     decimal.Decimal `json:"annual_rate"` // percent, e.g. 10 for 10% p.a.
	DurationMonths int             `json:"duration_months"`
	Active         bool            `json:"active"`
}

type Loan struct {
	ID               int64           `json:"id"`
	MemberID         string          `json:"member_id"`
	LoanTypeName     string          `json:"loan_type"`
	Principal        decimal.Decimal `json:"principal"`
	AnnualRate       decimal.Decimal `json:"annual_rate"` // percent, copied from the product at creation
	DurationMonths   int             `json:"duration_months"`
	StartDate        time.Time       `json:"start_date"`
	TotalPayable     decimal.Decimal `json:"total_payable"` // fixed at creation, never reflects payments
	ApprovalStatus   ApprovalStatus  `json:"approval_status"`
	DisbursementDate *time.Time      `json:"disbursement_date,omitempty"`
	Method           InterestMethod  `json:"method"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ScheduleEntry is one installment of a loan's repayment schedule. The full
// set for a loan is created together with the loan and never regenerated.
type ScheduleEntry struct {
	ID         int64           `json:"id"`
	LoanID     int64           `json:"loan_id"`
	DueDate    time.Time       `json:"due_date"`
	Principal  decimal.Decimal `json:"principal"`
	Interest   decimal.Decimal `json:"interest"`
	AmountDue  decimal.Decimal `json:"amount_due"` // Principal + Interest
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Status     PaymentStatus   `json:"status"`
}

// LedgerEntry is one side of a double-entry posting. Entries are append-only;
// a financial event always produces a balanced set (sum of debits equals sum
// of credits).
type LedgerEntry struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	Account     string          `json:"account"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// Permissions are the capability flags the presentation layer resolves for
// the acting user and passes through on gated operations.
type Permissions struct {
	Approve  bool `json:"approve"`
	Disburse bool `json:"disburse"`
}

type Member struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	MiddleName string    `json:"middle_name,omitempty"`
	LastName   string    `json:"last_name"`
	Gender     string    `json:"gender,omitempty"`
	DateJoined time.Time `json:"date_joined"`
	StationID  string    `json:"station_id,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
}

type Station struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}
