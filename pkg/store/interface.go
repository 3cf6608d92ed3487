package store

import (
	"errors"

	"github.com/nfcsacco/saccoledger/pkg/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines the persistence operations the engine and registries
// depend on. Implementations own connection management and transaction
// commit/rollback; callers only see whole operations succeed or fail.
type Storage interface {
	// Loan products.
	CreateLoanType(lt *models.LoanType) error
	GetLoanType(name string) (*models.LoanType, error)
	UpdateLoanType(lt *models.LoanType) error
	ListLoanTypes() ([]*models.LoanType, error)

	// Loans. CreateLoanWithSchedule persists the loan and its full schedule
	// atomically: on any failure neither is visible.
	CreateLoanWithSchedule(loan *models.Loan, entries []*models.ScheduleEntry) error
	GetLoan(id int64) (*models.Loan, error)
	UpdateLoan(loan *models.Loan) error
	ListLoans() ([]*models.Loan, error)
	ListLoansByMember(memberID string) ([]*models.Loan, error)

	// Repayment schedule.
	GetScheduleEntry(id int64) (*models.ScheduleEntry, error)
	ListSchedule(loanID int64) ([]*models.ScheduleEntry, error)
	UpdateScheduleEntry(entry *models.ScheduleEntry) error

	// General ledger. AppendLedgerEntries writes all entries atomically so a
	// balanced posting can never be half-recorded.
	AppendLedgerEntries(entries ...*models.LedgerEntry) error
	ListLedgerEntries() ([]*models.LedgerEntry, error)

	// Member registry.
	CreateMember(m *models.Member) error
	GetMember(id string) (*models.Member, error)
	UpdateMember(m *models.Member) error
	DeleteMember(id string) error
	ListMembers() ([]*models.Member, error)

	// Station registry.
	CreateStation(s *models.Station) error
	GetStation(id int64) (*models.Station, error)
	UpdateStation(s *models.Station) error
	DeleteStation(id int64) error
	ListStations() ([]*models.Station, error)

	Close() error
}
