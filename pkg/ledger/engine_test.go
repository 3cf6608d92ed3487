package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nfcsacco/saccoledger/pkg/models"
	"github.com/nfcsacco/saccoledger/pkg/store"
)

// MockStore is a simple in-memory implementation of the Storage interface
// for testing.
type MockStore struct {
	loanTypes     map[string]*models.LoanType
	loans         map[int64]*models.Loan
	schedule      []*models.ScheduleEntry
	ledger        []*models.LedgerEntry
	members       map[string]*models.Member
	stations      map[int64]*models.Station
	nextLoanID    int64
	nextSchedID   int64
	nextLedgerID  int64
	nextTypeID    int64
	nextStationID int64
}

func NewMockStore() *MockStore {
	return &MockStore{
		loanTypes: make(map[string]*models.LoanType),
		loans:     make(map[int64]*models.Loan),
		members:   make(map[string]*models.Member),
		stations:  make(map[int64]*models.Station),
	}
}

func (m *MockStore) CreateLoanType(lt *models.LoanType) error {
	m.nextTypeID++
	lt.ID = m.nextTypeID
	m.loanTypes[lt.Name] = lt
	return nil
}

func (m *MockStore) GetLoanType(name string) (*models.LoanType, error) {
	lt, ok := m.loanTypes[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return lt, nil
}

func (m *MockStore) UpdateLoanType(lt *models.LoanType) error {
	if _, ok := m.loanTypes[lt.Name]; !ok {
		return store.ErrNotFound
	}
	m.loanTypes[lt.Name] = lt
	return nil
}

func (m *MockStore) ListLoanTypes() ([]*models.LoanType, error) {
	types := []*models.LoanType{}
	for _, lt := range m.loanTypes {
		types = append(types, lt)
	}
	return types, nil
}

func (m *MockStore) CreateLoanWithSchedule(loan *models.Loan, entries []*models.ScheduleEntry) error {
	m.nextLoanID++
	loan.ID = m.nextLoanID
	m.loans[loan.ID] = loan
	for _, e := range entries {
		m.nextSchedID++
		e.ID = m.nextSchedID
		e.LoanID = loan.ID
		m.schedule = append(m.schedule, e)
	}
	return nil
}

func (m *MockStore) GetLoan(id int64) (*models.Loan, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return loan, nil
}

func (m *MockStore) UpdateLoan(loan *models.Loan) error {
	if _, ok := m.loans[loan.ID]; !ok {
		return store.ErrNotFound
	}
	m.loans[loan.ID] = loan
	return nil
}

func (m *MockStore) ListLoans() ([]*models.Loan, error) {
	loans := []*models.Loan{}
	for _, l := range m.loans {
		loans = append(loans, l)
	}
	return loans, nil
}

func (m *MockStore) ListLoansByMember(memberID string) ([]*models.Loan, error) {
	loans := []*models.Loan{}
	for _, l := range m.loans {
		if l.MemberID == memberID {
			loans = append(loans, l)
		}
	}
	return loans, nil
}

func (m *MockStore) GetScheduleEntry(id int64) (*models.ScheduleEntry, error) {
	for _, e := range m.schedule {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) ListSchedule(loanID int64) ([]*models.ScheduleEntry, error) {
	entries := []*models.ScheduleEntry{}
	for _, e := range m.schedule {
		if e.LoanID == loanID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MockStore) UpdateScheduleEntry(entry *models.ScheduleEntry) error {
	for i, e := range m.schedule {
		if e.ID == entry.ID {
			m.schedule[i] = entry
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *MockStore) AppendLedgerEntries(entries ...*models.LedgerEntry) error {
	for _, e := range entries {
		m.nextLedgerID++
		e.ID = m.nextLedgerID
		m.ledger = append(m.ledger, e)
	}
	return nil
}

func (m *MockStore) ListLedgerEntries() ([]*models.LedgerEntry, error) {
	return m.ledger, nil
}

func (m *MockStore) CreateMember(mb *models.Member) error {
	m.members[mb.ID] = mb
	return nil
}

func (m *MockStore) GetMember(id string) (*models.Member, error) {
	mb, ok := m.members[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return mb, nil
}

func (m *MockStore) UpdateMember(mb *models.Member) error {
	m.members[mb.ID] = mb
	return nil
}

func (m *MockStore) DeleteMember(id string) error {
	delete(m.members, id)
	return nil
}

func (m *MockStore) ListMembers() ([]*models.Member, error) {
	members := []*models.Member{}
	for _, mb := range m.members {
		members = append(members, mb)
	}
	return members, nil
}

func (m *MockStore) CreateStation(st *models.Station) error {
	m.nextStationID++
	st.ID = m.nextStationID
	m.stations[st.ID] = st
	return nil
}

func (m *MockStore) GetStation(id int64) (*models.Station, error) {
	st, ok := m.stations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return st, nil
}

func (m *MockStore) UpdateStation(st *models.Station) error {
	m.stations[st.ID] = st
	return nil
}

func (m *MockStore) DeleteStation(id int64) error {
	delete(m.stations, id)
	return nil
}

func (m *MockStore) ListStations() ([]*models.Station, error) {
	stations := []*models.Station{}
	for _, st := range m.stations {
		stations = append(stations, st)
	}
	return stations, nil
}

func (m *MockStore) Close() error {
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *MockStore) {
	t.Helper()
	mock := NewMockStore()
	e := NewEngine(mock)
	if err := e.RegisterDefaultLoanTypes(); err != nil {
		t.Fatalf("Failed to seed loan types: %v", err)
	}
	return e, mock
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

var testStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestCreateLoanFlat(t *testing.T) {
	e, mock := newTestEngine(t)

	// Essential Commodities: 10% p.a. over 12 months.
	loan, err := e.CreateLoan("NFC001", "Essential Commodities", decimal.NewFromInt(12000), testStart, models.MethodFlat)
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	if loan.ID == 0 {
		t.Error("Expected loan to be assigned an id")
	}
	if loan.ApprovalStatus != models.ApprovalPending {
		t.Errorf("Expected approval status Pending, got %s", loan.ApprovalStatus)
	}
	if !loan.TotalPayable.Equal(mustDecimal(t, "13200")) {
		t.Errorf("Expected total payable 13200, got %s", loan.TotalPayable)
	}

	entries, _ := mock.ListSchedule(loan.ID)
	if len(entries) != 12 {
		t.Fatalf("Expected 12 schedule entries, got %d", len(entries))
	}

	sumDue := decimal.Zero
	for i, entry := range entries {
		if !entry.Principal.Equal(mustDecimal(t, "1000")) {
			t.Errorf("Entry %d: expected principal 1000, got %s", i, entry.Principal)
		}
		if !entry.Interest.Equal(mustDecimal(t, "100")) {
			t.Errorf("Entry %d: expected interest 100, got %s", i, entry.Interest)
		}
		if !entry.AmountDue.Equal(mustDecimal(t, "1100")) {
			t.Errorf("Entry %d: expected amount due 1100, got %s", i, entry.AmountDue)
		}
		if entry.Status != models.PaymentPending {
			t.Errorf("Entry %d: expected status Pending, got %s", i, entry.Status)
		}
		wantDue := testStart.AddDate(0, 0, 30*(i+1))
		if !entry.DueDate.Equal(wantDue) {
			t.Errorf("Entry %d: expected due date %s, got %s", i, wantDue, entry.DueDate)
		}
		sumDue = sumDue.Add(entry.AmountDue)
	}
	if !sumDue.Equal(loan.TotalPayable) {
		t.Errorf("Schedule sums to %s, total payable is %s", sumDue, loan.TotalPayable)
	}
}

func TestCreateLoanReducing(t *testing.T) {
	e, mock := newTestEngine(t)

	// Emergency: 5% p.a. over 4 months. Monthly interest on the outstanding
	// principal: 5.00, 3.75, 2.50, 1.25.
	loan, err := e.CreateLoan("NFC001", "Emergency", decimal.NewFromInt(1200), testStart, models.MethodReduce)
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	if !loan.TotalPayable.Equal(mustDecimal(t, "1212.5")) {
		t.Errorf("Expected total payable 1212.5, got %s", loan.TotalPayable)
	}

	entries, _ := mock.ListSchedule(loan.ID)
	if len(entries) != 4 {
		t.Fatalf("Expected 4 schedule entries, got %d", len(entries))
	}

	wantInterest := []string{"5", "3.75", "2.5", "1.25"}
	sumPrincipal := decimal.Zero
	sumDue := decimal.Zero
	for i, entry := range entries {
		if !entry.Interest.Equal(mustDecimal(t, wantInterest[i])) {
			t.Errorf("Entry %d: expected interest %s, got %s", i, wantInterest[i], entry.Interest)
		}
		if !entry.AmountDue.Equal(entry.Principal.Add(entry.Interest)) {
			t.Errorf("Entry %d: amount due %s is not principal+interest", i, entry.AmountDue)
		}
		sumPrincipal = sumPrincipal.Add(entry.Principal)
		sumDue = sumDue.Add(entry.AmountDue)
	}
	if !sumPrincipal.Equal(mustDecimal(t, "1200")) {
		t.Errorf("Expected schedule principal to sum to 1200, got %s", sumPrincipal)
	}
	if !sumDue.Equal(loan.TotalPayable) {
		t.Errorf("Schedule sums to %s, total payable is %s", sumDue, loan.TotalPayable)
	}
}

func TestCreateLoanInvalidType(t *testing.T) {
	e, mock := newTestEngine(t)

	if _, err := e.CreateLoan("NFC001", "Yacht", decimal.NewFromInt(1000), testStart, models.MethodFlat); !errors.Is(err, ErrInvalidLoanType) {
		t.Errorf("Expected ErrInvalidLoanType for unknown product, got %v", err)
	}

	// Deactivated products fail identically.
	car := mock.loanTypes["Car"]
	car.Active = false
	if _, err := e.CreateLoan("NFC001", "Car", decimal.NewFromInt(1000), testStart, models.MethodFlat); !errors.Is(err, ErrInvalidLoanType) {
		t.Errorf("Expected ErrInvalidLoanType for inactive product, got %v", err)
	}

	if len(mock.loans) != 0 || len(mock.schedule) != 0 {
		t.Error("No loan or schedule should be created on failure")
	}
}

func TestCreateLoanValidation(t *testing.T) {
	e, _ := newTestEngine(t)

	var validation *ValidationError
	_, err := e.CreateLoan("NFC001", "Major", decimal.Zero, testStart, models.MethodFlat)
	if !errors.As(err, &validation) {
		t.Fatalf("Expected ValidationError for zero principal, got %v", err)
	}

	_, err = e.CreateLoan("NFC001", "Major", decimal.NewFromInt(1000), testStart, "Balloon")
	if !errors.As(err, &validation) {
		t.Fatalf("Expected ValidationError for unknown method, got %v", err)
	}
}

func TestRegisterDefaultsIdempotent(t *testing.T) {
	e, mock := newTestEngine(t)

	// Admin edit must survive a reseed.
	edited := mock.loanTypes["Education"]
	edited.AnnualRate = decimal.NewFromInt(12)
	if err := e.RegisterDefaultLoanTypes(); err != nil {
		t.Fatalf("Reseed failed: %v", err)
	}

	if len(mock.loanTypes) != 7 {
		t.Errorf("Expected 7 loan types after reseed, got %d", len(mock.loanTypes))
	}
	if !mock.loanTypes["Education"].AnnualRate.Equal(decimal.NewFromInt(12)) {
		t.Error("Reseeding overwrote an admin-edited product")
	}
}

func TestApprovalFlow(t *testing.T) {
	e, _ := newTestEngine(t)
	loan, err := e.CreateLoan("NFC001", "Major", decimal.NewFromInt(5000), testStart, models.MethodFlat)
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	all := models.Permissions{Approve: true, Disburse: true}

	// Missing capability: failure, no state change.
	if err := e.Approve(loan.ID, models.Permissions{}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
	if got, _ := e.GetLoan(loan.ID); got.ApprovalStatus != models.ApprovalPending {
		t.Errorf("Denied approval changed status to %s", got.ApprovalStatus)
	}

	// Disbursement requires prior approval.
	if err := e.Disburse(loan.ID, all); !errors.Is(err, ErrNotApproved) {
		t.Errorf("Expected ErrNotApproved, got %v", err)
	}

	if err := e.Approve(loan.ID, all); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	// Re-approval is a no-op.
	if err := e.Approve(loan.ID, all); err != nil {
		t.Errorf("Re-approval should be a no-op, got %v", err)
	}

	if err := e.Disburse(loan.ID, models.Permissions{Approve: true}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied for disburse, got %v", err)
	}
	if err := e.Disburse(loan.ID, all); err != nil {
		t.Fatalf("Disburse failed: %v", err)
	}

	got, _ := e.GetLoan(loan.ID)
	if got.ApprovalStatus != models.ApprovalDisbursed {
		t.Errorf("Expected status Disbursed, got %s", got.ApprovalStatus)
	}
	if got.DisbursementDate == nil {
		t.Fatal("Expected disbursement date to be set")
	}
	disbursedAt := *got.DisbursementDate

	// Re-disbursement is a no-op and keeps the original date.
	if err := e.Disburse(loan.ID, all); err != nil {
		t.Errorf("Re-disbursement should be a no-op, got %v", err)
	}
	got, _ = e.GetLoan(loan.ID)
	if !got.DisbursementDate.Equal(disbursedAt) {
		t.Error("Re-disbursement changed the disbursement date")
	}

	// The status never regresses.
	if err := e.Approve(loan.ID, all); !errors.Is(err, ErrAlreadyDisbursed) {
		t.Errorf("Expected ErrAlreadyDisbursed, got %v", err)
	}
}

func TestRecordPayment(t *testing.T) {
	e, mock := newTestEngine(t)
	loan, err := e.CreateLoan("NFC001", "Essential Commodities", decimal.NewFromInt(12000), testStart, models.MethodFlat)
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	entries, _ := mock.ListSchedule(loan.ID)

	entry, err := e.RecordPayment(entries[0].ID, mustDecimal(t, "1100"))
	if err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}
	if entry.Status != models.PaymentPaid {
		t.Errorf("Expected status Paid, got %s", entry.Status)
	}

	if len(mock.ledger) != 2 {
		t.Fatalf("Expected 2 ledger entries, got %d", len(mock.ledger))
	}
	debit, credit := mock.ledger[0], mock.ledger[1]
	if debit.Account != "Cash" || !debit.Debit.Equal(mustDecimal(t, "1100")) || !debit.Credit.IsZero() {
		t.Errorf("Unexpected debit entry: %+v", debit)
	}
	if credit.Account != "Loan Receivable" || !credit.Credit.Equal(mustDecimal(t, "1100")) || !credit.Debit.IsZero() {
		t.Errorf("Unexpected credit entry: %+v", credit)
	}
	if debit.Description != credit.Description {
		t.Error("Balanced pair should share one description")
	}
	if !debit.Debit.Equal(credit.Credit) {
		t.Error("Debits must equal credits for one posting")
	}

	// Partial payment.
	entry, err = e.RecordPayment(entries[1].ID, mustDecimal(t, "400"))
	if err != nil {
		t.Fatalf("Failed to record partial payment: %v", err)
	}
	if entry.Status != models.PaymentPartial {
		t.Errorf("Expected status Partial, got %s", entry.Status)
	}
	if !entry.AmountPaid.Equal(mustDecimal(t, "400")) {
		t.Errorf("Expected amount paid 400, got %s", entry.AmountPaid)
	}

	// Overpayment is allowed and stays Paid.
	entry, err = e.RecordPayment(entries[1].ID, mustDecimal(t, "900"))
	if err != nil {
		t.Fatalf("Failed to record overpayment: %v", err)
	}
	if entry.Status != models.PaymentPaid {
		t.Errorf("Expected status Paid after overpayment, got %s", entry.Status)
	}

	var validation *ValidationError
	if _, err := e.RecordPayment(entries[2].ID, decimal.Zero); !errors.As(err, &validation) {
		t.Errorf("Expected ValidationError for zero amount, got %v", err)
	}
	if _, err := e.RecordPayment(99999, mustDecimal(t, "100")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown schedule entry, got %v", err)
	}
}

func TestLoanBalance(t *testing.T) {
	e, mock := newTestEngine(t)
	loan, err := e.CreateLoan("NFC001", "Essential Commodities", decimal.NewFromInt(12000), testStart, models.MethodFlat)
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	// Two installments (day 30 and day 60) are past due on day 65.
	e.now = func() time.Time { return testStart.AddDate(0, 0, 65) }

	balance, err := e.LoanBalance(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get balance: %v", err)
	}
	if !balance.Outstanding.Equal(mustDecimal(t, "13200")) {
		t.Errorf("Expected outstanding 13200, got %s", balance.Outstanding)
	}
	if !balance.Arrears.Equal(mustDecimal(t, "2200")) {
		t.Errorf("Expected arrears 2200, got %s", balance.Arrears)
	}

	// Idempotent with no intervening payments.
	again, _ := e.LoanBalance(loan.ID)
	if !again.Outstanding.Equal(balance.Outstanding) || !again.Arrears.Equal(balance.Arrears) {
		t.Error("Repeated balance query returned different results")
	}

	// Paying the first installment clears its share of the arrears.
	entries, _ := mock.ListSchedule(loan.ID)
	if _, err := e.RecordPayment(entries[0].ID, mustDecimal(t, "1100")); err != nil {
		t.Fatalf("Failed to record payment: %v", err)
	}
	balance, _ = e.LoanBalance(loan.ID)
	if !balance.Outstanding.Equal(mustDecimal(t, "12100")) {
		t.Errorf("Expected outstanding 12100, got %s", balance.Outstanding)
	}
	if !balance.Arrears.Equal(mustDecimal(t, "1100")) {
		t.Errorf("Expected arrears 1100, got %s", balance.Arrears)
	}

	if _, err := e.LoanBalance(99999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown loan, got %v", err)
	}
}
