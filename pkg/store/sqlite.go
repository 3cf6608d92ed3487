package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nfcsacco/saccoledger/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Storage over a single embedded SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteStore opens (or creates) the database file and initializes the schema.
func NewSQLiteStore(dataSourceName string, log *logrus.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logrus.New()
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.WithField("path", dataSourceName).Info("database opened and schema initialized")
	return s, nil
}

// initSchema creates the tables if they don't already exist.
// Decimal fields are stored as TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loan_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		annual_rate TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		member_id TEXT NOT NULL,
		loan_type TEXT NOT NULL,
		principal TEXT NOT NULL,
		annual_rate TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		start_date DATETIME NOT NULL,
		total_payable TEXT NOT NULL,
		approval_status TEXT NOT NULL DEFAULT 'Pending',
		disbursement_date DATETIME,
		method TEXT NOT NULL DEFAULT 'Flat',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loan_schedule (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id INTEGER NOT NULL,
		due_date DATETIME NOT NULL,
		principal TEXT NOT NULL,
		interest TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'Pending',
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date DATETIME NOT NULL,
		account TEXT NOT NULL,
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		description TEXT
	);
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		middle_name TEXT,
		last_name TEXT NOT NULL,
		gender TEXT,
		date_joined DATETIME,
		station_id TEXT,
		phone TEXT,
		email TEXT
	);
	CREATE TABLE IF NOT EXISTS stations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		location TEXT,
		description TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---- loan products ----

func (s *SQLiteStore) CreateLoanType(lt *models.LoanType) error {
	res, err := s.db.Exec(
		`INSERT INTO loan_types (name, annual_rate, duration_months, active) VALUES (?, ?, ?, ?)`,
		lt.Name, lt.AnnualRate, lt.DurationMonths, lt.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan type: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read loan type id: %w", err)
	}
	lt.ID = id
	return nil
}

func (s *SQLiteStore) GetLoanType(name string) (*models.LoanType, error) {
	var lt models.LoanType
	row := s.db.QueryRow(`SELECT id, name, annual_rate, duration_months, active FROM loan_types WHERE name = ?`, name)
	err := row.Scan(&lt.ID, &lt.Name, &lt.AnnualRate, &lt.DurationMonths, &lt.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan type: %w", err)
	}
	return &lt, nil
}

func (s *SQLiteStore) UpdateLoanType(lt *models.LoanType) error {
	res, err := s.db.Exec(
		`UPDATE loan_types SET annual_rate = ?, duration_months = ?, active = ? WHERE name = ?`,
		lt.AnnualRate, lt.DurationMonths, lt.Active, lt.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan type: %w", err)
	}
	return requireRows(res)
}

func (s *SQLiteStore) ListLoanTypes() ([]*models.LoanType, error) {
	rows, err := s.db.Query(`SELECT id, name, annual_rate, duration_months, active FROM loan_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan types: %w", err)
	}
	defer rows.Close()

	var types []*models.LoanType
	for rows.Next() {
		var lt models.LoanType
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.AnnualRate, &lt.DurationMonths, &lt.Active); err != nil {
			return nil, fmt.Errorf("failed to scan loan type row: %w", err)
		}
		types = append(types, &lt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return types, nil
}

// ---- loans ----

// CreateLoanWithSchedule inserts the loan and its full repayment schedule in
// one transaction. A loan is never visible without its schedule.
func (s *SQLiteStore) CreateLoanWithSchedule(loan *models.Loan, entries []*models.ScheduleEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO loans (member_id, loan_type, principal, annual_rate, duration_months, start_date, total_payable, approval_status, disbursement_date, method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.MemberID, loan.LoanTypeName, loan.Principal, loan.AnnualRate, loan.DurationMonths,
		loan.StartDate, loan.TotalPayable, loan.ApprovalStatus, loan.DisbursementDate, loan.Method,
		loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	loanID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read loan id: %w", err)
	}
	loan.ID = loanID

	for _, e := range entries {
		e.LoanID = loanID
		res, err := tx.Exec(
			`INSERT INTO loan_schedule (loan_id, due_date, principal, interest, amount_due, amount_paid, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.LoanID, e.DueDate, e.Principal, e.Interest, e.AmountDue, e.AmountPaid, e.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to create schedule entry: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read schedule entry id: %w", err)
		}
		e.ID = id
	}

	return tx.Commit()
}

const loanColumns = `id, member_id, loan_type, principal, annual_rate, duration_months, start_date, total_payable, approval_status, disbursement_date, method, created_at, updated_at`

func (s *SQLiteStore) GetLoan(id int64) (*models.Loan, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (s *SQLiteStore) UpdateLoan(loan *models.Loan) error {
	res, err := s.db.Exec(
		`UPDATE loans SET member_id = ?, loan_type = ?, principal = ?, annual_rate = ?, duration_months = ?, start_date = ?, total_payable = ?, approval_status = ?, disbursement_date = ?, method = ?, updated_at = ? WHERE id = ?`,
		loan.MemberID, loan.LoanTypeName, loan.Principal, loan.AnnualRate, loan.DurationMonths,
		loan.StartDate, loan.TotalPayable, loan.ApprovalStatus, loan.DisbursementDate, loan.Method,
		loan.UpdatedAt, loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return requireRows(res)
}

func (s *SQLiteStore) ListLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT ` + loanColumns + ` FROM loans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

func (s *SQLiteStore) ListLoansByMember(memberID string) ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE member_id = ? ORDER BY id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for member %s: %w", memberID, err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var disbursed sql.NullTime
	err := row.Scan(
		&loan.ID, &loan.MemberID, &loan.LoanTypeName, &loan.Principal, &loan.AnnualRate,
		&loan.DurationMonths, &loan.StartDate, &loan.TotalPayable, &loan.ApprovalStatus,
		&disbursed, &loan.Method, &loan.CreatedAt, &loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if disbursed.Valid {
		loan.DisbursementDate = &disbursed.Time
	}
	return &loan, nil
}

func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// ---- repayment schedule ----

func (s *SQLiteStore) GetScheduleEntry(id int64) (*models.ScheduleEntry, error) {
	var e models.ScheduleEntry
	row := s.db.QueryRow(`SELECT id, loan_id, due_date, principal, interest, amount_due, amount_paid, status FROM loan_schedule WHERE id = ?`, id)
	err := row.Scan(&e.ID, &e.LoanID, &e.DueDate, &e.Principal, &e.Interest, &e.AmountDue, &e.AmountPaid, &e.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schedule entry: %w", err)
	}
	return &e, nil
}

func (s *SQLiteStore) ListSchedule(loanID int64) ([]*models.ScheduleEntry, error) {
	rows, err := s.db.Query(`SELECT id, loan_id, due_date, principal, interest, amount_due, amount_paid, status FROM loan_schedule WHERE loan_id = ? ORDER BY due_date ASC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule for loan %d: %w", loanID, err)
	}
	defer rows.Close()

	var entries []*models.ScheduleEntry
	for rows.Next() {
		var e models.ScheduleEntry
		if err := rows.Scan(&e.ID, &e.LoanID, &e.DueDate, &e.Principal, &e.Interest, &e.AmountDue, &e.AmountPaid, &e.Status); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) UpdateScheduleEntry(entry *models.ScheduleEntry) error {
	res, err := s.db.Exec(
		`UPDATE loan_schedule SET due_date = ?, principal = ?, interest = ?, amount_due = ?, amount_paid = ?, status = ? WHERE id = ?`,
		entry.DueDate, entry.Principal, entry.Interest, entry.AmountDue, entry.AmountPaid, entry.Status, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule entry: %w", err)
	}
	return requireRows(res)
}

// ---- general ledger ----

// AppendLedgerEntries writes all entries in one transaction so a balanced
// posting is recorded whole or not at all.
func (s *SQLiteStore) AppendLedgerEntries(entries ...*models.LedgerEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		res, err := tx.Exec(
			`INSERT INTO ledger_entries (date, account, debit, credit, description) VALUES (?, ?, ?, ?, ?)`,
			e.Date, e.Account, e.Debit, e.Credit, e.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read ledger entry id: %w", err)
		}
		e.ID = id
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListLedgerEntries() ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(`SELECT id, date, account, debit, credit, description FROM ledger_entries ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var date time.Time
		if err := rows.Scan(&e.ID, &date, &e.Account, &e.Debit, &e.Credit, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		e.Date = date
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return entries, nil
}

// ---- members ----

func (s *SQLiteStore) CreateMember(m *models.Member) error {
	_, err := s.db.Exec(
		`INSERT INTO members (id, first_name, middle_name, last_name, gender, date_joined, station_id, phone, email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.FirstName, m.MiddleName, m.LastName, m.Gender, m.DateJoined, m.StationID, m.Phone, m.Email,
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMember(id string) (*models.Member, error) {
	var m models.Member
	row := s.db.QueryRow(`SELECT id, first_name, middle_name, last_name, gender, date_joined, station_id, phone, email FROM members WHERE id = ?`, id)
	err := row.Scan(&m.ID, &m.FirstName, &m.MiddleName, &m.LastName, &m.Gender, &m.DateJoined, &m.StationID, &m.Phone, &m.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

func (s *SQLiteStore) UpdateMember(m *models.Member) error {
	res, err := s.db.Exec(
		`UPDATE members SET first_name = ?, middle_name = ?, last_name = ?, gender = ?, date_joined = ?, station_id = ?, phone = ?, email = ? WHERE id = ?`,
		m.FirstName, m.MiddleName, m.LastName, m.Gender, m.DateJoined, m.StationID, m.Phone, m.Email, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return requireRows(res)
}

func (s *SQLiteStore) DeleteMember(id string) error {
	res, err := s.db.Exec(`DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return requireRows(res)
}

func (s *SQLiteStore) ListMembers() ([]*models.Member, error) {
	rows, err := s.db.Query(`SELECT id, first_name, middle_name, last_name, gender, date_joined, station_id, phone, email FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.FirstName, &m.MiddleName, &m.LastName, &m.Gender, &m.DateJoined, &m.StationID, &m.Phone, &m.Email); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return members, nil
}

// ---- stations ----

func (s *SQLiteStore) CreateStation(st *models.Station) error {
	res, err := s.db.Exec(
		`INSERT INTO stations (name, location, description) VALUES (?, ?, ?)`,
		st.Name, st.Location, st.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create station: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read station id: %w", err)
	}
	st.ID = id
	return nil
}

func (s *SQLiteStore) GetStation(id int64) (*models.Station, error) {
	var st models.Station
	row := s.db.QueryRow(`SELECT id, name, location, description FROM stations WHERE id = ?`, id)
	err := row.Scan(&st.ID, &st.Name, &st.Location, &st.Description)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) UpdateStation(st *models.Station) error {
	res, err := s.db.Exec(
		`UPDATE stations SET name = ?, location = ?, description = ? WHERE id = ?`,
		st.Name, st.Location, st.Description, st.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update station: %w", err)
	}
	return requireRows(res)
}

func (s *SQLiteStore) DeleteStation(id int64) error {
	res, err := s.db.Exec(`DELETE FROM stations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete station: %w", err)
	}
	return requireRows(res)
}

func (s *SQLiteStore) ListStations() ([]*models.Station, error) {
	rows, err := s.db.Query(`SELECT id, name, location, description FROM stations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer rows.Close()

	var stations []*models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Location, &st.Description); err != nil {
			return nil, fmt.Errorf("failed to scan station row: %w", err)
		}
		stations = append(stations, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return stations, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
