package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nfcsacco/saccoledger/pkg/ledger"
	"github.com/nfcsacco/saccoledger/pkg/models"
	"github.com/nfcsacco/saccoledger/pkg/registry"
	"github.com/nfcsacco/saccoledger/pkg/store"
)

const dateLayout = "2006-01-02"

// Server wires the engine and registries to the HTTP surface.
type Server struct {
	engine   *ledger.Engine
	members  *registry.Members
	stations *registry.Stations
	storage  store.Storage
	log      *logrus.Logger
}

func NewServer(s store.Storage, log *logrus.Logger) *Server {
	return &Server{
		engine:   ledger.NewEngine(s),
		members:  registry.NewMembers(s),
		stations: registry.NewStations(s),
		storage:  s,
		log:      log,
	}
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/loan-types", s.listLoanTypesHandler).Methods("GET")
	r.HandleFunc("/loan-types/{name}", s.updateLoanTypeHandler).Methods("PUT")

	r.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	r.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	r.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	r.HandleFunc("/loans/{id}/schedule", s.scheduleHandler).Methods("GET")
	r.HandleFunc("/loans/{id}/balance", s.balanceHandler).Methods("GET")
	r.HandleFunc("/loans/{id}/approve", s.approveLoanHandler).Methods("POST")
	r.HandleFunc("/loans/{id}/disburse", s.disburseLoanHandler).Methods("POST")

	r.HandleFunc("/schedule/{id}/payments", s.recordPaymentHandler).Methods("POST")

	r.HandleFunc("/ledger", s.listLedgerHandler).Methods("GET")

	r.HandleFunc("/members", s.listMembersHandler).Methods("GET")
	r.HandleFunc("/members", s.addMemberHandler).Methods("POST")
	r.HandleFunc("/members/{id}", s.getMemberHandler).Methods("GET")
	r.HandleFunc("/members/{id}", s.updateMemberHandler).Methods("PUT")
	r.HandleFunc("/members/{id}", s.deleteMemberHandler).Methods("DELETE")
	r.HandleFunc("/members/{id}/loans", s.memberLoansHandler).Methods("GET")

	r.HandleFunc("/stations", s.listStationsHandler).Methods("GET")
	r.HandleFunc("/stations", s.addStationHandler).Methods("POST")
	r.HandleFunc("/stations/{id}", s.getStationHandler).Methods("GET")
	r.HandleFunc("/stations/{id}", s.updateStationHandler).Methods("PUT")
	r.HandleFunc("/stations/{id}", s.deleteStationHandler).Methods("DELETE")

	return r
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondError maps the engine's failure taxonomy onto HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var validation *ledger.ValidationError
	var inputErrors validator.ValidationErrors
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidLoanType), errors.As(err, &validation), errors.As(err, &inputErrors):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotApproved), errors.Is(err, ledger.ErrAlreadyDisbursed):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ---- loan types ----

func (s *Server) listLoanTypesHandler(w http.ResponseWriter, r *http.Request) {
	types, err := s.engine.ListLoanTypes()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, types)
}

func (s *Server) updateLoanTypeHandler(w http.ResponseWriter, r *http.Request) {
	var lt models.LoanType
	if err := json.NewDecoder(r.Body).Decode(&lt); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lt.Name = mux.Vars(r)["name"]
	if err := s.engine.UpdateLoanType(&lt); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, lt)
}

// ---- loans ----

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID  string                `json:"member_id"`
		LoanType  string                `json:"loan_type"`
		Principal decimal.Decimal       `json:"principal"`
		StartDate string                `json:"start_date"`
		Method    models.InterestMethod `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		http.Error(w, "Invalid start_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	loan, err := s.engine.CreateLoan(req.MemberID, req.LoanType, req.Principal, startDate, req.Method)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	loan, err := s.engine.GetLoan(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.engine.ListLoans()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, loans)
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	entries, err := s.engine.Schedule(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, entries)
}

func (s *Server) balanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	balance, err := s.engine.LoanBalance(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, balance)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(w, r, s.engine.Approve)
}

func (s *Server) disburseLoanHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionHandler(w, r, s.engine.Disburse)
}

// transitionHandler runs a permission-gated state transition. The desktop
// front end passes the logged-in user's capability flags in the body.
func (s *Server) transitionHandler(w http.ResponseWriter, r *http.Request, op func(int64, models.Permissions) error) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var perms models.Permissions
	if err := json.NewDecoder(r.Body).Decode(&perms); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := op(id, perms); err != nil {
		s.respondError(w, err)
		return
	}
	loan, err := s.engine.GetLoan(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, loan)
}

// ---- payments ----

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid schedule entry ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := s.engine.RecordPayment(id, req.Amount)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, entry)
}

// ---- ledger ----

func (s *Server) listLedgerHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.LedgerEntries()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, entries)
}

// ---- members ----

func (s *Server) addMemberHandler(w http.ResponseWriter, r *http.Request) {
	var input registry.NewMemberInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	member, err := s.members.Add(input)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, member)
}

func (s *Server) getMemberHandler(w http.ResponseWriter, r *http.Request) {
	member, err := s.members.Get(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, member)
}

func (s *Server) updateMemberHandler(w http.ResponseWriter, r *http.Request) {
	var member models.Member
	if err := json.NewDecoder(r.Body).Decode(&member); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	member.ID = mux.Vars(r)["id"]
	if err := s.members.Update(&member); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, member)
}

func (s *Server) deleteMemberHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.members.Delete(mux.Vars(r)["id"]); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	members, err := s.members.List()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, members)
}

func (s *Server) memberLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.engine.LoansByMember(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, loans)
}

// ---- stations ----

func (s *Server) listStationsHandler(w http.ResponseWriter, r *http.Request) {
	stations, err := s.stations.List()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, stations)
}

func (s *Server) addStationHandler(w http.ResponseWriter, r *http.Request) {
	var input registry.NewStationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	station, err := s.stations.Add(input)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, station)
}

func (s *Server) getStationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid station ID", http.StatusBadRequest)
		return
	}
	station, err := s.stations.Get(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, station)
}

func (s *Server) updateStationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid station ID", http.StatusBadRequest)
		return
	}
	var station models.Station
	if err := json.NewDecoder(r.Body).Decode(&station); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	station.ID = id
	if err := s.stations.Update(&station); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, station)
}

func (s *Server) deleteStationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid station ID", http.StatusBadRequest)
		return
	}
	if err := s.stations.Delete(id); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment as-is")
	}
	dbPath := envOr("SACCO_DB_PATH", "sacco.db")
	listenAddr := envOr("SACCO_LISTEN_ADDR", ":8080")

	sqliteStore, err := store.NewSQLiteStore(dbPath, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize SQLite store")
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, log)
	if err := server.engine.RegisterDefaultLoanTypes(); err != nil {
		log.WithError(err).Fatal("failed to seed default loan types")
	}

	log.WithField("addr", listenAddr).Info("server starting")
	log.Fatal(http.ListenAndServe(listenAddr, server.router()))
}
