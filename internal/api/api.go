// Package api exposes the ledger over HTTP/JSON. Amounts cross the wire as
// decimal strings ("12.34") and are parsed into minor units at the boundary;
// nothing past this package touches floats.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/tally/internal/ledger"
	"github.com/mmynk/tally/internal/middleware"
	"github.com/mmynk/tally/internal/models"
	"github.com/mmynk/tally/internal/money"
	"github.com/mmynk/tally/internal/registry"
	"github.com/mmynk/tally/internal/service"
	"github.com/mmynk/tally/internal/settle"
	"github.com/mmynk/tally/internal/storage"
)

// Server holds the HTTP handlers.
type Server struct {
	svc    *service.LedgerService
	logger *slog.Logger
}

// NewServer creates the API server.
func NewServer(svc *service.LedgerService, logger *slog.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(s.logger))
	r.Use(middleware.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/friends", s.createFriend)
		r.Get("/friends", s.listFriends)
		r.Delete("/friends/{id}", s.deleteFriend)
		r.Get("/friends/{id}/history", s.friendHistory)

		r.Post("/expenses", s.createExpense)
		r.Get("/expenses", s.listExpenses)

		r.Get("/balances", s.getBalances)

		r.Post("/settlements", s.createSettlement)
		r.Get("/settlements", s.listSettlements)
		r.Get("/settlements/plan", s.settlementPlan)

		r.Post("/admin/reset", s.adminReset)
	})

	return r
}

type personRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

type personResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

func toPersonResponse(p *models.Person) personResponse {
	return personResponse{ID: p.ID, DisplayName: p.DisplayName, Email: p.Email, CreatedAt: p.CreatedAt}
}

type shareRequest struct {
	PersonID string `json:"person_id"`
	Amount   string `json:"amount,omitempty"`
	Percent  string `json:"percent,omitempty"`
}

type expenseRequest struct {
	Description string         `json:"description"`
	Amount      string         `json:"amount"`
	PayerID     string         `json:"payer_id"`
	Date        string         `json:"date"`
	SplitType   string         `json:"split_type"`
	Shares      []shareRequest `json:"shares"`
}

type shareResponse struct {
	PersonID string `json:"person_id"`
	Amount   string `json:"amount,omitempty"`
	Percent  string `json:"percent,omitempty"`
}

type expenseResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      string          `json:"amount"`
	PayerID     string          `json:"payer_id"`
	Date        string          `json:"date"`
	SplitType   string          `json:"split_type"`
	Shares      []shareResponse `json:"shares"`
	CreatedAt   int64           `json:"created_at"`
}

func toExpenseResponse(e *models.Expense) expenseResponse {
	resp := expenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount.String(),
		PayerID:     e.PayerID,
		Date:        e.Date,
		SplitType:   string(e.SplitType),
		CreatedAt:   e.CreatedAt,
	}
	for _, share := range e.Shares {
		sr := shareResponse{PersonID: share.PersonID}
		switch e.SplitType {
		case models.SplitExact:
			sr.Amount = share.Amount.String()
		case models.SplitPercentage:
			// Basis points render as a percentage with two decimals.
			sr.Percent = money.Money(share.Percent).String()
		}
		resp.Shares = append(resp.Shares, sr)
	}
	return resp
}

type pairBalanceResponse struct {
	Debtor   string `json:"debtor"`
	Creditor string `json:"creditor"`
	Amount   string `json:"amount"`
}

type balancesResponse struct {
	Pairwise  []pairBalanceResponse `json:"pairwise"`
	Positions map[string]string     `json:"positions"`
}

type transferResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type planResponse struct {
	Transfers []transferResponse `json:"transfers"`
	Optimal   bool               `json:"optimal"`
}

type settlementRequest struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

type settlementResponse struct {
	ID        string `json:"id"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Amount    string `json:"amount"`
	Note      string `json:"note,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func toSettlementResponse(s *models.Settlement) settlementResponse {
	return settlementResponse{
		ID:        s.ID,
		FromID:    s.FromID,
		ToID:      s.ToID,
		Amount:    s.Amount.String(),
		Note:      s.Note,
		CreatedAt: s.CreatedAt,
	}
}

type historyEntryResponse struct {
	Expense expenseResponse `json:"expense"`
	Role    string          `json:"role"`
	Share   string          `json:"share"`
}

func (s *Server) createFriend(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	person, err := s.svc.RegisterPerson(r.Context(), req.DisplayName, req.Email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonResponse(person))
}

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	persons, err := s.svc.ListPersons(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := make([]personResponse, 0, len(persons))
	for _, p := range persons {
		resp = append(resp, toPersonResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteFriend(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemovePerson(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) friendHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.PersonHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := make([]historyEntryResponse, 0, len(history))
	for _, entry := range history {
		resp = append(resp, historyEntryResponse{
			Expense: toExpenseResponse(entry.Expense),
			Role:    string(entry.Role),
			Share:   entry.Share.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	expense, err := expenseFromRequest(&req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	recorded, err := s.svc.RecordExpense(r.Context(), expense)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(recorded))
}

func expenseFromRequest(req *expenseRequest) (*models.Expense, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return nil, &ledger.ValidationError{Field: "amount", Err: err}
	}
	expense := &models.Expense{
		Description: req.Description,
		Amount:      amount,
		PayerID:     req.PayerID,
		Date:        req.Date,
		SplitType:   models.SplitType(req.SplitType),
	}
	for _, share := range req.Shares {
		resolved := models.SplitShare{PersonID: share.PersonID}
		if share.Amount != "" {
			if resolved.Amount, err = money.Parse(share.Amount); err != nil {
				return nil, &ledger.ValidationError{Field: "shares.amount", Err: err}
			}
		}
		if share.Percent != "" {
			// "33.33" means 33.33%, carried as basis points.
			bp, err := money.Parse(share.Percent)
			if err != nil {
				return nil, &ledger.ValidationError{Field: "shares.percent", Err: err}
			}
			resolved.Percent = int64(bp)
		}
		expense.Shares = append(expense.Shares, resolved)
	}
	return expense, nil
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.svc.ListExpenses(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		resp = append(resp, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.svc.NetBalances(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := balancesResponse{
		Pairwise:  make([]pairBalanceResponse, 0, len(balances.Pairwise)),
		Positions: make(map[string]string, len(balances.Positions)),
	}
	for _, pb := range balances.Pairwise {
		resp.Pairwise = append(resp.Pairwise, pairBalanceResponse{
			Debtor:   pb.Debtor,
			Creditor: pb.Creditor,
			Amount:   pb.Amount.String(),
		})
	}
	for id, position := range balances.Positions {
		resp.Positions[id] = position.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createSettlement(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		s.writeServiceError(w, &ledger.ValidationError{Field: "amount", Err: err})
		return
	}
	settlement := &models.Settlement{
		FromID: req.FromID,
		ToID:   req.ToID,
		Amount: amount,
		Note:   req.Note,
	}
	recorded, err := s.svc.RecordSettlement(r.Context(), settlement)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementResponse(recorded))
}

func (s *Server) listSettlements(w http.ResponseWriter, r *http.Request) {
	settlements, err := s.svc.ListSettlements(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := make([]settlementResponse, 0, len(settlements))
	for _, settlement := range settlements {
		resp = append(resp, toSettlementResponse(settlement))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) settlementPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.svc.SettlementPlan(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := planResponse{
		Transfers: make([]transferResponse, 0, len(plan.Transfers)),
		Optimal:   plan.Optimal,
	}
	for _, tr := range plan.Transfers {
		resp.Transfers = append(resp.Transfers, transferResponse{
			From:   tr.From,
			To:     tr.To,
			Amount: tr.Amount.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) adminReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reset(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeServiceError maps engine errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *ledger.ValidationError
	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, money.ErrOverflow),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, registry.ErrEmptyName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrReferentialConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, settle.ErrInfeasible):
		s.logger.Error("settlement plan infeasible", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
