package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/services"
)

type transactionPayload struct {
	ID                string `json:"id"`
	AccountID         string `json:"account_id"`
	Type              string `json:"type"`
	Amount            string `json:"amount"`
	Category          string `json:"category"`
	Description       string `json:"description,omitempty"`
	Date              string `json:"date"`
	IsRecurring       bool   `json:"is_recurring"`
	RecurringInterval string `json:"recurring_interval,omitempty"`
	NextRecurringDate string `json:"next_recurring_date,omitempty"`
	DisplayAmount     string `json:"display_amount,omitempty"`
	DisplayCurrency   string `json:"display_currency,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func transactionJSON(t core.Transaction) transactionPayload {
	p := transactionPayload{
		ID:                t.ID,
		AccountID:         t.AccountID,
		Type:              string(t.Type),
		Amount:            t.Amount.StringFixed(2),
		Category:          t.Category,
		Description:       t.Description,
		Date:              t.Date.Format("2006-01-02"),
		IsRecurring:       t.IsRecurring,
		RecurringInterval: string(t.RecurringInterval),
		CreatedAt:         t.CreatedAt.Format(time.RFC3339),
	}
	if t.NextRecurringDate != nil {
		p.NextRecurringDate = t.NextRecurringDate.Format("2006-01-02")
	}
	return p
}

func transactionViewJSON(v services.TransactionView) transactionPayload {
	p := transactionJSON(v.Transaction)
	p.DisplayAmount = v.DisplayAmount.StringFixed(2)
	p.DisplayCurrency = v.DisplayCurrency
	return p
}

type transactionBody struct {
	AccountID         string `json:"account_id"`
	Type              string `json:"type"`
	Amount            string `json:"amount"`
	Category          string `json:"category"`
	Description       string `json:"description"`
	Date              string `json:"date"`
	IsRecurring       bool   `json:"is_recurring"`
	RecurringInterval string `json:"recurring_interval"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var body transactionBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	amount, err := core.ParseAmount(body.Amount)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	u := owner(r.Context())
	created, err := s.txs.Create(r.Context(), u.ID, services.CreateTransactionRequest{
		AccountID:         body.AccountID,
		Type:              core.TransactionType(body.Type),
		Amount:            amount,
		Category:          body.Category,
		Description:       body.Description,
		Date:              date,
		IsRecurring:       body.IsRecurring,
		RecurringInterval: core.RecurringInterval(body.RecurringInterval),
	})
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.invalidateOwner(u.ID)
	if created.Type == core.Expense {
		s.budgets.Evaluate(r.Context(), u.ID)
	}
	writeJSON(w, http.StatusCreated, transactionJSON(created))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := services.ListTransactionsParams{
		AccountID: q.Get("account_id"),
		Type:      core.TransactionType(q.Get("type")),
	}
	if from := q.Get("from"); from != "" {
		t, err := parseDate(from)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		params.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := parseDate(to)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		params.To = &t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			s.writeError(r.Context(), w, errMalformedBody)
			return
		}
		params.Limit = n
	}

	u := owner(r.Context())
	views, err := s.txs.List(r.Context(), u.ID, params)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	payload := make([]transactionPayload, len(views))
	for i, v := range views {
		payload[i] = transactionViewJSON(v)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	u := owner(r.Context())
	tx, err := s.txs.Get(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionJSON(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var body transactionBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	amount, err := core.ParseAmount(body.Amount)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	u := owner(r.Context())
	updated, err := s.txs.Update(r.Context(), u.ID, r.PathValue("id"), services.UpdateTransactionRequest{
		Type:              core.TransactionType(body.Type),
		Amount:            amount,
		Category:          body.Category,
		Description:       body.Description,
		Date:              date,
		IsRecurring:       body.IsRecurring,
		RecurringInterval: core.RecurringInterval(body.RecurringInterval),
	})
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.invalidateOwner(u.ID)
	s.budgets.Evaluate(r.Context(), u.ID)
	writeJSON(w, http.StatusOK, transactionJSON(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	u := owner(r.Context())
	if err := s.txs.Delete(r.Context(), u.ID, r.PathValue("id")); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.invalidateOwner(u.ID)
	w.WriteHeader(http.StatusNoContent)
}
