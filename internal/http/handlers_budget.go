package http

import (
	"net/http"
	"time"

	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/services"
)

type budgetStatusPayload struct {
	BudgetAmount    string  `json:"budget_amount,omitempty"`
	CurrentExpenses string  `json:"current_expenses"`
	PercentUsed     float64 `json:"percent_used"`
	Currency        string  `json:"currency"`
	LastAlertSent   string  `json:"last_alert_sent,omitempty"`
}

func budgetStatusJSON(status services.BudgetStatus) budgetStatusPayload {
	p := budgetStatusPayload{
		CurrentExpenses: status.CurrentExpenses.StringFixed(2),
		PercentUsed:     status.PercentUsed,
		Currency:        status.Currency,
	}
	if status.Budget != nil {
		p.BudgetAmount = status.Budget.Amount.StringFixed(2)
		if status.Budget.LastAlertSent != nil {
			p.LastAlertSent = status.Budget.LastAlertSent.Format(time.RFC3339)
		}
	}
	return p
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	u := owner(r.Context())
	accountID := r.URL.Query().Get("account_id")
	key := u.ID + ":budget:" + accountID

	status, ok := s.budgetCache.Get(key)
	if !ok {
		var err error
		status, err = s.budgets.Status(r.Context(), u.ID, accountID)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		s.budgetCache.Set(key, status)
	}

	writeJSON(w, http.StatusOK, budgetStatusJSON(status))
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	amount, err := core.ParseAmount(body.Amount)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	u := owner(r.Context())
	budget, err := s.budgets.Upsert(r.Context(), u.ID, amount)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.invalidateOwner(u.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     budget.ID,
		"amount": budget.Amount.StringFixed(2),
	})
}
