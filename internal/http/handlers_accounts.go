package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/services"
)

type accountPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Balance          string `json:"balance"`
	Currency         string `json:"currency"`
	IsDefault        bool   `json:"is_default"`
	TransactionCount int    `json:"transaction_count,omitempty"`
	DisplayBalance   string `json:"display_balance,omitempty"`
	DisplayCurrency  string `json:"display_currency,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func accountJSON(a core.Account) accountPayload {
	return accountPayload{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   a.Balance.StringFixed(2),
		Currency:  a.Currency,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func accountViewJSON(v services.AccountView) accountPayload {
	p := accountJSON(v.Account)
	p.TransactionCount = v.TransactionCount
	p.DisplayBalance = v.DisplayBalance.StringFixed(2)
	p.DisplayCurrency = v.DisplayCurrency
	return p
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		Type      string `json:"type"`
		Balance   string `json:"balance"`
		Currency  string `json:"currency"`
		IsDefault bool   `json:"is_default"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	// An omitted or zero opening balance is fine; anything else must parse.
	balance := decimal.Zero
	if v := strings.TrimSpace(body.Balance); v != "" && v != "0" {
		var err error
		balance, err = core.ParseAmount(v)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
	}

	u := owner(r.Context())
	created, err := s.accounts.Create(r.Context(), u.ID, services.CreateAccountRequest{
		Name:      body.Name,
		Type:      core.AccountType(body.Type),
		Balance:   balance,
		Currency:  body.Currency,
		IsDefault: body.IsDefault,
	})
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.invalidateOwner(u.ID)
	writeJSON(w, http.StatusCreated, accountJSON(created))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	u := owner(r.Context())
	key := u.ID + ":accounts"

	views, ok := s.accountsCache.Get(key)
	if !ok {
		var err error
		views, err = s.accounts.List(r.Context(), u.ID)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		s.accountsCache.Set(key, views)
	}

	payload := make([]accountPayload, len(views))
	for i, v := range views {
		payload[i] = accountViewJSON(v)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	u := owner(r.Context())
	detail, err := s.accounts.Get(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	txs := make([]transactionPayload, len(detail.Transactions))
	for i, t := range detail.Transactions {
		txs[i] = transactionJSON(t)
	}
	writeJSON(w, http.StatusOK, struct {
		accountPayload
		Transactions []transactionPayload `json:"transactions"`
	}{accountJSON(detail.Account), txs})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	u := owner(r.Context())
	if err := s.accounts.Delete(r.Context(), u.ID, r.PathValue("id")); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.invalidateOwner(u.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	u := owner(r.Context())
	if err := s.accounts.SetDefault(r.Context(), u.ID, r.PathValue("id")); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.invalidateOwner(u.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	u := owner(r.Context())
	code, err := s.accounts.OwnerCurrency(r.Context(), u.ID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	info := core.SupportedCurrencies[code]
	writeJSON(w, http.StatusOK, map[string]string{
		"currency": code,
		"symbol":   info.Symbol,
		"name":     info.Name,
	})
}

func (s *Server) handleUpdateCurrency(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Currency string `json:"currency"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	u := owner(r.Context())
	if err := s.accounts.UpdateOwnerCurrency(r.Context(), u.ID, body.Currency); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.invalidateOwner(u.ID)
	writeJSON(w, http.StatusOK, map[string]string{"currency": body.Currency})
}
