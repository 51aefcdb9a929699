package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Amansingh0807/OptExAI/internal/ai"
	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/log"
)

type errorResponse struct {
	Error     string `json:"error"`
	Available string `json:"available,omitempty"`
	Requested string `json:"requested,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes: unauthorized 401,
// missing 404, anything the caller got wrong 422, the rest 500.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var insufficient *core.InsufficientFundsError
	var badCurrency *core.InvalidCurrencyError

	switch {
	case errors.Is(err, core.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     insufficient.Error(),
			Available: insufficient.Available.StringFixed(2),
			Requested: insufficient.Requested.StringFixed(2),
			Currency:  insufficient.Currency,
		})
	case errors.As(err, &badCurrency), isValidationError(err), errors.Is(err, ai.ErrNotReceipt):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		s.logger.ErrorContext(ctx, "request failed",
			log.FieldRequestID, requestIDFrom(ctx),
			log.FieldError, err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrEmptyName,
		core.ErrNameTooLong,
		core.ErrInvalidAccountType,
		core.ErrInvalidTransactionType,
		core.ErrInvalidAmount,
		core.ErrInvalidCategory,
		core.ErrInvalidDate,
		core.ErrFutureDate,
		core.ErrDescriptionTooLong,
		core.ErrInvalidRecurringInterval,
		errMalformedBody,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

var errMalformedBody = errors.New("malformed request body")

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, core.ErrInvalidDate
	}
	return t, nil
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
