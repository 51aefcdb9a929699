package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Amansingh0807/OptExAI/internal/ai"
	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/services"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

type fakeScanner struct {
	scan ai.ReceiptScan
	err  error
}

func (f *fakeScanner) Scan(_ context.Context, _ []byte, _ string) (ai.ReceiptScan, error) {
	return f.scan, f.err
}

type noopClassifier struct{}

func (noopClassifier) Classify(context.Context, core.TransactionType, string) string { return "" }

type identityConverter struct{}

func (identityConverter) Convert(_ context.Context, amount decimal.Decimal, _, _ string) (decimal.Decimal, error) {
	return amount, nil
}

type ServerSuite struct {
	suite.Suite

	repo    *storage.Repository
	server  *Server
	scanner *fakeScanner
	token   string
	owner   core.User
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	repo, err := storage.Open(":memory:")
	s.Require().NoError(err)
	s.repo = repo

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	converter := identityConverter{}

	accounts := services.NewAccountService(repo, converter, logger)
	txs := services.NewTransactionService(repo, noopClassifier{}, converter, logger)
	budgets := services.NewBudgetService(repo, converter, nil, logger)
	s.scanner = &fakeScanner{}

	s.server = NewServer(":0", repo, accounts, txs, budgets, s.scanner, 1000, logger)

	s.token = "test-token"
	s.owner, err = repo.CreateUser(context.Background(), core.User{
		Token: s.token,
		Email: "alice@example.com",
	})
	s.Require().NoError(err)
}

func (s *ServerSuite) TearDownTest() {
	s.server.Close()
	s.Require().NoError(s.repo.Close())
}

func (s *ServerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(v))
}

func (s *ServerSuite) createAccount(name, balance string) accountPayload {
	rec := s.do(http.MethodPost, "/api/accounts", map[string]any{
		"name":     name,
		"type":     "CURRENT",
		"balance":  balance,
		"currency": "USD",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created accountPayload
	s.decode(rec, &created)
	return created
}

func (s *ServerSuite) TestRejectsMissingToken() {
	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerSuite) TestRejectsUnknownToken() {
	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerSuite) TestCreateAndListAccounts() {
	created := s.createAccount("Checking", "1000")
	s.Equal("1000.00", created.Balance)
	s.True(created.IsDefault, "first account becomes default")

	rec := s.do(http.MethodGet, "/api/accounts", nil)
	s.Equal(http.StatusOK, rec.Code)
	var list []accountPayload
	s.decode(rec, &list)
	s.Require().Len(list, 1)
	s.Equal(created.ID, list[0].ID)
	s.Equal("USD", list[0].DisplayCurrency)
}

func (s *ServerSuite) TestCreateAccountValidation() {
	rec := s.do(http.MethodPost, "/api/accounts", map[string]any{
		"name":     "",
		"type":     "CURRENT",
		"currency": "USD",
	})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/api/accounts", map[string]any{
		"name":     "Checking",
		"type":     "CURRENT",
		"currency": "XXX",
	})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *ServerSuite) TestMalformedBodyRejected() {
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewReader([]byte(`{"name": `)))
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *ServerSuite) TestAccountNotFound() {
	rec := s.do(http.MethodGet, "/api/accounts/missing", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestTransactionLifecycle() {
	account := s.createAccount("Checking", "1000")

	rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
		"account_id":  account.ID,
		"type":        "EXPENSE",
		"amount":      "199.99",
		"category":    "groceries",
		"description": "weekly shop",
		"date":        time.Now().UTC().Format("2006-01-02"),
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created transactionPayload
	s.decode(rec, &created)
	s.Equal("199.99", created.Amount)
	s.Equal("groceries", created.Category)

	rec = s.do(http.MethodGet, "/api/transactions/"+created.ID, nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/accounts/"+account.ID, nil)
	s.Equal(http.StatusOK, rec.Code)
	var detail struct {
		Balance      string               `json:"balance"`
		Transactions []transactionPayload `json:"transactions"`
	}
	s.decode(rec, &detail)
	s.Equal("800.01", detail.Balance)
	s.Require().Len(detail.Transactions, 1)

	rec = s.do(http.MethodDelete, "/api/transactions/"+created.ID, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/accounts/"+account.ID, nil)
	s.decode(rec, &detail)
	s.Equal("1000.00", detail.Balance)
}

func (s *ServerSuite) TestInsufficientFundsBody() {
	account := s.createAccount("Checking", "100")

	rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
		"account_id": account.ID,
		"type":       "EXPENSE",
		"amount":     "250",
		"category":   "groceries",
		"date":       time.Now().UTC().Format("2006-01-02"),
	})
	s.Require().Equal(http.StatusUnprocessableEntity, rec.Code)

	var body errorResponse
	s.decode(rec, &body)
	s.Equal("100.00", body.Available)
	s.Equal("250.00", body.Requested)
	s.Equal("USD", body.Currency)
}

func (s *ServerSuite) TestListTransactionsFilters() {
	account := s.createAccount("Checking", "1000")

	for i, typ := range []string{"EXPENSE", "INCOME", "EXPENSE"} {
		rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
			"account_id": account.ID,
			"type":       typ,
			"amount":     fmt.Sprintf("%d", 10+i),
			"category":   map[string]string{"EXPENSE": "groceries", "INCOME": "salary"}[typ],
			"date":       time.Now().UTC().Format("2006-01-02"),
		})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodGet, "/api/transactions?type=EXPENSE", nil)
	s.Equal(http.StatusOK, rec.Code)
	var list []transactionPayload
	s.decode(rec, &list)
	s.Len(list, 2)

	rec = s.do(http.MethodGet, "/api/transactions?limit=1", nil)
	s.decode(rec, &list)
	s.Len(list, 1)
}

func (s *ServerSuite) TestBudgetRoundTrip() {
	account := s.createAccount("Checking", "1000")

	rec := s.do(http.MethodPut, "/api/budget", map[string]any{"amount": "400"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/transactions", map[string]any{
		"account_id": account.ID,
		"type":       "EXPENSE",
		"amount":     "100",
		"category":   "groceries",
		"date":       time.Now().UTC().Format("2006-01-02"),
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/budget", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var status budgetStatusPayload
	s.decode(rec, &status)
	s.Equal("400.00", status.BudgetAmount)
	s.Equal("100.00", status.CurrentExpenses)
	s.InDelta(25.0, status.PercentUsed, 0.01)
}

func (s *ServerSuite) TestBudgetCacheInvalidatedByWrite() {
	account := s.createAccount("Checking", "1000")
	s.do(http.MethodPut, "/api/budget", map[string]any{"amount": "400"})

	// Prime the cache.
	rec := s.do(http.MethodGet, "/api/budget", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var status budgetStatusPayload
	s.decode(rec, &status)
	s.Equal("0.00", status.CurrentExpenses)

	rec = s.do(http.MethodPost, "/api/transactions", map[string]any{
		"account_id": account.ID,
		"type":       "EXPENSE",
		"amount":     "50",
		"category":   "groceries",
		"date":       time.Now().UTC().Format("2006-01-02"),
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/budget", nil)
	s.decode(rec, &status)
	s.Equal("50.00", status.CurrentExpenses, "write must drop the cached status")
}

func (s *ServerSuite) TestBudgetValidation() {
	rec := s.do(http.MethodPut, "/api/budget", map[string]any{"amount": "-5"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *ServerSuite) TestCurrencyRoundTrip() {
	rec := s.do(http.MethodGet, "/api/currency", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var got map[string]string
	s.decode(rec, &got)
	s.Equal("USD", got["currency"])

	rec = s.do(http.MethodPut, "/api/currency", map[string]any{"currency": "EUR"})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/currency", nil)
	s.decode(rec, &got)
	s.Equal("EUR", got["currency"])
	s.Equal("€", got["symbol"])

	rec = s.do(http.MethodPut, "/api/currency", map[string]any{"currency": "XXX"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *ServerSuite) TestScanReceipt() {
	s.scanner.scan = ai.ReceiptScan{
		Amount:       decimal.RequireFromString("42.50"),
		Date:         time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Description:  "Lunch at cafe",
		MerchantName: "Cafe Roma",
		Category:     "food",
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "receipt.jpg")
	s.Require().NoError(err)
	_, err = part.Write([]byte("fake image bytes"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/scan", &buf)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var got map[string]string
	s.decode(rec, &got)
	s.Equal("42.50", got["amount"])
	s.Equal("2025-03-14", got["date"])
	s.Equal("Cafe Roma", got["merchant_name"])
}

func (s *ServerSuite) TestScanReceiptNotAReceipt() {
	s.scanner.err = ai.ErrNotReceipt

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "cat.jpg")
	s.Require().NoError(err)
	_, err = part.Write([]byte("definitely a cat"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/scan", &buf)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *ServerSuite) TestHealthEndpoints() {
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.server.Handler.ServeHTTP(rec, req)
		s.Equal(http.StatusOK, rec.Code, path)
	}
}

func (s *ServerSuite) TestOwnerIsolation() {
	account := s.createAccount("Checking", "1000")

	_, err := s.repo.CreateUser(context.Background(), core.User{
		Token: "other-token",
		Email: "bob@example.com",
	})
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/"+account.ID, nil)
	req.Header.Set("Authorization", "Bearer other-token")
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestRequestIDReachesHandlerContext() {
	var seen string
	handler := s.server.protected(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.NotEmpty(seen)
	s.True(strings.HasPrefix(seen, "req_"), "request id %q should carry the req_ prefix", seen)
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()

	for i := 0; i < 3; i++ {
		require.True(t, rl.allow("1.2.3.4"), "request %d should pass", i)
	}
	require.False(t, rl.allow("1.2.3.4"))
	require.True(t, rl.allow("5.6.7.8"), "other clients are unaffected")
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.7:1234",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header from trusted proxy",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header from untrusted source ignored",
			remoteAddr: "203.0.113.9:1234",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "real ip from trusted proxy",
			remoteAddr: "192.168.1.5:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, extractClientIP(req))
		})
	}
}
