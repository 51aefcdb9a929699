package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/Amansingh0807/OptExAI/internal/amqp"
	"github.com/Amansingh0807/OptExAI/internal/core"
	"github.com/Amansingh0807/OptExAI/internal/currency"
	"github.com/Amansingh0807/OptExAI/internal/log"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

type fakeClassifier struct {
	label string
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, typ core.TransactionType, description string) string {
	f.calls++
	return f.label
}

type fakePublisher struct {
	messages []*amqp.BudgetAlertMessage
	err      error
}

func (f *fakePublisher) PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

type ServicesSuite struct {
	suite.Suite
	repo       *storage.Repository
	ctx        context.Context
	owner      core.User
	account    core.Account
	classifier *fakeClassifier
	publisher  *fakePublisher
	txs        *TransactionService
	accounts   *AccountService
	budgets    *BudgetService
}

func TestServicesSuite(t *testing.T) {
	suite.Run(t, new(ServicesSuite))
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func testConverter() Converter {
	return currency.NewConverter(currency.NewFixedCache(map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"EUR": decimal.NewFromFloat(0.5), // easy numbers: 1 USD = 0.5 EUR
		"GBP": decimal.NewFromFloat(0.73),
	}))
}

func (s *ServicesSuite) SetupTest() {
	repo, err := storage.Open(":memory:")
	s.Require().NoError(err)
	s.repo = repo
	s.ctx = context.Background()

	s.owner, err = repo.CreateUser(s.ctx, core.User{Token: "tok", Email: "alice@example.com"})
	s.Require().NoError(err)

	s.account, err = repo.CreateAccount(s.ctx, core.Account{
		OwnerID:  s.owner.ID,
		Name:     "Checking",
		Type:     core.AccountCurrent,
		Balance:  decimal.NewFromInt(1000),
		Currency: "USD",
	})
	s.Require().NoError(err)

	logger := quietLogger()
	conv := testConverter()
	s.classifier = &fakeClassifier{}
	s.publisher = &fakePublisher{}
	s.txs = NewTransactionService(repo, s.classifier, conv, logger)
	s.accounts = NewAccountService(repo, conv, logger)
	s.budgets = NewBudgetService(repo, conv, s.publisher, logger)
}

func (s *ServicesSuite) TearDownTest() {
	s.repo.Close()
}

func (s *ServicesSuite) expense(amount, category string) CreateTransactionRequest {
	return CreateTransactionRequest{
		AccountID:   s.account.ID,
		Type:        core.Expense,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Description: "test spend",
		Date:        time.Now().Add(-time.Hour),
	}
}

func (s *ServicesSuite) TestCreateClassifiesWhenCategoryOmitted() {
	s.classifier.label = "groceries"
	req := s.expense("25", "")
	created, err := s.txs.Create(s.ctx, s.owner.ID, req)
	s.Require().NoError(err)
	s.Equal("groceries", created.Category)
	s.Equal(1, s.classifier.calls)
}

func (s *ServicesSuite) TestCreateRefinesOtherBucket() {
	s.classifier.label = "utilities"
	created, err := s.txs.Create(s.ctx, s.owner.ID, s.expense("40", "other-expense"))
	s.Require().NoError(err)
	s.Equal("utilities", created.Category)
}

func (s *ServicesSuite) TestCreateKeepsExplicitCategory() {
	s.classifier.label = "utilities"
	created, err := s.txs.Create(s.ctx, s.owner.ID, s.expense("40", "travel"))
	s.Require().NoError(err)
	s.Equal("travel", created.Category)
	s.Equal(0, s.classifier.calls, "explicit categories must not reach the classifier")
}

func (s *ServicesSuite) TestCreateFallsBackWhenClassifierAbstains() {
	s.classifier.label = ""
	created, err := s.txs.Create(s.ctx, s.owner.ID, s.expense("40", ""))
	s.Require().NoError(err)
	s.Equal("other-expense", created.Category)
}

func (s *ServicesSuite) TestCreateRejectsFutureDate() {
	req := s.expense("40", "travel")
	req.Date = time.Now().Add(48 * time.Hour)
	_, err := s.txs.Create(s.ctx, s.owner.ID, req)
	s.ErrorIs(err, core.ErrFutureDate)
}

func (s *ServicesSuite) TestUpdateRejectsFutureDate() {
	// A past-dated transaction must not be rewritable to a future date.
	exp, err := s.txs.Create(s.ctx, s.owner.ID, s.expense("40", "travel"))
	s.Require().NoError(err)

	_, err = s.txs.Update(s.ctx, s.owner.ID, exp.ID, UpdateTransactionRequest{
		Type:     core.Expense,
		Amount:   decimal.NewFromInt(40),
		Category: "travel",
		Date:     time.Now().Add(30 * 24 * time.Hour),
	})
	s.ErrorIs(err, core.ErrFutureDate)

	stored, err := s.txs.Get(s.ctx, s.owner.ID, exp.ID)
	s.Require().NoError(err)
	s.True(stored.Date.Before(time.Now()), "rejected update must leave the stored date untouched")
}

func (s *ServicesSuite) TestCreateUsesDefaultAccount() {
	req := s.expense("10", "groceries")
	req.AccountID = ""
	created, err := s.txs.Create(s.ctx, s.owner.ID, req)
	s.Require().NoError(err)
	s.Equal(s.account.ID, created.AccountID)
}

func (s *ServicesSuite) TestCreateRecurringComputesNextDate() {
	req := s.expense("10", "bills")
	req.Date = time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	req.IsRecurring = true
	req.RecurringInterval = core.Monthly
	created, err := s.txs.Create(s.ctx, s.owner.ID, req)
	s.Require().NoError(err)
	s.Require().NotNil(created.NextRecurringDate)
	s.Equal(core.NextOccurrence(req.Date, core.Monthly), *created.NextRecurringDate)
}

func (s *ServicesSuite) TestUpdateGrowthBeyondRefundFails() {
	// 1000 opening balance, 800 expense leaves 200. Growing the expense to
	// 1200 exceeds the refunded available of 1000 and must change nothing.
	exp, err := s.txs.Create(s.ctx, s.owner.ID, s.expense("800", "housing"))
	s.Require().NoError(err)

	_, err = s.txs.Update(s.ctx, s.owner.ID, exp.ID, UpdateTransactionRequest{
		Type:     core.Expense,
		Amount:   decimal.NewFromInt(1200),
		Category: "housing",
		Date:     exp.Date,
	})
	var insufficient *core.InsufficientFundsError
	s.Require().ErrorAs(err, &insufficient)
	s.True(insufficient.Available.Equal(decimal.NewFromInt(1000)))

	acct, err := s.repo.GetAccount(s.ctx, s.owner.ID, s.account.ID)
	s.Require().NoError(err)
	s.True(acct.Balance.Equal(decimal.NewFromInt(200)))
	stored, err := s.txs.Get(s.ctx, s.owner.ID, exp.ID)
	s.Require().NoError(err)
	s.True(stored.Amount.Equal(decimal.NewFromInt(800)))
}

func (s *ServicesSuite) TestListConvertsToDisplayCurrency() {
	s.Require().NoError(s.accounts.UpdateOwnerCurrency(s.ctx, s.owner.ID, "EUR"))
	_, err := s.txs.Create(s.ctx, s.owner.ID, s.expense("100", "groceries"))
	s.Require().NoError(err)

	views, err := s.txs.List(s.ctx, s.owner.ID, ListTransactionsParams{})
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal("USD", views[0].AccountCurrency)
	s.Equal("EUR", views[0].DisplayCurrency)
	s.True(views[0].Amount.Equal(decimal.NewFromInt(100)), "original amount preserved")
	s.True(views[0].DisplayAmount.Equal(decimal.NewFromInt(50)), "100 USD at 0.5 = 50 EUR")
}

func (s *ServicesSuite) TestAccountListViews() {
	_, err := s.txs.Create(s.ctx, s.owner.ID, s.expense("10", "groceries"))
	s.Require().NoError(err)
	_, err = s.txs.Create(s.ctx, s.owner.ID, s.expense("20", "groceries"))
	s.Require().NoError(err)

	views, err := s.accounts.List(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal(2, views[0].TransactionCount)
	s.True(views[0].DisplayBalance.Equal(decimal.NewFromInt(970)))
}

func (s *ServicesSuite) TestBudgetStatusConvertThenSum() {
	// Second account in EUR; owner views in USD. 50 EUR at 0.5 = 100 USD.
	eurAcct, err := s.repo.CreateAccount(s.ctx, core.Account{
		OwnerID: s.owner.ID, Name: "Euro", Type: core.AccountSavings,
		Balance: decimal.NewFromInt(500), Currency: "EUR",
	})
	s.Require().NoError(err)

	_, err = s.txs.Create(s.ctx, s.owner.ID, s.expense("100", "groceries"))
	s.Require().NoError(err)
	req := s.expense("50", "travel")
	req.AccountID = eurAcct.ID
	_, err = s.txs.Create(s.ctx, s.owner.ID, req)
	s.Require().NoError(err)

	_, err = s.budgets.Upsert(s.ctx, s.owner.ID, decimal.NewFromInt(400))
	s.Require().NoError(err)

	status, err := s.budgets.Status(s.ctx, s.owner.ID, "")
	s.Require().NoError(err)
	s.True(status.CurrentExpenses.Equal(decimal.NewFromInt(200)), "spent = %s", status.CurrentExpenses)
	s.InDelta(50.0, status.PercentUsed, 1e-9)
	s.Equal("USD", status.Currency)
}

func (s *ServicesSuite) TestBudgetStatusWithoutBudget() {
	_, err := s.txs.Create(s.ctx, s.owner.ID, s.expense("100", "groceries"))
	s.Require().NoError(err)

	status, err := s.budgets.Status(s.ctx, s.owner.ID, "")
	s.Require().NoError(err)
	s.Nil(status.Budget)
	s.Zero(status.PercentUsed)
	s.True(status.CurrentExpenses.Equal(decimal.NewFromInt(100)))
}

func (s *ServicesSuite) TestCheckAlertThreshold() {
	_, err := s.budgets.Upsert(s.ctx, s.owner.ID, decimal.NewFromInt(100))
	s.Require().NoError(err)

	_, err = s.txs.Create(s.ctx, s.owner.ID, s.expense("89", "groceries"))
	s.Require().NoError(err)
	status, err := s.budgets.Status(s.ctx, s.owner.ID, "")
	s.Require().NoError(err)
	s.budgets.CheckAlert(s.ctx, s.owner.ID, status)
	s.Empty(s.publisher.messages, "below threshold must not alert")

	_, err = s.txs.Create(s.ctx, s.owner.ID, s.expense("3", "groceries"))
	s.Require().NoError(err)
	status, err = s.budgets.Status(s.ctx, s.owner.ID, "")
	s.Require().NoError(err)
	s.budgets.CheckAlert(s.ctx, s.owner.ID, status)
	s.Require().Len(s.publisher.messages, 1)
	s.Equal(s.owner.ID, s.publisher.messages[0].OwnerID)
	s.InDelta(92.0, s.publisher.messages[0].PercentUsed, 1e-9)
}

func (s *ServicesSuite) TestCheckAlertThrottledPerMonth() {
	_, err := s.budgets.Upsert(s.ctx, s.owner.ID, decimal.NewFromInt(100))
	s.Require().NoError(err)
	_, err = s.txs.Create(s.ctx, s.owner.ID, s.expense("95", "groceries"))
	s.Require().NoError(err)

	// An alert already delivered this month suppresses publishing.
	s.Require().NoError(s.repo.StampAlert(s.ctx, s.owner.ID, time.Now().UTC()))
	status, err := s.budgets.Status(s.ctx, s.owner.ID, "")
	s.Require().NoError(err)
	s.budgets.CheckAlert(s.ctx, s.owner.ID, status)
	s.Empty(s.publisher.messages)

	// A stamp from last month does not.
	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	s.Require().NoError(s.repo.StampAlert(s.ctx, s.owner.ID, lastMonth))
	status, err = s.budgets.Status(s.ctx, s.owner.ID, "")
	s.Require().NoError(err)
	s.budgets.CheckAlert(s.ctx, s.owner.ID, status)
	s.Len(s.publisher.messages, 1)
}

func (s *ServicesSuite) TestCheckAlertSwallowsPublishErrors() {
	s.publisher.err = errors.New("broker down")
	_, err := s.budgets.Upsert(s.ctx, s.owner.ID, decimal.NewFromInt(100))
	s.Require().NoError(err)
	_, err = s.txs.Create(s.ctx, s.owner.ID, s.expense("95", "groceries"))
	s.Require().NoError(err)

	status, err := s.budgets.Status(s.ctx, s.owner.ID, "")
	s.Require().NoError(err)
	s.NotPanics(func() { s.budgets.CheckAlert(s.ctx, s.owner.ID, status) })
}

func (s *ServicesSuite) TestRecurringProcessorCreatesAndAdvances() {
	due := time.Now().UTC().Add(-time.Hour)
	tmpl := core.Transaction{
		OwnerID:           s.owner.ID,
		AccountID:         s.account.ID,
		Type:              core.Expense,
		Amount:            decimal.NewFromInt(50),
		Category:          "bills",
		Description:       "internet",
		Date:              due.AddDate(0, -1, 0),
		IsRecurring:       true,
		RecurringInterval: core.Monthly,
		NextRecurringDate: &due,
	}
	tmpl, err := s.repo.CreateTransaction(s.ctx, tmpl)
	s.Require().NoError(err)

	proc := NewRecurringProcessor(s.repo, s.txs, s.budgets, quietLogger())
	created, err := proc.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, created)

	// The occurrence landed on the balance: 1000 - 50 (template) - 50 (occurrence).
	acct, err := s.repo.GetAccount(s.ctx, s.owner.ID, s.account.ID)
	s.Require().NoError(err)
	s.True(acct.Balance.Equal(decimal.NewFromInt(900)), "balance = %s", acct.Balance)

	// The template advanced and is no longer due.
	again, err := proc.Run(s.ctx)
	s.Require().NoError(err)
	s.Zero(again)
}

func (s *ServicesSuite) TestRecurringProcessorSkipsUnfundedExpense() {
	due := time.Now().UTC().Add(-time.Hour)
	tmpl := core.Transaction{
		OwnerID:           s.owner.ID,
		AccountID:         s.account.ID,
		Type:              core.Income,
		Amount:            decimal.NewFromInt(1),
		Category:          "salary",
		Date:              due.AddDate(0, 0, -7),
		IsRecurring:       true,
		RecurringInterval: core.Weekly,
		NextRecurringDate: &due,
	}
	_, err := s.repo.CreateTransaction(s.ctx, tmpl)
	s.Require().NoError(err)

	// An expense template created while the account was funded.
	big := core.Transaction{
		OwnerID:           s.owner.ID,
		AccountID:         s.account.ID,
		Type:              core.Expense,
		Amount:            decimal.NewFromInt(500),
		Category:          "housing",
		Date:              due.AddDate(0, 0, -7),
		IsRecurring:       true,
		RecurringInterval: core.Weekly,
		NextRecurringDate: &due,
	}
	big, err = s.repo.CreateTransaction(s.ctx, big)
	s.Require().NoError(err)

	// Drain what's left so the expense occurrence cannot be funded.
	acct, err := s.repo.GetAccount(s.ctx, s.owner.ID, s.account.ID)
	s.Require().NoError(err)
	req := s.expense(acct.Balance.String(), "other-expense")
	_, err = s.txs.Create(s.ctx, s.owner.ID, req)
	s.Require().NoError(err)

	proc := NewRecurringProcessor(s.repo, s.txs, s.budgets, quietLogger())
	created, err := proc.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, created, "only the income occurrence lands")

	// Both templates advanced: the skipped expense retries next cycle, not
	// immediately.
	stored, err := s.repo.GetTransaction(s.ctx, s.owner.ID, big.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.NextRecurringDate)
	s.True(stored.NextRecurringDate.After(due), "skipped template must still advance")
}

func TestAlreadyAlertedThisMonth(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		last *time.Time
		want bool
	}{
		{"never alerted", nil, false},
		{"alerted this month", timeRef(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)), true},
		{"alerted last month", timeRef(time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC)), false},
		{"alerted next month", timeRef(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := alreadyAlertedThisMonth(tt.last, now); got != tt.want {
				t.Errorf("alreadyAlertedThisMonth = %v, want %v", got, tt.want)
			}
		})
	}
}

func timeRef(t time.Time) *time.Time { return &t }
