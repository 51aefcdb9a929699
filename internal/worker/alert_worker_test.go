package worker

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
	"github.com/Amansingh0807/OptExAI/internal/notify"
	"github.com/Amansingh0807/OptExAI/internal/services"
	"github.com/Amansingh0807/OptExAI/internal/storage"
)

type fakeNotifier struct {
	sent []notify.BudgetAlert
	to   []string
	err  error
}

func (f *fakeNotifier) SendBudgetAlert(ctx context.Context, to string, alert notify.BudgetAlert) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.sent = append(f.sent, alert)
	return nil
}

type AlertWorkerSuite struct {
	suite.Suite
	repo     *storage.Repository
	ctx      context.Context
	owner    core.User
	notifier *fakeNotifier
	worker   *AlertWorker
}

func TestAlertWorkerSuite(t *testing.T) {
	suite.Run(t, new(AlertWorkerSuite))
}

func (s *AlertWorkerSuite) SetupTest() {
	repo, err := storage.Open(":memory:")
	s.Require().NoError(err)
	s.repo = repo
	s.ctx = context.Background()

	s.owner, err = repo.CreateUser(s.ctx, core.User{Token: "tok", Email: "alice@example.com"})
	s.Require().NoError(err)

	acct, err := repo.CreateAccount(s.ctx, core.Account{
		OwnerID: s.owner.ID, Name: "Checking", Type: core.AccountCurrent,
		Balance: decimal.NewFromInt(1000), Currency: "USD",
	})
	s.Require().NoError(err)

	// 95 spent against a 100 budget this month.
	_, err = repo.CreateTransaction(s.ctx, core.Transaction{
		OwnerID: s.owner.ID, AccountID: acct.ID, Type: core.Expense,
		Amount: decimal.NewFromInt(95), Category: "groceries",
		Date: time.Now().UTC().Add(-time.Hour),
	})
	s.Require().NoError(err)
	_, err = repo.UpsertBudget(s.ctx, s.owner.ID, decimal.NewFromInt(100))
	s.Require().NoError(err)

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	conv := currency.NewConverter(currency.NewFixedCache(map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
	}))
	budgets := services.NewBudgetService(repo, conv, nil, logger)
	s.notifier = &fakeNotifier{}
	s.worker = NewAlertWorker(repo, budgets, s.notifier, logger)
}

func (s *AlertWorkerSuite) TearDownTest() {
	s.repo.Close()
}

func (s *AlertWorkerSuite) event() *amqp.BudgetAlertMessage {
	return amqp.NewBudgetAlertMessage(s.owner.ID, "budget-id", "100", "95", 95, "USD")
}

func (s *AlertWorkerSuite) TestDeliversAndStamps() {
	s.Require().NoError(s.worker.HandleAlertMessage(s.ctx, s.event()))

	s.Require().Len(s.notifier.sent, 1)
	s.Equal("alice@example.com", s.notifier.to[0])
	s.Equal("95.00", s.notifier.sent[0].Spent)
	s.Equal("5.00", s.notifier.sent[0].Remaining)

	b, err := s.repo.GetBudget(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.NotNil(b.LastAlertSent, "delivery must stamp the budget")
}

func (s *AlertWorkerSuite) TestDuplicateEventSendsOnce() {
	s.Require().NoError(s.worker.HandleAlertMessage(s.ctx, s.event()))
	s.Require().NoError(s.worker.HandleAlertMessage(s.ctx, s.event()))
	s.Len(s.notifier.sent, 1, "second delivery this month must be dropped")
}

func (s *AlertWorkerSuite) TestFailedSendLeavesStampUnset() {
	s.notifier.err = errors.New("smtp down")
	err := s.worker.HandleAlertMessage(s.ctx, s.event())
	s.Require().Error(err, "failed delivery must nack for retry")

	b, err := s.repo.GetBudget(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.Nil(b.LastAlertSent, "no stamp without a delivered email")
}

func (s *AlertWorkerSuite) TestStaleEventBelowThresholdDropped() {
	// Budget raised since the event was published; usage is now 47.5%.
	_, err := s.repo.UpsertBudget(s.ctx, s.owner.ID, decimal.NewFromInt(200))
	s.Require().NoError(err)

	s.Require().NoError(s.worker.HandleAlertMessage(s.ctx, s.event()))
	s.Empty(s.notifier.sent)
}

func (s *AlertWorkerSuite) TestEventForMissingBudgetDropped() {
	s.Require().NoError(s.repo.DeleteBudget(s.ctx, s.owner.ID))
	s.Require().NoError(s.worker.HandleAlertMessage(s.ctx, s.event()))
	s.Empty(s.notifier.sent)
}
