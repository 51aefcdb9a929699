package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage tells the alert worker that an owner crossed the alert
// threshold. Amounts travel as strings to keep decimal precision on the wire;
// the worker re-reads the budget before sending, so the payload is advisory.
type BudgetAlertMessage struct {
	OwnerID     string    `json:"owner_id"`
	BudgetID    string    `json:"budget_id"`
	Amount      string    `json:"amount"`
	Spent       string    `json:"spent"`
	PercentUsed float64   `json:"percent_used"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage creates an alert message stamped with the current time.
func NewBudgetAlertMessage(ownerID, budgetID, amount, spent string, percentUsed float64, currency string) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		OwnerID:     ownerID,
		BudgetID:    budgetID,
		Amount:      amount,
		Spent:       spent,
		PercentUsed: percentUsed,
		Currency:    currency,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetAlertMessageFromJSON creates a message from JSON bytes.
func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
