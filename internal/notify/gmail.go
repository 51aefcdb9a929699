// Package notify delivers budget alert emails through the Gmail API on
// behalf of the service's own mailbox, authorized once via cmd/oauth-init.
package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"
)

// Notifier sends a budget alert to an owner's email address.
type Notifier interface {
	SendBudgetAlert(ctx context.Context, to string, alert BudgetAlert) error
}

// BudgetAlert carries the rendered numbers for the alert email. Amounts are
// preformatted strings so the notifier stays free of money arithmetic.
type BudgetAlert struct {
	Amount      string
	Spent       string
	Remaining   string
	PercentUsed float64
	Currency    string
}

// GmailNotifier sends mail as the configured sender through the Gmail API.
type GmailNotifier struct {
	svc    *gmail.Service
	sender string
}

// Config points the notifier at OAuth credentials. JSON values win over file
// paths so container deployments can inject secrets directly.
type Config struct {
	ClientFile string
	TokenFile  string
	ClientJSON string
	TokenJSON  string
	Sender     string
}

func NewGmailNotifier(ctx context.Context, cfg Config) (*GmailNotifier, error) {
	if cfg.Sender == "" {
		return nil, errors.New("gmail notifier: sender address not configured")
	}

	clientBytes, err := readSecret(cfg.ClientJSON, cfg.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("load oauth client: %w", err)
	}
	tokenBytes, err := readSecret(cfg.TokenJSON, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("load oauth token: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(clientBytes, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	svc, err := gmail.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	return &GmailNotifier{svc: svc, sender: cfg.Sender}, nil
}

func readSecret(inline, file string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if file != "" {
		return os.ReadFile(file)
	}
	return nil, errors.New("neither inline JSON nor file path configured")
}

// SendBudgetAlert emails the owner that they crossed the alert threshold.
func (n *GmailNotifier) SendBudgetAlert(ctx context.Context, to string, alert BudgetAlert) error {
	raw := encodeMessage(n.sender, to, alertSubject(alert), alertBody(alert))
	_, err := n.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}

func alertSubject(alert BudgetAlert) string {
	return fmt.Sprintf("Budget alert: %.1f%% of your monthly budget used", alert.PercentUsed)
}

func alertBody(alert BudgetAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have used %.1f%% of your monthly budget.\r\n\r\n", alert.PercentUsed)
	fmt.Fprintf(&b, "Budget:    %s %s\r\n", alert.Amount, alert.Currency)
	fmt.Fprintf(&b, "Spent:     %s %s\r\n", alert.Spent, alert.Currency)
	fmt.Fprintf(&b, "Remaining: %s %s\r\n", alert.Remaining, alert.Currency)
	return b.String()
}

// encodeMessage builds an RFC 822 message and encodes it the way the Gmail
// API expects: base64url without padding.
func encodeMessage(from, to, subject, body string) string {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		from, to, subject, body)
	return base64.RawURLEncoding.EncodeToString([]byte(msg))
}
