package notify

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncodeMessage(t *testing.T) {
	raw := encodeMessage("bot@example.com", "alice@example.com", "Budget alert", "body text")

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw message is not padless base64url: %v", err)
	}
	msg := string(decoded)

	for _, want := range []string{
		"From: bot@example.com",
		"To: alice@example.com",
		"Subject: Budget alert",
		"\r\n\r\nbody text",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestAlertRendering(t *testing.T) {
	alert := BudgetAlert{
		Amount:      "500.00",
		Spent:       "462.50",
		Remaining:   "37.50",
		PercentUsed: 92.5,
		Currency:    "EUR",
	}

	if got := alertSubject(alert); !strings.Contains(got, "92.5%") {
		t.Errorf("subject = %q, want the percentage", got)
	}
	body := alertBody(alert)
	for _, want := range []string{"462.50 EUR", "37.50 EUR", "92.5%"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestReadSecretPrecedence(t *testing.T) {
	got, err := readSecret(`{"inline":true}`, "ignored-path")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"inline":true}` {
		t.Fatalf("inline JSON must win over file path, got %s", got)
	}

	if _, err := readSecret("", ""); err == nil {
		t.Fatal("expected error when nothing is configured")
	}
}
