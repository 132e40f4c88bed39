package mailer

import (
	"context"
	"testing"
)

func TestResetLink(t *testing.T) {
	link, err := ResetLink("https://app.example.com/reset-password?lang=fr", "abc_123")
	if err != nil {
		t.Fatalf("link error: %v", err)
	}
	if link != "https://app.example.com/reset-password?lang=fr&token=abc_123" {
		t.Fatalf("unexpected link %s", link)
	}
	if _, err := ResetLink("://bad", "t"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLogMailer(t *testing.T) {
	var m Mailer = LogMailer{}
	if err := m.SendPasswordReset(context.Background(), PasswordReset{Email: "a@b.c", Link: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
