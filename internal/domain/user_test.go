package domain_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aidarbek/user-accounts/internal/domain"
)

func TestUserString_RedactsPasswords(t *testing.T) {
	u := &domain.User{
		ID:             "user-1",
		Email:          "test@example.com",
		Password:       "super secret password",
		HashedPassword: "$2a$12$somethingopaque",
	}

	for _, format := range []string{"%v", "%s", "%+v"} {
		out := fmt.Sprintf(format, u)
		if strings.Contains(out, u.Password) {
			t.Errorf("format %s leaks password: %q", format, out)
		}
		if strings.Contains(out, u.HashedPassword) {
			t.Errorf("format %s leaks hashed password: %q", format, out)
		}
	}
}

func TestUserLogValue_RedactsPasswords(t *testing.T) {
	u := &domain.User{
		ID:             "user-1",
		Email:          "test@example.com",
		Password:       "super secret password",
		HashedPassword: "$2a$12$somethingopaque",
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("logged in", "user", u)

	out := buf.String()
	if strings.Contains(out, u.Password) || strings.Contains(out, u.HashedPassword) {
		t.Errorf("log output leaks credentials: %q", out)
	}
	if !strings.Contains(out, u.Email) {
		t.Errorf("log output missing email: %q", out)
	}
}

func TestConfirmed(t *testing.T) {
	u := &domain.User{}
	if u.Confirmed() {
		t.Error("user without confirmed_at reported confirmed")
	}
	now := time.Now()
	u.ConfirmedAt = &now
	if !u.Confirmed() {
		t.Error("user with confirmed_at reported unconfirmed")
	}
}
