package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email has already been taken")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAlreadyConfirmed   = errors.New("user already confirmed")
	ErrUnauthorized       = errors.New("unauthorized")
)

type User struct {
	ID             string
	Email          string
	HashedPassword string

	// Password is only ever populated in memory while a registration or
	// password change is being validated. It is never persisted and is
	// excluded from every string and log representation.
	Password string `json:"-"`

	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) Confirmed() bool {
	return u.ConfirmedAt != nil
}

// String implements fmt.Stringer. Password and HashedPassword are redacted
// so a user printed with %v or %s can never leak credentials.
func (u *User) String() string {
	return fmt.Sprintf("User{ID:%s Email:%s ConfirmedAt:%v}", u.ID, u.Email, u.ConfirmedAt)
}

// LogValue implements slog.LogValuer with the same redaction as String.
func (u *User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", u.ID),
		slog.String("email", u.Email),
		slog.Bool("confirmed", u.Confirmed()),
	)
}
