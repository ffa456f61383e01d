package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"
	"time"
)

// Token contexts. Change-email tokens embed the address the change was
// requested from, so a stale token cannot be replayed after the email
// has already moved on.
const (
	ContextSession       = "session"
	ContextConfirm       = "confirm"
	ContextResetPassword = "reset_password"

	changeEmailPrefix = "change:"
)

// Validity windows per token context. Liveness is always a comparison of
// the stored inserted_at against now minus the window — the tokens
// themselves carry no expiry.
const (
	SessionValidity     = 60 * 24 * time.Hour
	ConfirmValidity     = 7 * 24 * time.Hour
	ChangeEmailValidity = 7 * 24 * time.Hour
	ResetValidity       = 24 * time.Hour
)

const tokenSize = 32

type UserToken struct {
	ID         string
	UserID     string
	Token      []byte
	Context    string
	SentTo     string
	InsertedAt time.Time
}

// ChangeEmailContext tags a change-email token with the address it is
// migrating away from.
func ChangeEmailContext(currentEmail string) string {
	return changeEmailPrefix + currentEmail
}

// Validity returns the liveness window for a token context.
func Validity(context string) time.Duration {
	switch {
	case context == ContextSession:
		return SessionValidity
	case context == ContextConfirm:
		return ConfirmValidity
	case context == ContextResetPassword:
		return ResetValidity
	case strings.HasPrefix(context, changeEmailPrefix):
		return ChangeEmailValidity
	}
	return 0
}

// BuildSessionToken generates a session token. The raw value is both what
// the client receives and what is stored — session tokens never leave the
// server except to their owner, so hashing them buys nothing.
func BuildSessionToken(userID string) (raw string, token *UserToken, err error) {
	b, err := randomBytes()
	if err != nil {
		return "", nil, err
	}
	return base64.RawURLEncoding.EncodeToString(b), &UserToken{
		UserID:  userID,
		Token:   b,
		Context: ContextSession,
	}, nil
}

// BuildEmailToken generates a token that will be delivered over email.
// Only the SHA-256 hash is stored; possession of the database does not
// grant use of in-flight confirmation or reset links.
func BuildEmailToken(userID, sentTo, context string) (raw string, token *UserToken, err error) {
	b, err := randomBytes()
	if err != nil {
		return "", nil, err
	}
	hash := sha256.Sum256(b)
	return base64.RawURLEncoding.EncodeToString(b), &UserToken{
		UserID:  userID,
		Token:   hash[:],
		Context: context,
		SentTo:  sentTo,
	}, nil
}

// DecodeSessionToken recovers the stored byte form of a raw session token.
func DecodeSessionToken(raw string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return b, nil
}

// HashEmailToken maps a raw emailed token to its stored hash.
func HashEmailToken(raw string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

func randomBytes() ([]byte, error) {
	b := make([]byte, tokenSize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
