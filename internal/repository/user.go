package repository

import (
	"context"
	"time"

	"github.com/aidarbek/user-accounts/internal/domain"
)

type UserRepository interface {
	// Create inserts a new user. A case-insensitive email collision is
	// reported as domain.ErrEmailTaken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateEmail sets the user's email and deletes every token in
	// revokeContext, in one transaction.
	UpdateEmail(ctx context.Context, userID, newEmail, revokeContext string) error
	// UpdatePassword sets the new hash and deletes ALL of the user's
	// tokens, in one transaction. Every session is revoked.
	UpdatePassword(ctx context.Context, userID, hashedPassword string) error
	// Confirm stamps confirmed_at and deletes the user's confirm tokens,
	// in one transaction.
	Confirm(ctx context.Context, userID string, confirmedAt time.Time) error
}

type TokenRepository interface {
	Insert(ctx context.Context, token *domain.UserToken) error

	// GetUserBySessionToken resolves a live session token to its user.
	// Tokens older than the session validity window do not resolve.
	GetUserBySessionToken(ctx context.Context, token []byte) (*domain.User, error)
	// GetUserByEmailToken resolves a hashed email token, additionally
	// requiring that the address it was sent to still matches the user's
	// current email.
	GetUserByEmailToken(ctx context.Context, hash []byte, tokenContext string) (*domain.User, error)
	// GetByHashAndContext fetches a live token row. Used by the
	// change-email flow, where sent_to holds the address being adopted.
	GetByHashAndContext(ctx context.Context, hash []byte, tokenContext string) (*domain.UserToken, error)

	DeleteSession(ctx context.Context, token []byte) error
	// DeleteExpired removes every token past its context's validity
	// window and reports how many rows went away.
	DeleteExpired(ctx context.Context) (int64, error)
}
