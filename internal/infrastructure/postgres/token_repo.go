package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aidarbek/user-accounts/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool, now: time.Now}
}

// liveCutoff is the oldest inserted_at a token of the given context may
// carry and still resolve. An unknown context has a zero validity window,
// so nothing is ever live under it.
func (r *TokenRepository) liveCutoff(tokenContext string) time.Time {
	return r.now().Add(-domain.Validity(tokenContext))
}

func (r *TokenRepository) Insert(ctx context.Context, token *domain.UserToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_tokens (user_id, token, context, sent_to)
		 VALUES ($1, $2, $3, NULLIF($4, ''))`,
		token.UserID, token.Token, token.Context, token.SentTo,
	)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetUserBySessionToken(ctx context.Context, token []byte) (*domain.User, error) {
	cutoff := r.liveCutoff(domain.ContextSession)
	row := r.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.hashed_password, u.confirmed_at, u.created_at, u.updated_at
		 FROM users u
		 JOIN user_tokens t ON t.user_id = u.id
		 WHERE t.token = $1 AND t.context = $2 AND t.inserted_at > $3`,
		token, domain.ContextSession, cutoff,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}
	return u, nil
}

func (r *TokenRepository) GetUserByEmailToken(ctx context.Context, hash []byte, tokenContext string) (*domain.User, error) {
	cutoff := r.liveCutoff(tokenContext)
	// sent_to must still match the user's current email: an address
	// change in the meantime invalidates in-flight confirm/reset links.
	row := r.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.hashed_password, u.confirmed_at, u.created_at, u.updated_at
		 FROM users u
		 JOIN user_tokens t ON t.user_id = u.id
		 WHERE t.token = $1 AND t.context = $2 AND t.inserted_at > $3
		   AND lower(t.sent_to) = lower(u.email)`,
		hash, tokenContext, cutoff,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}
	return u, nil
}

func (r *TokenRepository) GetByHashAndContext(ctx context.Context, hash []byte, tokenContext string) (*domain.UserToken, error) {
	cutoff := r.liveCutoff(tokenContext)
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, token, context, COALESCE(sent_to, ''), inserted_at
		 FROM user_tokens
		 WHERE token = $1 AND context = $2 AND inserted_at > $3`,
		hash, tokenContext, cutoff,
	)

	var t domain.UserToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.Context, &t.SentTo, &t.InsertedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return &t, nil
}

func (r *TokenRepository) DeleteSession(ctx context.Context, token []byte) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_tokens WHERE token = $1 AND context = $2`,
		token, domain.ContextSession,
	)
	if err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_tokens
		 WHERE (context = $1 AND inserted_at < $2)
		    OR (context = $3 AND inserted_at < $4)
		    OR (context = $5 AND inserted_at < $6)
		    OR (context LIKE 'change:%' AND inserted_at < $7)`,
		domain.ContextSession, r.liveCutoff(domain.ContextSession),
		domain.ContextConfirm, r.liveCutoff(domain.ContextConfirm),
		domain.ContextResetPassword, r.liveCutoff(domain.ContextResetPassword),
		r.liveCutoff(domain.ChangeEmailContext("")),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
