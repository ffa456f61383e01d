package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aidarbek/user-accounts/internal/domain"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, hashed_password, confirmed_at, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, hashed_password) VALUES ($1, $2)
		 RETURNING `+userColumns,
		user.Email, user.HashedPassword,
	)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) UpdateEmail(ctx context.Context, userID, newEmail, revokeContext string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET email = $1, updated_at = now() WHERE id = $2`,
			newEmail, userID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrEmailTaken
			}
			return fmt.Errorf("update email: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM user_tokens WHERE user_id = $1 AND context = $2`,
			userID, revokeContext,
		); err != nil {
			return fmt.Errorf("revoke change tokens: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hashedPassword string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET hashed_password = $1, updated_at = now() WHERE id = $2`,
			hashedPassword, userID,
		)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}

		// A password change revokes every token the user holds, sessions
		// included.
		if _, err := tx.Exec(ctx,
			`DELETE FROM user_tokens WHERE user_id = $1`, userID,
		); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) Confirm(ctx context.Context, userID string, confirmedAt time.Time) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET confirmed_at = $1, updated_at = now() WHERE id = $2`,
			confirmedAt, userID,
		)
		if err != nil {
			return fmt.Errorf("confirm user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM user_tokens WHERE user_id = $1 AND context = $2`,
			userID, domain.ContextConfirm,
		); err != nil {
			return fmt.Errorf("delete confirm tokens: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.ConfirmedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
