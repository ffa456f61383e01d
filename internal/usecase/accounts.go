package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aidarbek/user-accounts/internal/changeset"
	"github.com/aidarbek/user-accounts/internal/domain"
	"github.com/aidarbek/user-accounts/internal/email"
	"github.com/aidarbek/user-accounts/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	passwordMinLen = 12
	passwordMaxLen = 72
)

// dummyHash is a valid bcrypt hash of a throwaway value. Authenticate runs
// a comparison against it when the email is unknown so response timing
// does not reveal whether an account exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type AccountsUsecase struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	email      email.Sender
	bcryptCost int
	baseURL    string
}

func NewAccountsUsecase(users repository.UserRepository, tokens repository.TokenRepository, emailSender email.Sender, bcryptCost int, baseURL string) *AccountsUsecase {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountsUsecase{
		users:      users,
		tokens:     tokens,
		email:      emailSender,
		bcryptCost: bcryptCost,
		baseURL:    baseURL,
	}
}

// Register validates and creates a new user. Validation failures,
// including a taken email, come back as a *changeset.Changeset error.
func (u *AccountsUsecase) Register(ctx context.Context, emailAddr, password string) (*domain.User, error) {
	cs := changeset.New()
	cs.Required("email", emailAddr).Email("email", emailAddr)
	cs.Required("password", password).Length("password", password, passwordMinLen, passwordMaxLen)
	if !cs.Valid() {
		return nil, cs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := u.users.Create(ctx, &domain.User{
		Email:          emailAddr,
		HashedPassword: string(hash),
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			cs.Add("email", "has already been taken")
			return nil, cs
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies an email/password pair. The error is the same
// generic domain.ErrInvalidCredentials whether the email is unknown or
// the password wrong.
func (u *AccountsUsecase) Authenticate(ctx context.Context, emailAddr, password string) (*domain.User, error) {
	user, err := u.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Burn the same bcrypt work as a real comparison.
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// IssueSessionToken creates a session token and returns its raw form for
// the client.
func (u *AccountsUsecase) IssueSessionToken(ctx context.Context, userID string) (string, error) {
	raw, token, err := domain.BuildSessionToken(userID)
	if err != nil {
		return "", fmt.Errorf("build session token: %w", err)
	}
	if err := u.tokens.Insert(ctx, token); err != nil {
		return "", fmt.Errorf("store session token: %w", err)
	}
	return raw, nil
}

// GetUserBySessionToken resolves a raw session token to its user, if the
// token is live.
func (u *AccountsUsecase) GetUserBySessionToken(ctx context.Context, raw string) (*domain.User, error) {
	token, err := domain.DecodeSessionToken(raw)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	return u.tokens.GetUserBySessionToken(ctx, token)
}

// DeleteSessionToken logs a session out. Unknown tokens are a no-op.
func (u *AccountsUsecase) DeleteSessionToken(ctx context.Context, raw string) error {
	token, err := domain.DecodeSessionToken(raw)
	if err != nil {
		return nil
	}
	return u.tokens.DeleteSession(ctx, token)
}

// DeliverConfirmationInstructions emails a confirmation link. Returns
// domain.ErrAlreadyConfirmed when there is nothing left to confirm.
func (u *AccountsUsecase) DeliverConfirmationInstructions(ctx context.Context, emailAddr string) error {
	user, err := u.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.Confirmed() {
		return domain.ErrAlreadyConfirmed
	}

	raw, token, err := domain.BuildEmailToken(user.ID, user.Email, domain.ContextConfirm)
	if err != nil {
		return fmt.Errorf("build confirm token: %w", err)
	}
	if err := u.tokens.Insert(ctx, token); err != nil {
		return fmt.Errorf("store confirm token: %w", err)
	}

	link := u.baseURL + "/users/confirm/" + raw
	body := fmt.Sprintf(
		`<p>You can confirm your account by visiting the link below:</p><p><a href="%s">%s</a></p><p>If you didn't create an account with us, please ignore this.</p>`,
		link, link,
	)
	if err := u.email.Send(ctx, user.Email, "Confirmation instructions", body); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

// ConfirmUser consumes a confirmation token and stamps confirmed_at.
func (u *AccountsUsecase) ConfirmUser(ctx context.Context, rawToken string) (*domain.User, error) {
	hash, err := domain.HashEmailToken(rawToken)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	user, err := u.tokens.GetUserByEmailToken(ctx, hash, domain.ContextConfirm)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := u.users.Confirm(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("confirm user: %w", err)
	}
	user.ConfirmedAt = &now
	return user, nil
}

// DeliverResetPasswordInstructions emails a reset link.
func (u *AccountsUsecase) DeliverResetPasswordInstructions(ctx context.Context, emailAddr string) error {
	user, err := u.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}

	raw, token, err := domain.BuildEmailToken(user.ID, user.Email, domain.ContextResetPassword)
	if err != nil {
		return fmt.Errorf("build reset token: %w", err)
	}
	if err := u.tokens.Insert(ctx, token); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := u.baseURL + "/users/reset-password/" + raw
	body := fmt.Sprintf(
		`<p>You can reset your password by visiting the link below:</p><p><a href="%s">%s</a></p><p>If you didn't request this change, please ignore this.</p>`,
		link, link,
	)
	if err := u.email.Send(ctx, user.Email, "Reset password instructions", body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// GetUserByResetToken resolves a live reset token without consuming it.
func (u *AccountsUsecase) GetUserByResetToken(ctx context.Context, rawToken string) (*domain.User, error) {
	hash, err := domain.HashEmailToken(rawToken)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	return u.tokens.GetUserByEmailToken(ctx, hash, domain.ContextResetPassword)
}

// ResetPassword consumes a reset token and sets a new password. All of
// the user's tokens are revoked.
func (u *AccountsUsecase) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	user, err := u.GetUserByResetToken(ctx, rawToken)
	if err != nil {
		return err
	}

	cs := changeset.New()
	cs.Required("password", newPassword).Length("password", newPassword, passwordMinLen, passwordMaxLen)
	if !cs.Valid() {
		return cs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), u.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := u.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// ApplyEmailChange validates a requested email change and emails a
// change token to the new address. The user's email is untouched until
// the token is presented back via UpdateEmail.
func (u *AccountsUsecase) ApplyEmailChange(ctx context.Context, user *domain.User, newEmail, currentPassword string) error {
	cs := changeset.New()
	cs.Required("email", newEmail).Email("email", newEmail)
	if strings.EqualFold(newEmail, user.Email) {
		cs.Add("email", "did not change")
	}
	if cs.Valid() {
		if _, err := u.users.GetByEmail(ctx, newEmail); err == nil {
			cs.Add("email", "has already been taken")
		}
	}
	if !cs.Valid() {
		return cs
	}

	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(currentPassword)) != nil {
		return domain.ErrInvalidCredentials
	}

	raw, token, err := domain.BuildEmailToken(user.ID, newEmail, domain.ChangeEmailContext(user.Email))
	if err != nil {
		return fmt.Errorf("build change token: %w", err)
	}
	if err := u.tokens.Insert(ctx, token); err != nil {
		return fmt.Errorf("store change token: %w", err)
	}

	link := u.baseURL + "/users/settings/confirm-email/" + raw
	body := fmt.Sprintf(
		`<p>You can change your email by visiting the link below:</p><p><a href="%s">%s</a></p><p>If you didn't request this change, please ignore this.</p>`,
		link, link,
	)
	if err := u.email.Send(ctx, newEmail, "Update email instructions", body); err != nil {
		return fmt.Errorf("send change email: %w", err)
	}
	return nil
}

// UpdateEmail applies a previously requested email change. The token is
// only valid for the email it was issued against, and all tokens in that
// change context are deleted with the update.
func (u *AccountsUsecase) UpdateEmail(ctx context.Context, user *domain.User, rawToken string) error {
	hash, err := domain.HashEmailToken(rawToken)
	if err != nil {
		return domain.ErrTokenInvalid
	}

	tokenContext := domain.ChangeEmailContext(user.Email)
	token, err := u.tokens.GetByHashAndContext(ctx, hash, tokenContext)
	if err != nil {
		return err
	}
	if token.UserID != user.ID {
		return domain.ErrTokenInvalid
	}

	if err := u.users.UpdateEmail(ctx, user.ID, token.SentTo, tokenContext); err != nil {
		return err
	}
	return nil
}

// UpdatePassword changes the password of a logged-in user. The current
// password must check out, every existing token is revoked, and a fresh
// session token for this client is returned.
func (u *AccountsUsecase) UpdatePassword(ctx context.Context, user *domain.User, currentPassword, newPassword string) (string, error) {
	cs := changeset.New()
	cs.Required("password", newPassword).Length("password", newPassword, passwordMinLen, passwordMaxLen)
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(currentPassword)) != nil {
		cs.Add("current_password", "is not valid")
	}
	if !cs.Valid() {
		return "", cs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), u.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := u.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}

	return u.IssueSessionToken(ctx, user.ID)
}
