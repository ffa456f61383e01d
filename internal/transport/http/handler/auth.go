package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aidarbek/user-accounts/internal/changeset"
	"github.com/aidarbek/user-accounts/internal/domain"
	"github.com/aidarbek/user-accounts/internal/metrics"
	"github.com/aidarbek/user-accounts/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AccountsUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	IssueSessionToken(ctx context.Context, userID string) (string, error)
	DeleteSessionToken(ctx context.Context, raw string) error
	DeliverConfirmationInstructions(ctx context.Context, email string) error
	ConfirmUser(ctx context.Context, rawToken string) (*domain.User, error)
	DeliverResetPasswordInstructions(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
}

type AuthHandler struct {
	accounts      authUsecaser
	logger        *slog.Logger
	secureCookies bool
}

func NewAuthHandler(accounts authUsecaser, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		accounts:      accounts,
		logger:        logger.With("component", "auth_handler"),
		secureCookies: secureCookies,
	}
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		ConfirmedAt: u.ConfirmedAt,
		CreatedAt:   u.CreatedAt,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /users/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if respondChangeset(c, err) {
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "register user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	metrics.RegistrationsTotal.Inc()

	// Delivery failures are not the client's problem: the instructions
	// can be re-requested via POST /users/confirm.
	if err := h.accounts.DeliverConfirmationInstructions(c.Request.Context(), user.Email); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "deliver confirmation instructions", "error", err)
	} else {
		metrics.EmailsSentTotal.WithLabelValues("confirm").Inc()
	}

	c.JSON(http.StatusCreated, newUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /users/log-in
// The same 401 comes back for an unknown email and a wrong password.
func (h *AuthHandler) LogIn(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "authenticate", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	token, err := h.accounts.IssueSessionToken(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "issue session token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	metrics.SessionsIssuedTotal.Inc()

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{"token": token, "user": newUserResponse(user)})
}

// DELETE /users/log-out
func (h *AuthHandler) LogOut(c *gin.Context) {
	if raw := middleware.SessionToken(c); raw != "" {
		if err := h.accounts.DeleteSessionToken(c.Request.Context(), raw); err != nil {
			h.logger.ErrorContext(c.Request.Context(), "delete session token", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
			return
		}
	}

	h.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

type deliverRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /users/confirm
// Always answers 202 so the response does not reveal whether the email
// belongs to an account.
func (h *AuthHandler) DeliverConfirmation(c *gin.Context) {
	var req deliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.accounts.DeliverConfirmationInstructions(c.Request.Context(), req.Email)
	switch {
	case err == nil:
		metrics.EmailsSentTotal.WithLabelValues("confirm").Inc()
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrAlreadyConfirmed):
		// Nothing to do, and nothing to reveal.
	default:
		h.logger.ErrorContext(c.Request.Context(), "deliver confirmation instructions", "error", err)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "If your email is in our system and it has not been confirmed yet, you will receive instructions shortly",
	})
}

// POST /users/confirm/:token
func (h *AuthHandler) Confirm(c *gin.Context) {
	user, err := h.accounts.ConfirmUser(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errTokenInvalid})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "confirm user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// POST /users/reset-password
// Always answers 202, same as DeliverConfirmation.
func (h *AuthHandler) DeliverResetPassword(c *gin.Context) {
	var req deliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.accounts.DeliverResetPasswordInstructions(c.Request.Context(), req.Email)
	switch {
	case err == nil:
		metrics.EmailsSentTotal.WithLabelValues("reset_password").Inc()
	case errors.Is(err, domain.ErrUserNotFound):
	default:
		h.logger.ErrorContext(c.Request.Context(), "deliver reset instructions", "error", err)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "If your email is in our system, you will receive instructions to reset your password shortly",
	})
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// PUT /users/reset-password/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.accounts.ResetPassword(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errTokenInvalid})
			return
		}
		if respondChangeset(c, err) {
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "reset password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token,
		int(domain.SessionValidity.Seconds()), "/", "", h.secureCookies, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookies, true)
}

// respondChangeset writes the field-keyed error map for validation
// failures and reports whether it handled the error.
func respondChangeset(c *gin.Context, err error) bool {
	var cs *changeset.Changeset
	if errors.As(err, &cs) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": cs.Errors()})
		return true
	}
	return false
}
