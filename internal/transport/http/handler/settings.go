package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aidarbek/user-accounts/internal/domain"
	"github.com/aidarbek/user-accounts/internal/metrics"
	"github.com/aidarbek/user-accounts/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

type settingsUsecaser interface {
	ApplyEmailChange(ctx context.Context, user *domain.User, newEmail, currentPassword string) error
	UpdateEmail(ctx context.Context, user *domain.User, rawToken string) error
	UpdatePassword(ctx context.Context, user *domain.User, currentPassword, newPassword string) (string, error)
}

// SettingsHandler serves the authenticated account-management routes.
// Every method assumes middleware.Auth has already run.
type SettingsHandler struct {
	accounts      settingsUsecaser
	logger        *slog.Logger
	secureCookies bool
}

func NewSettingsHandler(accounts settingsUsecaser, logger *slog.Logger, secureCookies bool) *SettingsHandler {
	return &SettingsHandler{
		accounts:      accounts,
		logger:        logger.With("component", "settings_handler"),
		secureCookies: secureCookies,
	}
}

// GET /users/me
func (h *SettingsHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, newUserResponse(middleware.CurrentUser(c)))
}

type updateEmailRequest struct {
	Email           string `json:"email" binding:"required"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

// PUT /users/settings/email
// Emails a change token to the new address; the email itself only
// changes once the token comes back via ConfirmEmail.
func (h *SettingsHandler) UpdateEmail(c *gin.Context) {
	var req updateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	err := h.accounts.ApplyEmailChange(c.Request.Context(), user, req.Email, req.CurrentPassword)
	if err != nil {
		if respondChangeset(c, err) {
			return
		}
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "apply email change", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	metrics.EmailsSentTotal.WithLabelValues("change_email").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message": "A link to confirm your email change has been sent to the new address",
	})
}

// POST /users/settings/confirm-email/:token
func (h *SettingsHandler) ConfirmEmail(c *gin.Context) {
	user := middleware.CurrentUser(c)
	err := h.accounts.UpdateEmail(c.Request.Context(), user, c.Param("token"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenInvalid):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errTokenInvalid})
		case errors.Is(err, domain.ErrEmailTaken):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"errors": map[string][]string{"email": {"has already been taken"}},
			})
		default:
			h.logger.ErrorContext(c.Request.Context(), "update email", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email changed successfully"})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

// PUT /users/settings/password
// Revokes every session and hands the caller a fresh token so only the
// client that changed the password stays logged in.
func (h *SettingsHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	token, err := h.accounts.UpdatePassword(c.Request.Context(), user, req.CurrentPassword, req.Password)
	if err != nil {
		if respondChangeset(c, err) {
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "update password", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	metrics.SessionsIssuedTotal.Inc()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token,
		int(domain.SessionValidity.Seconds()), "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}
