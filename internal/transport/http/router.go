package httptransport

import (
	"context"
	"log/slog"

	"github.com/aidarbek/user-accounts/internal/transport/http/handler"
	"github.com/aidarbek/user-accounts/internal/transport/http/middleware"
	"github.com/aidarbek/user-accounts/internal/usecase"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(ctx context.Context, logger *slog.Logger, accounts *usecase.AccountsUsecase, authHandler *handler.AuthHandler, settingsHandler *handler.SettingsHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(accounts, logger)
	// 1 req/s with a burst of 5 per IP on the credential endpoints.
	credentialLimit := middleware.NewRateLimiter(ctx, rate.Limit(1), 5).Limit()

	users := r.Group("/users")
	users.POST("/register", credentialLimit, authHandler.Register)
	users.POST("/log-in", credentialLimit, authHandler.LogIn)
	users.DELETE("/log-out", authMW, authHandler.LogOut)

	users.POST("/confirm", credentialLimit, authHandler.DeliverConfirmation)
	users.POST("/confirm/:token", authHandler.Confirm)
	users.POST("/reset-password", credentialLimit, authHandler.DeliverResetPassword)
	users.PUT("/reset-password/:token", credentialLimit, authHandler.ResetPassword)

	users.GET("/me", authMW, settingsHandler.Me)
	settings := users.Group("/settings", authMW)
	settings.PUT("/email", settingsHandler.UpdateEmail)
	settings.POST("/confirm-email/:token", settingsHandler.ConfirmEmail)
	settings.PUT("/password", settingsHandler.UpdatePassword)

	return r
}
