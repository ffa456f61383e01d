package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/aidarbek/user-accounts/internal/domain"
	"github.com/aidarbek/user-accounts/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	resolve func(ctx context.Context, raw string) (*domain.User, error)
}

func (f *fakeResolver) GetUserBySessionToken(ctx context.Context, raw string) (*domain.User, error) {
	return f.resolve(ctx, raw)
}

// newEngine protects GET /protected with Auth. The handler echoes the
// current user's email so we can assert it was set.
func newEngine(resolver *fakeResolver) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	r := gin.New()
	r.GET("/protected", middleware.Auth(resolver, logger), func(c *gin.Context) {
		c.String(http.StatusOK, middleware.CurrentUser(c).Email)
	})
	return r
}

func validResolver(t *testing.T, want string) *fakeResolver {
	return &fakeResolver{
		resolve: func(_ context.Context, raw string) (*domain.User, error) {
			if raw != want {
				t.Errorf("resolved token %q, want %q", raw, want)
				return nil, domain.ErrTokenInvalid
			}
			return &domain.User{ID: "user-1", Email: "test@example.com"}, nil
		},
	}
}

func TestAuth_MissingToken_Returns401(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	newEngine(&fakeResolver{}).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_NonBearerScheme_Returns401(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	newEngine(&fakeResolver{}).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_InvalidToken_Returns401(t *testing.T) {
	resolver := &fakeResolver{
		resolve: func(_ context.Context, _ string) (*domain.User, error) {
			return nil, domain.ErrTokenInvalid
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	newEngine(resolver).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_ResolverFailure_Returns401(t *testing.T) {
	resolver := &fakeResolver{
		resolve: func(_ context.Context, _ string) (*domain.User, error) {
			return nil, errors.New("db down")
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	newEngine(resolver).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_BearerToken_SetsCurrentUser(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	newEngine(validResolver(t, "good-token")).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "test@example.com" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestAuth_SessionCookie_SetsCurrentUser(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "cookie-token"})
	newEngine(validResolver(t, "cookie-token")).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestAuth_HeaderWinsOverCookie(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "cookie-token"})
	newEngine(validResolver(t, "header-token")).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
