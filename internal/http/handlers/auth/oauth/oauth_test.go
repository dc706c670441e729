package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
	bridge "github.com/magabrotheeeer/gregai-backend/internal/oauth"
)

type fakeBridge struct {
	identity    *bridge.Identity
	callbackErr error
}

func (f *fakeBridge) Has(provider string) bool { return provider == bridge.ProviderGoogle }

func (f *fakeBridge) Start(_ http.ResponseWriter, _ *http.Request, provider string) (string, error) {
	return "https://accounts.example.com/auth?state=nonce&provider=" + provider, nil
}

func (f *fakeBridge) Callback(_ http.ResponseWriter, _ *http.Request, _ string) (*bridge.Identity, error) {
	return f.identity, f.callbackErr
}

type fakeService struct {
	err error
	got *bridge.Identity
}

func (f *fakeService) OAuthLogin(_ context.Context, id *bridge.Identity) (*models.User, string, error) {
	f.got = id
	if f.err != nil {
		return nil, "", f.err
	}
	return &models.User{ID: "1", Email: id.Email}, "tok", nil
}

type cookieRecorder struct{ token string }

func (c *cookieRecorder) SetCrossSite(_ http.ResponseWriter, token string) { c.token = token }

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/auth/login/{provider}", h.Start)
	r.Get("/api/v1/auth/callback/{provider}", h.Callback)
	return r
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStart(t *testing.T) {
	h := New(newNoopLogger(), &fakeBridge{}, &fakeService{}, &cookieRecorder{}, "https://app.example.com/")
	router := newRouter(h)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/login/google", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "state=nonce")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/login/myspace", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCallback(t *testing.T) {
	identity := &bridge.Identity{Provider: bridge.ProviderGoogle, Email: "a@example.com", EmailVerified: true}

	tests := []struct {
		name         string
		bridge       *fakeBridge
		service      *fakeService
		wantLocation string
		wantCookie   bool
	}{
		{
			name:         "success",
			bridge:       &fakeBridge{identity: identity},
			service:      &fakeService{},
			wantLocation: "https://app.example.com",
			wantCookie:   true,
		},
		{
			name:         "state mismatch",
			bridge:       &fakeBridge{callbackErr: fmt.Errorf("wrap: %w", bridge.ErrStateMismatch)},
			service:      &fakeService{},
			wantLocation: "https://app.example.com/login?error=invalid_state",
		},
		{
			name:         "provider denied",
			bridge:       &fakeBridge{callbackErr: bridge.ErrProviderDenied},
			service:      &fakeService{},
			wantLocation: "https://app.example.com/login?error=access_denied",
		},
		{
			name:         "login failed",
			bridge:       &fakeBridge{identity: identity},
			service:      &fakeService{err: errors.New("db down")},
			wantLocation: "https://app.example.com/login?error=login_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookie := &cookieRecorder{}
			h := New(newNoopLogger(), tt.bridge, tt.service, cookie, "https://app.example.com")

			rr := httptest.NewRecorder()
			newRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/callback/google?state=x&code=y", nil))

			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
			assert.NotContains(t, rr.Header().Get("Location"), "tok")
			if tt.wantCookie {
				assert.Equal(t, "tok", cookie.token)
			} else {
				assert.Empty(t, cookie.token)
			}
		})
	}
}
