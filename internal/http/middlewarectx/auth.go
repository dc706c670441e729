// Package middlewarectx содержит HTTP middleware сервиса.
//
// JWTMiddleware достаёт токен из заголовка Authorization или из cookie,
// проверяет его через сервис аутентификации и кладёт пользователя в контекст.
// Cookie принимается только на безопасных методах: она уходит и с чужих
// сайтов (SameSite=None), поэтому изменяющие запросы требуют заголовка.
// В случае ошибки возвращает конверт с кодом 401, 403 или 404.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User ключ текущего пользователя в контексте.
const User Key = "user"

// Authenticator проверяет токен и возвращает пользователя.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// TokenFromRequest токен из заголовка "Authorization: Bearer" или из cookie.
// Cookie читается только для GET, HEAD и OPTIONS.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	if !safeMethod(r.Method) {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// JWTMiddleware пропускает запрос только с действующим токеном.
func JWTMiddleware(auth Authenticator, cookieName string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token := TokenFromRequest(r, cookieName)
			if token == "" {
				log.Info("missing or invalid authorization header")
				response.Write(w, r, response.Error(http.StatusUnauthorized, "Not authenticated"))
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				response.WriteError(w, r, log, "authentication failed", apperr.As(err))
				return
			}

			ctx := context.WithValue(r.Context(), User, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext пользователь, сохранённый JWTMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(User).(*models.User)
	return u, ok && u != nil
}
