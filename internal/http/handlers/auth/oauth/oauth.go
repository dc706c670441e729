// Package oauth реализует вход через внешних провайдеров: перенаправление на
// экран согласия и обработку возврата. Любая ошибка возврата превращается
// в перенаправление на страницу входа фронтенда с кодом ошибки.
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
	bridge "github.com/magabrotheeeer/gregai-backend/internal/oauth"
)

// Bridge обмен с провайдером.
type Bridge interface {
	Has(provider string) bool
	Start(w http.ResponseWriter, r *http.Request, provider string) (string, error)
	Callback(w http.ResponseWriter, r *http.Request, provider string) (*bridge.Identity, error)
}

// Service вход или регистрация по подтверждённой личности.
type Service interface {
	OAuthLogin(ctx context.Context, id *bridge.Identity) (*models.User, string, error)
}

// Cookie выставляет токен при межсайтовом возврате.
type Cookie interface {
	SetCrossSite(w http.ResponseWriter, token string)
}

// Handler обработчики начала и завершения OAuth-входа.
type Handler struct {
	log         *slog.Logger
	bridge      Bridge
	service     Service
	cookie      Cookie
	frontendURL string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, b Bridge, service Service, cookie Cookie, frontendURL string) *Handler {
	return &Handler{
		log:         log,
		bridge:      b,
		service:     service,
		cookie:      cookie,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Start godoc
// @Summary Вход через провайдера
// @Description Перенаправляет на экран согласия провайдера (google, github).
// @Tags Auth
// @Param provider path string true "Провайдер"
// @Success 307
// @Failure 404 {object} response.ErrorResponse "Неизвестный провайдер"
// @Router /api/v1/auth/login/{provider} [get]
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.oauth.Start"
	provider := chi.URLParam(r, "provider")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("provider", provider),
	)

	if !h.bridge.Has(provider) {
		log.Info("unknown provider")
		response.Write(w, r, response.Error(http.StatusNotFound, "Unsupported provider"))
		return
	}

	redirectURL, err := h.bridge.Start(w, r, provider)
	if err != nil {
		log.Error("failed to start oauth flow", sl.Err(err))
		response.Write(w, r, response.Error(http.StatusInternalServerError, "Failed to start login"))
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}

// Callback godoc
// @Summary Возврат от провайдера
// @Description Проверяет state, получает профиль, выставляет cookie и перенаправляет на фронтенд.
// @Tags Auth
// @Param provider path string true "Провайдер"
// @Param state query string true "Анти-CSRF nonce"
// @Param code query string false "Код авторизации"
// @Success 302
// @Router /api/v1/auth/callback/{provider} [get]
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.oauth.Callback"
	provider := chi.URLParam(r, "provider")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("provider", provider),
	)

	identity, err := h.bridge.Callback(w, r, provider)
	if err != nil {
		if errors.Is(err, bridge.ErrStateMismatch) || errors.Is(err, bridge.ErrProviderDenied) {
			log.Warn("oauth callback rejected", sl.Err(err))
		} else {
			log.Error("oauth callback failed", sl.Err(err))
		}
		h.fail(w, r, bridge.ErrorCode(err))
		return
	}

	_, token, err := h.service.OAuthLogin(r.Context(), identity)
	if err != nil {
		log.Error("oauth login failed", sl.Err(err))
		h.fail(w, r, "login_failed")
		return
	}

	h.cookie.SetCrossSite(w, token)
	log.Info("oauth login success")
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(code), http.StatusFound)
}
