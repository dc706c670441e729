// Package verify реализует запрос и подтверждение адреса почты.
package verify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/gregai-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// Service бизнес-логика подтверждения почты.
type Service interface {
	RequestVerification(ctx context.Context, user *models.User) error
	ConfirmVerification(ctx context.Context, token string) (*models.User, error)
}

// Handler обработчики подтверждения почты.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// Request godoc
// @Summary Запросить письмо подтверждения
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Почта уже подтверждена"
// @Failure 401 {object} response.ErrorResponse
// @Router /api/v1/auth/verify-email [post]
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verify.Request"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Write(w, r, response.Error(http.StatusUnauthorized, "Not authenticated"))
		return
	}
	if err := h.service.RequestVerification(r.Context(), user); err != nil {
		response.WriteError(w, r, log, "verification request failed", err)
		return
	}
	response.Write(w, r, response.OK(http.StatusOK, "Verification email sent", nil))
}

// Confirm godoc
// @Summary Подтвердить почту
// @Tags Auth
// @Produce json
// @Param token query string true "Токен из письма"
// @Success 200 {object} response.Response{data=models.UserView}
// @Failure 400 {object} response.ErrorResponse "Неверный токен"
// @Failure 410 {object} response.ErrorResponse "Токен истёк"
// @Router /api/v1/auth/verify-email [get]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verify.Confirm"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token := r.URL.Query().Get("token")
	if token == "" {
		response.Write(w, r, response.Error(http.StatusBadRequest, "Invalid token"))
		return
	}
	user, err := h.service.ConfirmVerification(r.Context(), token)
	if err != nil {
		response.WriteError(w, r, log, "verification failed", err)
		return
	}
	log.Info("email verified", slog.String("user_id", user.ID))
	response.Write(w, r, response.OK(http.StatusOK, "Email verified", user.View()))
}
