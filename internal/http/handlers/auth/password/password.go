// Package password реализует сброс пароля по одноразовому коду из письма.
package password

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
)

// ForgotRequest запрос кода сброса.
type ForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetRequest установка нового пароля.
type ResetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

// Service бизнес-логика сброса пароля.
type Service interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

// Handler обработчики сброса пароля.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: response.NewValidator()}
}

// Forgot godoc
// @Summary Запросить код сброса пароля
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ForgotRequest true "Адрес почты"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Запрос не может быть обработан"
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/auth/forgot-password [post]
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.password.Forgot"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ForgotRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		response.WriteError(w, r, log, "forgot password failed", err)
		return
	}
	response.Write(w, r, response.OK(http.StatusOK, "Reset code sent", nil))
}

// Reset godoc
// @Summary Сбросить пароль
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ResetRequest true "Код и новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверный код"
// @Failure 410 {object} response.ErrorResponse "Код истёк"
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/auth/reset-password [post]
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.password.Reset"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ResetRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		response.WriteError(w, r, log, "reset password failed", err)
		return
	}
	log.Info("password reset")
	response.Write(w, r, response.OK(http.StatusOK, "Password has been reset", nil))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		response.Write(w, r, response.Error(http.StatusBadRequest, "Invalid request body"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		log.Info("validation failed", sl.Err(err))
		response.Write(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return false
	}
	return true
}
