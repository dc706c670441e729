// Package waitlist реализует регистрацию интереса в листе ожидания.
package waitlist

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// Request адрес для листа ожидания.
type Request struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// Service бизнес-логика листа ожидания.
type Service interface {
	Register(ctx context.Context, email string) (*models.WaitListEntry, error)
}

// Handler обрабатывает регистрацию в листе ожидания.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: response.NewValidator()}
}

// ServeHTTP godoc
// @Summary Лист ожидания
// @Tags WaitList
// @Accept json
// @Produce json
// @Param request body Request true "Адрес почты"
// @Success 201 {object} response.Response{data=models.WaitListEntry}
// @Failure 409 {object} response.ErrorResponse "Адрес уже зарегистрирован"
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/wait-list/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.waitlist"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		response.Write(w, r, response.Error(http.StatusBadRequest, "Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		response.Write(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	entry, err := h.service.Register(r.Context(), req.Email)
	if err != nil {
		response.WriteError(w, r, log, "wait list registration failed", err)
		return
	}
	response.Write(w, r, response.OK(http.StatusCreated, "Interest registered successfully", entry))
}
