// Package user реализует HTTP-обработчики каталога пользователей:
// профиль текущего пользователя и выборку для суперпользователя.
package user

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/gregai-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// UpdateRequest изменяемые поля профиля. Отсутствующее поле не меняется.
type UpdateRequest struct {
	FirstName      *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName       *string `json:"lastName" validate:"omitempty,max=100"`
	ProfilePicture *string `json:"profilePicture" validate:"omitempty,url,max=2048"`
}

// Service бизнес-логика каталога.
type Service interface {
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	Find(ctx context.Context, caller *models.User, f models.UserFilter) ([]*models.User, error)
}

// Handler обработчики каталога пользователей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: response.NewValidator()}
}

// Me godoc
// @Summary Текущий пользователь
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.UserView}
// @Failure 401 {object} response.ErrorResponse
// @Router /api/v1/users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Write(w, r, response.Error(http.StatusUnauthorized, "Not authenticated"))
		return
	}
	response.Write(w, r, response.OK(http.StatusOK, "Success", user.View()))
}

// UpdateMe godoc
// @Summary Обновить профиль
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateRequest true "Поля профиля"
// @Success 200 {object} response.Response{data=models.UserView}
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/users/me [put]
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.UpdateMe"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Write(w, r, response.Error(http.StatusUnauthorized, "Not authenticated"))
		return
	}

	var req UpdateRequest
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

	updated, err := h.service.UpdateProfile(r.Context(), user.ID, models.ProfileUpdate{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		response.WriteError(w, r, log, "profile update failed", err)
		return
	}
	response.Write(w, r, response.OK(http.StatusOK, "Profile updated", updated.View()))
}

// List godoc
// @Summary Список пользователей
// @Description Доступно только суперпользователю.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param email query string false "Email"
// @Param username query string false "Имя пользователя"
// @Param provider query string false "Провайдер"
// @Param active query bool false "Активность"
// @Param limit query int false "Лимит"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response{data=[]models.UserView}
// @Failure 403 {object} response.ErrorResponse
// @Router /api/v1/users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	caller, _ := middlewarectx.UserFromContext(r.Context())
	q := r.URL.Query()
	f := models.UserFilter{
		Email:    q.Get("email"),
		Username: q.Get("username"),
		Provider: q.Get("provider"),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			response.Write(w, r, response.Error(http.StatusBadRequest, "Invalid active parameter"))
			return
		}
		f.Active = &active
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		response.Write(w, r, response.Error(http.StatusBadRequest, "Invalid limit parameter"))
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		response.Write(w, r, response.Error(http.StatusBadRequest, "Invalid offset parameter"))
		return
	}

	users, err := h.service.Find(r.Context(), caller, f)
	if err != nil {
		response.WriteError(w, r, log, "list users failed", err)
		return
	}
	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	response.Write(w, r, response.OK(http.StatusOK, "Success", views))
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
