// Package login реализует HTTP-обработчик входа по email и паролю.
//
// При успешной аутентификации возвращается токен и краткое представление
// пользователя, токен дублируется в HttpOnly cookie.
package login

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

// Request учетные данные.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Data тело успешного ответа.
type Data struct {
	User  models.UserView `json:"user"`
	Token string          `json:"token"`
}

// Service описывает бизнес-логику входа.
type Service interface {
	Login(ctx context.Context, email, password string) (*models.User, string, error)
}

// Cookie выставляет токен в cookie.
type Cookie interface {
	Set(w http.ResponseWriter, token string)
}

// Handler обрабатывает вход.
type Handler struct {
	log      *slog.Logger
	service  Service
	cookie   Cookie
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, cookie Cookie) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		cookie:   cookie,
		validate: response.NewValidator(),
	}
}

// ServeHTTP godoc
// @Summary Авторизация пользователя
// @Description Аутентифицирует пользователя по email и паролю. Возвращает JWT и выставляет cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} response.Response{data=Data}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 403 {object} response.ErrorResponse "Пользователь деактивирован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /api/v1/auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteError(w, r, log, "login failed", err)
		return
	}

	h.cookie.Set(w, token)
	log.Info("login success", slog.String("user_id", user.ID))
	response.Write(w, r, response.OK(http.StatusOK, "Login successful", Data{
		User:  user.View(),
		Token: token,
	}))
}
