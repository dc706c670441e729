// Package register реализует HTTP-обработчик регистрации по email и паролю.
//
// Запрос декодируется и валидируется, пользователь создаётся сервисом
// аутентификации вместе с подпиской по умолчанию. В ответ приходит
// представление пользователя и токен; токен также выставляется в cookie.
package register

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

// Request входные данные регистрации.
type Request struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

// Data тело успешного ответа.
type Data struct {
	User  models.UserView `json:"user"`
	Token string          `json:"token"`
}

// Service описывает бизнес-логику регистрации.
type Service interface {
	Register(ctx context.Context, in models.NewUser) (*models.User, string, error)
}

// Cookie выставляет токен в cookie.
type Cookie interface {
	Set(w http.ResponseWriter, token string)
}

// Handler обрабатывает регистрацию.
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
// @Summary Регистрация пользователя
// @Description Создаёт пользователя и подписку по умолчанию, отправляет письмо подтверждения.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Данные пользователя"
// @Success 201 {object} response.Response{data=Data}
// @Failure 400 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 404 {object} response.ErrorResponse "Нет роли или тарифа по умолчанию"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 424 {object} response.ErrorResponse "Ошибка сохранения"
// @Router /api/v1/auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	user, token, err := h.service.Register(r.Context(), models.NewUser{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Provider:  models.ProviderDirect,
	})
	if err != nil {
		response.WriteError(w, r, log, "registration failed", err)
		return
	}

	h.cookie.Set(w, token)
	log.Info("user registered", slog.String("user_id", user.ID))
	response.Write(w, r, response.OK(http.StatusCreated, "User registered successfully", Data{
		User:  user.View(),
		Token: token,
	}))
}
