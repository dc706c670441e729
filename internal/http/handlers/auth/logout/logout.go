// Package logout снимает cookie с токеном доступа.
package logout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
)

// Cookie снимает cookie.
type Cookie interface {
	Clear(w http.ResponseWriter)
}

// Handler обрабатывает выход.
type Handler struct {
	log    *slog.Logger
	cookie Cookie
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, cookie Cookie) *Handler {
	return &Handler{log: log, cookie: cookie}
}

// ServeHTTP godoc
// @Summary Выход
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.cookie.Clear(w)
	h.log.Info("logout", slog.String("request_id", middleware.GetReqID(r.Context())))
	response.Write(w, r, response.OK(http.StatusOK, "Logged out", nil))
}
