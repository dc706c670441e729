// Package conversation реализует WebSocket-канал диалога и чтение истории сессии.
//
// Протокол канала: клиент шлёт текстовые сообщения, сервер отвечает кадрами
// {"type":"delta","content":"..."} по мере генерации и кадром {"type":"done"}
// в конце ответа. Ошибка аутентификации закрывает канал кодом 1008, прочие
// ошибки кодом 1000 с текстом ошибки в причине закрытия.
package conversation

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"

	"github.com/magabrotheeeer/gregai-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/metrics"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	// maxCloseReason длина причины в управляющем кадре (125 байт минус код).
	maxCloseReason = 123
)

// Типы кадров.
const (
	FrameDelta = "delta"
	FrameDone  = "done"
)

// Frame кадр, отправляемый клиенту.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Service бизнес-логика диалога.
type Service interface {
	Reply(ctx context.Context, userID, sessionID, content string, onDelta func(string) error) (*models.Turn, error)
	History(ctx context.Context, userID, sessionID string) ([]models.Turn, error)
}

// Handler обработчики диалога.
type Handler struct {
	log        *slog.Logger
	auth       middlewarectx.Authenticator
	service    Service
	cookieName string
	upgrader   websocket.Upgrader
}

// New создает новый экземпляр Handler. Пустой allowedOrigins оставляет только same-origin.
func New(log *slog.Logger, auth middlewarectx.Authenticator, service Service, cookieName string, allowedOrigins []string) *Handler {
	return &Handler{
		log:        log,
		auth:       auth,
		service:    service,
		cookieName: cookieName,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Relay godoc
// @Summary Канал диалога (WebSocket)
// @Description Токен передаётся заголовком Authorization: Bearer или cookie access_token.
// @Tags Conversations
// @Param session_id path string true "ID сессии"
// @Success 101
// @Router /api/v1/conversations/{session_id} [get]
func (h *Handler) Relay(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.conversation.Relay"
	sessionID := chi.URLParam(r, "session_id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("session_id", sessionID),
	)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Info("websocket upgrade failed", sl.Err(err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	token := middlewarectx.TokenFromRequest(r, h.cookieName)
	if token == "" {
		log.Info("websocket rejected: no token")
		closeWith(conn, websocket.ClosePolicyViolation, "Not authenticated")
		return
	}
	user, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		log.Info("websocket rejected", sl.Err(err))
		closeWith(conn, websocket.ClosePolicyViolation, apperr.As(err).Message)
		return
	}
	if strings.TrimSpace(sessionID) == "" {
		closeWith(conn, websocket.ClosePolicyViolation, "Session id is required")
		return
	}
	log = log.With(slog.String("user_id", user.ID))

	metrics.ConversationSessionsActive.Inc()
	defer metrics.ConversationSessionsActive.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go keepAlive(ctx, conn)

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	log.Info("conversation opened")
	for {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("conversation read failed", sl.Err(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			closeWith(conn, websocket.CloseUnsupportedData, "Only text messages are supported")
			return
		}

		_, err = h.service.Reply(ctx, user.ID, sessionID, string(msg), func(delta string) error {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteJSON(Frame{Type: FrameDelta, Content: delta})
		})
		if err != nil {
			e := apperr.As(err)
			log.Warn("conversation turn failed", sl.Err(err))
			closeWith(conn, websocket.CloseNormalClosure, e.Message)
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(Frame{Type: FrameDone}); err != nil {
			log.Info("failed to send done frame", sl.Err(err))
			return
		}
	}
}

// Turns godoc
// @Summary История сессии
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param session_id path string true "ID сессии"
// @Success 200 {object} response.Response{data=[]models.Turn}
// @Failure 401 {object} response.ErrorResponse
// @Router /api/v1/conversations/{session_id}/turns [get]
func (h *Handler) Turns(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.conversation.Turns"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Write(w, r, response.Error(http.StatusUnauthorized, "Not authenticated"))
		return
	}
	turns, err := h.service.History(r.Context(), user.ID, chi.URLParam(r, "session_id"))
	if err != nil {
		response.WriteError(w, r, log, "history failed", err)
		return
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	response.Write(w, r, response.OK(http.StatusOK, "Success", turns))
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// truncateReason обрезает причину до maxCloseReason байт по границе символа.
func truncateReason(s string) string {
	if len(s) <= maxCloseReason {
		return s
	}
	s = s[:maxCloseReason]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[u.Scheme+"://"+u.Host]
		return ok
	}
}
