package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gregai-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if token == "good" {
		return &models.User{ID: "u1"}, nil
	}
	return nil, apperr.Unauthorized("Invalid or expired token")
}

// fakeService отвечает эхом по словам и сохраняет реплики в памяти.
type fakeService struct {
	mu    sync.Mutex
	turns []models.Turn
	fail  bool
}

func (f *fakeService) Reply(_ context.Context, userID, sessionID, content string, onDelta func(string) error) (*models.Turn, error) {
	f.mu.Lock()
	f.turns = append(f.turns, models.Turn{UserID: userID, SessionID: sessionID, Role: models.TurnRoleUser, Content: content})
	f.mu.Unlock()
	if f.fail {
		return nil, apperr.Upstream("Completion failed: "+strings.Repeat("x", 200), errors.New("timeout"))
	}
	var full strings.Builder
	for _, w := range strings.Fields(content) {
		chunk := w + " "
		full.WriteString(chunk)
		if err := onDelta(chunk); err != nil {
			return nil, err
		}
	}
	t := models.Turn{UserID: userID, SessionID: sessionID, Role: models.TurnRoleAssistant, Content: full.String()}
	f.mu.Lock()
	f.turns = append(f.turns, t)
	f.mu.Unlock()
	return &t, nil
}

func (f *fakeService) History(_ context.Context, _, _ string) ([]models.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Turn(nil), f.turns...), nil
}

func newServer(t *testing.T, svc Service) *httptest.Server {
	t.Helper()
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), fakeAuth{}, svc, "access_token", nil)
	r := chi.NewRouter()
	r.Get("/api/v1/conversations/{session_id}", h.Relay)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/conversations/s1"
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readTurn(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	var sb strings.Builder
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == FrameDone {
			return sb.String()
		}
		require.Equal(t, FrameDelta, f.Type)
		sb.WriteString(f.Content)
	}
}

func TestRelay_StreamsDeltasAndDone(t *testing.T) {
	svc := &fakeService{}
	conn := dial(t, newServer(t, svc), "good")

	messages := []string{"hello there", "how are you", "bye"}
	for _, m := range messages {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
		assert.Equal(t, m+" ", readTurn(t, conn))
	}

	turns, _ := svc.History(context.Background(), "u1", "s1")
	require.Len(t, turns, 2*len(messages))
	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, models.TurnRoleUser, turn.Role)
		} else {
			assert.Equal(t, models.TurnRoleAssistant, turn.Role)
		}
	}
}

func TestRelay_RejectsBadToken(t *testing.T) {
	for _, token := range []string{"", "bad"} {
		conn := dial(t, newServer(t, &fakeService{}), token)
		_, _, err := conn.ReadMessage()
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	}
}

func TestRelay_CookieFallback(t *testing.T) {
	srv := newServer(t, &fakeService{})
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/conversations/s1"
	header := http.Header{}
	header.Set("Cookie", "access_token=good")
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))
	assert.Equal(t, "hi ", readTurn(t, conn))
}

func TestRelay_UpstreamErrorClosesNormally(t *testing.T) {
	conn := dial(t, newServer(t, &fakeService{fail: true}), "good")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
	assert.LessOrEqual(t, len(ce.Text), maxCloseReason)
	assert.True(t, strings.HasPrefix(ce.Text, "Completion failed"))
}

func TestTurns(t *testing.T) {
	svc := &fakeService{}
	_, _ = svc.Reply(context.Background(), "u1", "s1", "one two", func(string) error { return nil })
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), fakeAuth{}, svc, "access_token", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/s1/turns", nil)
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.User, &models.User{ID: "u1"}))
	rr := httptest.NewRecorder()
	h.Turns(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"content":"one two "`)
}

func TestTruncateReason(t *testing.T) {
	assert.Equal(t, "short", truncateReason("short"))
	long := strings.Repeat("я", 100)
	got := truncateReason(long)
	assert.LessOrEqual(t, len(got), maxCloseReason)
	assert.True(t, strings.HasPrefix(long, got))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com/"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))
}

func TestOriginChecker_EmptyFallsBackToSameOrigin(t *testing.T) {
	assert.Nil(t, originChecker(nil))
}
