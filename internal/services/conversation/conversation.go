// Package conversation ретранслирует диалог: сохраняет реплику пользователя,
// передаёт фрагменты ответа по мере поступления и сохраняет собранный ответ.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/completion"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/metrics"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// maxMessageLen ограничение на длину сообщения пользователя в байтах.
const maxMessageLen = 32 * 1024

// Repository журнал реплик.
type Repository interface {
	CreateTurn(ctx context.Context, t *models.Turn) error
	ListRecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]models.Turn, error)
	ListSessionTurns(ctx context.Context, userID, sessionID string) ([]models.Turn, error)
}

// Completer потоковая генерация ответа.
type Completer interface {
	Stream(ctx context.Context, history []completion.Message, onDelta func(string) error) (string, error)
}

// Service ретранслятор диалога.
type Service struct {
	repo         Repository
	completer    Completer
	historyLimit int
	log          *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, completer Completer, historyLimit int, log *slog.Logger) *Service {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Service{repo: repo, completer: completer, historyLimit: historyLimit, log: log}
}

// Reply обрабатывает одно сообщение пользователя. onDelta вызывается для
// каждого фрагмента ответа; ошибка onDelta прерывает генерацию.
// Реплика ассистента сохраняется только при успешном завершении потока.
func (s *Service) Reply(ctx context.Context, userID, sessionID, content string, onDelta func(string) error) (*models.Turn, error) {
	const op = "conversation.Reply"
	log := s.log.With(slog.String("op", op), slog.String("session_id", sessionID))

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.KindValidation, "Message is empty")
	}
	if len(content) > maxMessageLen {
		return nil, apperr.New(apperr.KindValidation, "Message is too long")
	}

	userTurn := &models.Turn{UserID: userID, SessionID: sessionID, Role: models.TurnRoleUser, Content: content}
	if err := s.repo.CreateTurn(ctx, userTurn); err != nil {
		log.Error("failed to persist user turn", sl.Err(err))
		return nil, apperr.Persistence("Failed to save message", fmt.Errorf("%s: %w", op, err))
	}
	metrics.ConversationMessagesTotal.WithLabelValues(models.TurnRoleUser).Inc()

	turns, err := s.repo.ListRecentTurns(ctx, userID, sessionID, s.historyLimit)
	if err != nil {
		log.Error("failed to load history", sl.Err(err))
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	history := make([]completion.Message, 0, len(turns))
	for _, t := range turns {
		history = append(history, completion.Message{Role: t.Role, Content: t.Content})
	}

	start := time.Now()
	answer, err := s.completer.Stream(ctx, history, onDelta)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Warn("completion stream failed", slog.Int("partial_len", len(answer)), sl.Err(err))
		return nil, apperr.Upstream("Completion failed", fmt.Errorf("%s: %w", op, err))
	}

	assistantTurn := &models.Turn{UserID: userID, SessionID: sessionID, Role: models.TurnRoleAssistant, Content: answer}
	if err := s.repo.CreateTurn(ctx, assistantTurn); err != nil {
		log.Error("failed to persist assistant turn", sl.Err(err))
		return nil, apperr.Persistence("Failed to save response", fmt.Errorf("%s: %w", op, err))
	}
	metrics.ConversationMessagesTotal.WithLabelValues(models.TurnRoleAssistant).Inc()
	return assistantTurn, nil
}

// History все реплики сессии пользователя.
func (s *Service) History(ctx context.Context, userID, sessionID string) ([]models.Turn, error) {
	const op = "conversation.History"

	turns, err := s.repo.ListSessionTurns(ctx, userID, sessionID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return turns, nil
}
