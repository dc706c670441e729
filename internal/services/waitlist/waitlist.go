// Package waitlist запись в лист ожидания с письмом-подтверждением.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
	"github.com/magabrotheeeer/gregai-backend/internal/services/notification"
	"github.com/magabrotheeeer/gregai-backend/internal/storage/repository"
)

// Repository операции хранилища листа ожидания.
type Repository interface {
	CreateWaitListEntry(ctx context.Context, email string) (*models.WaitListEntry, error)
	MarkWaitListEmailSent(ctx context.Context, email string) error
}

// Service сервис листа ожидания.
type Service struct {
	repo     Repository
	notifier notification.Dispatcher
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, notifier notification.Dispatcher, log *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, log: log}
}

// Register добавляет адрес в лист ожидания и ставит письмо в очередь.
// Повторный адрес отклоняется уникальным ограничением хранилища.
func (s *Service) Register(ctx context.Context, email string) (*models.WaitListEntry, error) {
	const op = "waitlist.Register"
	log := s.log.With(slog.String("op", op))

	email = strings.ToLower(strings.TrimSpace(email))
	entry, err := s.repo.CreateWaitListEntry(ctx, email)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, apperr.Conflict("Interest already registered")
	}
	if err != nil {
		log.Error("failed to create wait list entry", sl.Err(err))
		return nil, apperr.Persistence("Failed to register interest", fmt.Errorf("%s: %w", op, err))
	}

	msg, err := notification.WaitListEmail(email)
	if err != nil {
		log.Error("failed to render wait list email", sl.Err(err))
		return entry, nil
	}
	s.notifier.Enqueue(ctx, msg)

	if err := s.repo.MarkWaitListEmailSent(ctx, email); err != nil {
		log.Warn("failed to mark wait list email", sl.Err(err))
		return entry, nil
	}
	entry.EmailSent = true
	return entry, nil
}
