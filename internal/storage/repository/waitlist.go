package repository

import (
	"context"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// CreateWaitListEntry добавляет email в лист ожидания.
// Повторный email возвращает ErrAlreadyExists.
func (s *Storage) CreateWaitListEntry(ctx context.Context, email string) (*models.WaitListEntry, error) {
	const op = "storage.CreateWaitListEntry"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	e := models.WaitListEntry{Email: email}
	query := `INSERT INTO wait_list (email) VALUES ($1) RETURNING id, email_sent, created_at`
	if err := s.q.QueryRowContext(ctx, query, email).Scan(&e.ID, &e.EmailSent, &e.CreatedAt); err != nil {
		return nil, mapError(op, err)
	}
	return &e, nil
}

// MarkWaitListEmailSent отмечает, что письмо-подтверждение отправлено.
func (s *Storage) MarkWaitListEmailSent(ctx context.Context, email string) error {
	const op = "storage.MarkWaitListEmailSent"
	return s.execOne(ctx, op, `UPDATE wait_list SET email_sent = TRUE WHERE email = $1`, email)
}
