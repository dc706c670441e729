package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// CreateTurn добавляет реплику в журнал сессии.
func (s *Storage) CreateTurn(ctx context.Context, t *models.Turn) error {
	const op = "storage.CreateTurn"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO conversations (user_id, session_id, role, content)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id, created_at`
	if err := s.q.QueryRowContext(ctx, query, t.UserID, t.SessionID, t.Role, t.Content).
		Scan(&t.ID, &t.CreatedAt); err != nil {
		return mapError(op, err)
	}
	return nil
}

// ListRecentTurns возвращает последние limit реплик сессии в хронологическом порядке.
func (s *Storage) ListRecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]models.Turn, error) {
	const op = "storage.ListRecentTurns"
	query := `SELECT id, user_id, session_id, role, content, is_deleted, created_at FROM (
			      SELECT id, user_id, session_id, role, content, is_deleted, created_at
			      FROM conversations
			      WHERE user_id = $1 AND session_id = $2 AND NOT is_deleted
			      ORDER BY created_at DESC
			      LIMIT $3
			  ) recent
			  ORDER BY created_at`
	return s.listTurns(ctx, op, query, userID, sessionID, limit)
}

// ListSessionTurns возвращает все реплики сессии.
func (s *Storage) ListSessionTurns(ctx context.Context, userID, sessionID string) ([]models.Turn, error) {
	const op = "storage.ListSessionTurns"
	query := `SELECT id, user_id, session_id, role, content, is_deleted, created_at
			  FROM conversations
			  WHERE user_id = $1 AND session_id = $2 AND NOT is_deleted
			  ORDER BY created_at`
	return s.listTurns(ctx, op, query, userID, sessionID)
}

func (s *Storage) listTurns(ctx context.Context, op, query string, args ...any) ([]models.Turn, error) {
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Turn, 0)
	for rows.Next() {
		var t models.Turn
		if err = rows.Scan(&t.ID, &t.UserID, &t.SessionID, &t.Role, &t.Content, &t.IsDeleted, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
