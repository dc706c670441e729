package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// CreateDocument сохраняет запись о загруженном файле в статусе pending.
func (s *Storage) CreateDocument(ctx context.Context, d *models.Document) error {
	const op = "storage.CreateDocument"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	if d.Status == "" {
		d.Status = models.DocumentPending
	}
	query := `INSERT INTO documents (user_id, file_name, content_type, object_key, size, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, created_at`
	if err := s.q.QueryRowContext(ctx, query, d.UserID, d.FileName, d.ContentType, d.ObjectKey, d.Size, d.Status).
		Scan(&d.ID, &d.CreatedAt); err != nil {
		return mapError(op, err)
	}
	return nil
}

// GetDocument возвращает документ владельца.
func (s *Storage) GetDocument(ctx context.Context, id, userID string) (*models.Document, error) {
	const op = "storage.GetDocument"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	var (
		d                models.Document
		keyActions, kpis []byte
		processedAt      sql.NullTime
	)
	query := `SELECT id, user_id, file_name, content_type, object_key, size, extracted_text, summary,
			      key_actions, kpis, status, processing_error, processed_at, created_at
			  FROM documents
			  WHERE id = $1 AND user_id = $2`
	if err := s.q.QueryRowContext(ctx, query, id, userID).Scan(&d.ID, &d.UserID, &d.FileName,
		&d.ContentType, &d.ObjectKey, &d.Size, &d.ExtractedText, &d.Summary, &keyActions, &kpis,
		&d.Status, &d.ProcessingError, &processedAt, &d.CreatedAt); err != nil {
		return nil, mapError(op, err)
	}
	if err := json.Unmarshal(keyActions, &d.KeyActions); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(kpis, &d.KPIs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.ProcessedAt = timePtr(processedAt)
	return &d, nil
}

// MarkDocumentProcessing переводит документ в статус processing.
func (s *Storage) MarkDocumentProcessing(ctx context.Context, id string) error {
	const op = "storage.MarkDocumentProcessing"
	return s.execOne(ctx, op, `UPDATE documents SET status = $2 WHERE id = $1`, id, models.DocumentProcessing)
}

// CompleteDocument сохраняет извлечённый текст и разбор резюме.
func (s *Storage) CompleteDocument(ctx context.Context, d *models.Document, at time.Time) error {
	const op = "storage.CompleteDocument"
	keyActions, err := json.Marshal(nonNil(d.KeyActions))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	kpis, err := json.Marshal(nonNil(d.KPIs))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.execOne(ctx, op,
		`UPDATE documents
		 SET extracted_text = $2, summary = $3, key_actions = $4::jsonb, kpis = $5::jsonb,
		     status = $6, processing_error = '', processed_at = $7
		 WHERE id = $1`,
		d.ID, d.ExtractedText, d.Summary, string(keyActions), string(kpis), models.DocumentDone, at)
}

// FailDocument фиксирует ошибку обработки.
func (s *Storage) FailDocument(ctx context.Context, id, reason string, at time.Time) error {
	const op = "storage.FailDocument"
	return s.execOne(ctx, op,
		`UPDATE documents SET status = $2, processing_error = $3, processed_at = $4 WHERE id = $1`,
		id, models.DocumentFailed, reason, at)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
