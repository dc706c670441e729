// Package document принимает загрузки пользователей, кладёт файлы в объектное
// хранилище и в фоне извлекает текст и краткое резюме.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/extract"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/metrics"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
	"github.com/magabrotheeeer/gregai-backend/internal/storage/repository"
	"github.com/magabrotheeeer/gregai-backend/internal/worker"
)

// maxPromptRunes сколько символов извлечённого текста уходит в модель.
const maxPromptRunes = 48000

// Стадии для метрик.
const (
	stageUpload  = "upload"
	stageExtract = "extract"
)

// Repository хранилище документов и подписок.
type Repository interface {
	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, id, userID string) (*models.Document, error)
	MarkDocumentProcessing(ctx context.Context, id string) error
	CompleteDocument(ctx context.Context, d *models.Document, at time.Time) error
	FailDocument(ctx context.Context, id, reason string, at time.Time) error
	GetActiveSubscription(ctx context.Context, userID string) (*models.UserSubscription, error)
	IncrementDocumentsUsed(ctx context.Context, subscriptionID string) error
}

// ObjectStore объектное хранилище файлов.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, key, fileName string) (string, error)
}

// Summarizer обычный (не потоковый) запрос к модели.
type Summarizer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Submitter очередь фоновых задач.
type Submitter interface {
	Submit(task worker.Task) error
}

// Upload входные данные загрузки.
type Upload struct {
	UserID      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResult ответ на загрузку.
type UploadResult struct {
	DocumentID  string `json:"documentId"`
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
	Status      string `json:"status"`
}

// Service сервис документов.
type Service struct {
	repo      Repository
	store     ObjectStore
	llm       Summarizer
	pool      Submitter
	maxUpload int64
	log       *slog.Logger
	now       func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, store ObjectStore, llm Summarizer, pool Submitter, maxUpload int64, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		llm:       llm,
		pool:      pool,
		maxUpload: maxUpload,
		log:       log,
		now:       time.Now,
	}
}

// Upload сохраняет файл, создаёт запись документа и ставит извлечение в очередь.
func (s *Service) Upload(ctx context.Context, in Upload) (*UploadResult, error) {
	const op = "document.Upload"
	log := s.log.With(slog.String("op", op), slog.String("user_id", in.UserID))

	fileName := filepath.Base(strings.TrimSpace(in.FileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, apperr.New(apperr.KindValidation, "File name is required")
	}
	if !extract.Supported(fileName) {
		return nil, apperr.New(apperr.KindValidation, "Unsupported file type")
	}
	if in.Size <= 0 {
		return nil, apperr.New(apperr.KindValidation, "File is empty")
	}
	if s.maxUpload > 0 && in.Size > s.maxUpload {
		return nil, apperr.New(apperr.KindValidation, "File is too large")
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%s%s", in.UserID, uuid.NewString(), strings.ToLower(filepath.Ext(fileName)))
	if err := s.store.Upload(ctx, key, in.Body, in.Size, contentType); err != nil {
		log.Error("failed to upload object", sl.Err(err))
		metrics.DocumentsTotal.WithLabelValues(stageUpload, metrics.OutcomeFailure).Inc()
		return nil, apperr.Upstream("Failed to store file", fmt.Errorf("%s: %w", op, err))
	}

	doc := &models.Document{
		UserID:      in.UserID,
		FileName:    fileName,
		ContentType: contentType,
		ObjectKey:   key,
		Size:        in.Size,
		Status:      models.DocumentPending,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		log.Error("failed to create document", sl.Err(err))
		metrics.DocumentsTotal.WithLabelValues(stageUpload, metrics.OutcomeFailure).Inc()
		return nil, apperr.Persistence("Failed to save document", fmt.Errorf("%s: %w", op, err))
	}
	metrics.DocumentsTotal.WithLabelValues(stageUpload, metrics.OutcomeSuccess).Inc()

	s.countUsage(ctx, log, in.UserID)

	url, err := s.store.PresignedURL(ctx, key, fileName)
	if err != nil {
		log.Error("failed to presign url", sl.Err(err))
		return nil, apperr.Upstream("Failed to generate download link", fmt.Errorf("%s: %w", op, err))
	}

	docID := doc.ID
	if err := s.pool.Submit(func(ctx context.Context) { s.Process(ctx, docID, in.UserID) }); err != nil {
		log.Warn("processing not scheduled", slog.String("document_id", docID), sl.Err(err))
		metrics.DocumentsTotal.WithLabelValues(stageExtract, metrics.OutcomeDropped).Inc()
		if ferr := s.repo.FailDocument(ctx, docID, "processing queue is unavailable", s.now()); ferr != nil {
			log.Error("failed to mark document failed", sl.Err(ferr))
		}
		doc.Status = models.DocumentFailed
	}

	return &UploadResult{
		DocumentID:  docID,
		FileName:    fileName,
		DownloadURL: url,
		Status:      doc.Status,
	}, nil
}

// countUsage учитывает документ в действующей подписке, если она есть.
func (s *Service) countUsage(ctx context.Context, log *slog.Logger, userID string) {
	sub, err := s.repo.GetActiveSubscription(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn("failed to load subscription", sl.Err(err))
		return
	}
	if err := s.repo.IncrementDocumentsUsed(ctx, sub.ID); err != nil {
		log.Warn("failed to count document usage", sl.Err(err))
	}
}

// Process извлекает текст документа и запрашивает резюме. Ошибки фиксируются
// в самом документе.
func (s *Service) Process(ctx context.Context, id, userID string) {
	const op = "document.Process"
	log := s.log.With(slog.String("op", op), slog.String("document_id", id))

	if err := s.process(ctx, id, userID); err != nil {
		log.Error("document processing failed", sl.Err(err))
		metrics.DocumentsTotal.WithLabelValues(stageExtract, metrics.OutcomeFailure).Inc()
		if ferr := s.repo.FailDocument(context.WithoutCancel(ctx), id, reason(err), s.now()); ferr != nil {
			log.Error("failed to mark document failed", sl.Err(ferr))
		}
		return
	}
	metrics.DocumentsTotal.WithLabelValues(stageExtract, metrics.OutcomeSuccess).Inc()
	log.Info("document processed")
}

func (s *Service) process(ctx context.Context, id, userID string) error {
	doc, err := s.repo.GetDocument(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if err := s.repo.MarkDocumentProcessing(ctx, id); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	rc, err := s.store.Download(ctx, doc.ObjectKey)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	text, err := extract.Text(doc.FileName, buf.Bytes())
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	answer, err := s.llm.Complete(ctx, extract.SummaryInstruction, truncateRunes(text, maxPromptRunes))
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	summary := extract.ParseSummary(answer)

	doc.ExtractedText = text
	doc.Summary = summary.Summary
	doc.KeyActions = summary.KeyActions
	doc.KPIs = summary.KPIs
	if err := s.repo.CompleteDocument(ctx, doc, s.now()); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// Get документ владельца.
func (s *Service) Get(ctx context.Context, id, userID string) (*models.Document, error) {
	const op = "document.Get"

	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("Document not found")
	}
	doc, err := s.repo.GetDocument(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Document not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return doc, nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnsupported):
		return "unsupported file type"
	case errors.Is(err, extract.ErrEmpty):
		return "no text could be extracted"
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out"
	}
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		return msg[:i] + " failed"
	}
	return "processing failed"
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
