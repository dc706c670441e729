package models

import "time"

// Статусы обработки документа.
const (
	DocumentPending    = "pending"
	DocumentProcessing = "processing"
	DocumentDone       = "done"
	DocumentFailed     = "failed"
)

// Document загруженный пользователем файл и результат его обработки.
type Document struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	FileName        string     `json:"fileName"`
	ContentType     string     `json:"contentType"`
	ObjectKey       string     `json:"-"`
	Size            int64      `json:"size"`
	ExtractedText   string     `json:"-"`
	Summary         string     `json:"summary,omitempty"`
	KeyActions      []string   `json:"keyActions,omitempty"`
	KPIs            []string   `json:"kpis,omitempty"`
	Status          string     `json:"status"`
	ProcessingError string     `json:"processingError,omitempty"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}
