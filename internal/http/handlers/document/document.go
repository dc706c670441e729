// Package document реализует загрузку документов и чтение статуса их обработки.
package document

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/gregai-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gregai-backend/internal/http/response"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
	docs "github.com/magabrotheeeer/gregai-backend/internal/services/document"
)

// multipartMemory сколько байт формы держать в памяти, остальное во временном файле.
const multipartMemory = 8 << 20

// Service бизнес-логика документов.
type Service interface {
	Upload(ctx context.Context, in docs.Upload) (*docs.UploadResult, error)
	Get(ctx context.Context, id, userID string) (*models.Document, error)
}

// Handler обработчики документов.
type Handler struct {
	log       *slog.Logger
	service   Service
	maxUpload int64
}

// New создает новый экземпляр Handler. maxUpload ограничивает размер тела запроса.
func New(log *slog.Logger, service Service, maxUpload int64) *Handler {
	return &Handler{log: log, service: service, maxUpload: maxUpload}
}

// Upload godoc
// @Summary Загрузить документ
// @Description Сохраняет файл и ставит извлечение текста в очередь. Ссылка на скачивание действует ограниченное время.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Файл (pdf, docx, csv, xlsx, txt, md)"
// @Success 201 {object} response.Response{data=docs.UploadResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 413 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/v1/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.document.Upload"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Write(w, r, response.Error(http.StatusUnauthorized, "Not authenticated"))
		return
	}

	if h.maxUpload > 0 {
		// запас на заголовки multipart
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Write(w, r, response.Error(http.StatusRequestEntityTooLarge, "File is too large"))
			return
		}
		log.Info("failed to parse multipart form", sl.Err(err))
		response.Write(w, r, response.Error(http.StatusBadRequest, "Invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		log.Info("file field missing", sl.Err(err))
		response.Write(w, r, response.Error(http.StatusBadRequest, "File is required"))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	res, err := h.service.Upload(r.Context(), docs.Upload{
		UserID:      user.ID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		response.WriteError(w, r, log, "upload failed", err)
		return
	}
	log.Info("document uploaded", slog.String("document_id", res.DocumentID))
	response.Write(w, r, response.OK(http.StatusCreated, "File uploaded", res))
}

// Get godoc
// @Summary Статус документа
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID документа"
// @Success 200 {object} response.Response{data=models.Document}
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/documents/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.document.Get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Write(w, r, response.Error(http.StatusUnauthorized, "Not authenticated"))
		return
	}

	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		response.WriteError(w, r, log, "get document failed", err)
		return
	}
	response.Write(w, r, response.OK(http.StatusOK, "Success", doc))
}
