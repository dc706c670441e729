package document

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gregai-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
	docs "github.com/magabrotheeeer/gregai-backend/internal/services/document"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Upload(ctx context.Context, in docs.Upload) (*docs.UploadResult, error) {
	args := m.Called(ctx, in.UserID, in.FileName, in.Size)
	res, _ := args.Get(0).(*docs.UploadResult)
	return res, args.Error(1)
}

func (m *ServiceMock) Get(ctx context.Context, id, userID string) (*models.Document, error) {
	args := m.Called(ctx, id, userID)
	d, _ := args.Get(0).(*models.Document)
	return d, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, field, name string, content []byte) *http.Request {
	body, ct := multipartBody(t, field, name, content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", ct)
	return req.WithContext(context.WithValue(req.Context(), middlewarectx.User, &models.User{ID: "u1"}))
}

func TestUpload(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Upload", mock.Anything, "u1", "report.pdf", int64(5)).
		Return(&docs.UploadResult{DocumentID: "d1", DownloadURL: "https://objects.example.com/x"}, nil).Once()
	svc.On("Upload", mock.Anything, "u1", "image.png", int64(5)).
		Return(nil, apperr.New(apperr.KindValidation, "Unsupported file type")).Once()
	h := New(newNoopLogger(), svc, 1024)

	rr := httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, "file", "report.pdf", []byte("%PDF-")))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"documentId":"d1"`)

	rr = httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, "file", "image.png", []byte("12345")))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, "file", "big.txt", bytes.Repeat([]byte("a"), 3<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	svc.AssertExpectations(t)
}

func TestGet(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Get", mock.Anything, "d1", "u1").Return(&models.Document{ID: "d1", Status: models.DocumentDone}, nil).Once()
	svc.On("Get", mock.Anything, "d2", "u1").Return(nil, apperr.NotFound("Document not found")).Once()
	h := New(newNoopLogger(), svc, 1024)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), middlewarectx.User, &models.User{ID: "u1"})))
		})
	})
	r.Get("/api/v1/documents/{id}", h.Get)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"done"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/d2", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	svc.AssertExpectations(t)
}
