// Package objstore хранит загруженные документы в S3-совместимом хранилище MinIO.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/magabrotheeeer/gregai-backend/internal/config"
)

// ErrNotFound объекта нет в бакете.
var ErrNotFound = errors.New("object not found")

// Client обёртка над клиентом MinIO с фиксированным бакетом.
type Client struct {
	mc        *minio.Client
	bucket    string
	urlExpiry time.Duration
	log       *slog.Logger
}

// NewClient создаёт клиент MinIO.
func NewClient(cfg config.MinIO, log *slog.Logger) (*Client, error) {
	const op = "objstore.NewClient"
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s: minio endpoint is required", op)
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%s: minio access_key and secret_key are required", op)
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Client{mc: mc, bucket: cfg.Bucket, urlExpiry: expiry, log: log}, nil
}

// EnsureBucket создаёт бакет, если его ещё нет.
func (c *Client) EnsureBucket(ctx context.Context) error {
	const op = "objstore.EnsureBucket"
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("%s: check bucket: %w", op, err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%s: create bucket: %w", op, err)
		}
		c.log.Info("created bucket", slog.String("bucket", c.bucket))
	}
	return nil
}

// Upload загружает объект под ключом key.
func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	const op = "objstore.Upload"
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.mc.PutObject(ctx, c.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, key, err)
	}
	return nil
}

// Download возвращает содержимое объекта. Закрыть результат должен вызывающий.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	const op = "objstore.Download"
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, key, err)
	}
	// GetObject ленивый, ошибка отсутствия объекта видна только после Stat
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %s: %w", op, key, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: stat %s: %w", op, key, err)
	}
	return obj, nil
}

// PresignedURL возвращает временную ссылку на скачивание объекта.
func (c *Client) PresignedURL(ctx context.Context, key, fileName string) (string, error) {
	const op = "objstore.PresignedURL"
	params := url.Values{}
	if fileName != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	}
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, key, c.urlExpiry, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u.String(), nil
}

// Delete удаляет объект.
func (c *Client) Delete(ctx context.Context, key string) error {
	const op = "objstore.Delete"
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.mc.BucketExists(ctx, c.bucket)
	return err
}
