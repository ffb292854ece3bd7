// Package minio stores loan application documents in S3-compatible object
// storage using MinIO.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nourabuild/advisory-service/internal/config"
)

var (
	ErrUploadFailed  = errors.New("upload failed")
	ErrDeleteFailed  = errors.New("delete failed")
	ErrPresignFailed = errors.New("presign failed")
	ErrInvalidImage  = errors.New("invalid image")
	ErrTooLarge      = errors.New("document exceeds size limit")
)

// MaxDocumentSize caps a single uploaded document.
const MaxDocumentSize = 10 << 20

// previewDimension bounds the preview generated for image uploads.
const previewDimension = 512

type MinioService struct {
	client     *minio.Client
	bucketName string
}

func NewMinioService(cfg config.Minio) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinioService{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *MinioService) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

func (s *MinioService) Delete(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func (s *MinioService) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPresignFailed, err)
	}
	return u.String(), nil
}

// DocumentURL returns a time-limited download link for a stored document.
func (s *MinioService) DocumentURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return s.PresignedURL(ctx, key, expiry)
}

// DeleteDocument removes a document and its preview, if one was generated.
// RemoveObject succeeds for keys that do not exist.
func (s *MinioService) DeleteDocument(ctx context.Context, key string) error {
	if err := s.Delete(ctx, key); err != nil {
		return err
	}
	return s.Delete(ctx, previewObjectName(key))
}

// StoreDocument uploads a document for an application and returns its object
// key. Images also get a JPEG preview stored next to the original.
func (s *MinioService) StoreDocument(ctx context.Context, applicationID, filename, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if len(data) > MaxDocumentSize {
		return "", ErrTooLarge
	}

	key := ObjectKey(applicationID, filename)
	if err := s.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}

	if strings.HasPrefix(contentType, "image/") {
		if preview, err := resizeImage(data, previewDimension); err == nil {
			_ = s.Upload(ctx, previewObjectName(key), bytes.NewReader(preview), int64(len(preview)), "image/jpeg")
		}
	}
	return key, nil
}

// ObjectKey is applications/<id>/<uuid><ext>. The client filename is never
// used verbatim.
func ObjectKey(applicationID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return "applications/" + applicationID + "/" + uuid.NewString() + ext
}

func previewObjectName(objectName string) string {
	ext := filepath.Ext(objectName)
	return strings.TrimSuffix(objectName, ext) + "_preview.jpg"
}

func resizeImage(data []byte, dim int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	resized := imaging.Fit(img, dim, dim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
