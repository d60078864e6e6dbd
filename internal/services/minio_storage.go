package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorageService stores blobs in any S3-compatible endpoint.
// Selected over Supabase with STORAGE_DRIVER=minio.
type MinioStorageService struct {
	client *minio.Client
	bucket string
	public string
}

func NewMinioStorageService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return &MinioStorageService{
		client: client,
		bucket: bucket,
		public: fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket),
	}, nil
}

func (s *MinioStorageService) UploadFile(ctx context.Context, content []byte, filename string, folder string) (string, error) {
	objectPath := path.Join(strings.Trim(folder, "/"), filename)

	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		objectPath,
		bytes.NewReader(content),
		int64(len(content)),
		minio.PutObjectOptions{ContentType: http.DetectContentType(content)},
	)
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return s.public + "/" + objectPath, nil
}

func (s *MinioStorageService) DeleteFile(ctx context.Context, fileURL string) error {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return fmt.Errorf("parse file url: %w", err)
	}

	prefix := "/" + s.bucket + "/"
	if !strings.HasPrefix(parsed.Path, prefix) {
		return fmt.Errorf("file url does not belong to configured bucket")
	}

	objectPath := strings.TrimPrefix(parsed.Path, prefix)
	if err := s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}

	return nil
}
