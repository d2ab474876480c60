// internal/services/storage_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/javajoker/dlms-backend/internal/config"
)

// StorageService hands out short-lived links to payment receipts kept in S3.
// Uploading receipts happens outside this service.
type StorageService struct {
	s3Client *s3.S3
	bucket   string
	ttl      time.Duration
}

func NewStorageService(cfg config.AWSConfig) (*StorageService, error) {
	service := &StorageService{bucket: cfg.ReceiptsBucket, ttl: cfg.PresignTTL}
	if cfg.AccessKeyID == "" {
		// Return service without S3 for local development
		return service, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	service.s3Client = s3.New(sess)
	return service, nil
}

func (s *StorageService) Enabled() bool {
	return s != nil && s.s3Client != nil
}

// ReceiptURL returns a presigned GET link for a receipt key. Absolute URLs
// are returned unchanged. Without S3 it returns an empty string.
func (s *StorageService) ReceiptURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	if !s.Enabled() {
		return "", nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	})
	req.SetContext(ctx)

	url, err := req.Presign(s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}
