package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const metadataExpiresAt = "expires-at"

// Store keeps cache entries as objects below "cache/" in an S3 compatible
// bucket. It has no locking of its own.
type Store struct {
	client *s3.Client
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *s3.Client, bucket string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		ttl:    ttl,
		now:    time.Now,
	}
}

func objectKey(key string) string {
	return fmt.Sprintf("cache/%s.json", key)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func metadataValue(metadata map[string]string, name string) string {
	for k, v := range metadata {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(objectKey(key)),
	})
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer res.Body.Close()

	if expiresAt := metadataValue(res.Metadata, metadataExpiresAt); expiresAt != "" {
		t, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return nil, false, fmt.Errorf("invalid expiry of %s: %w", key, err)
		}
		if s.now().After(t) {
			return nil, false, nil
		}
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(objectKey(key)),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			metadataExpiresAt: s.now().Add(s.ttl).UTC().Format(time.RFC3339),
		},
	})
	return err
}
