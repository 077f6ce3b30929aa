package documents

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const mirrorKeyPrefix = "referrals/"

// S3API is the subset of the S3 client used by S3Mirror.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror copies saved attachments to a bucket. If bucket is empty, it is a no-op.
type S3Mirror struct {
	client S3API
	bucket string
}

// NewS3Mirror creates a mirror for bucket.
func NewS3Mirror(client S3API, bucket string) *S3Mirror {
	return &S3Mirror{client: client, bucket: bucket}
}

// Enabled returns true if the mirror has a client and bucket.
func (m *S3Mirror) Enabled() bool {
	return m != nil && m.bucket != "" && m.client != nil
}

// Upload writes data to referrals/<filename>.
func (m *S3Mirror) Upload(ctx context.Context, filename string, data []byte) error {
	if !m.Enabled() {
		return nil
	}
	key := mirrorKeyPrefix + filename
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(filename, data)),
	})
	if err != nil {
		return fmt.Errorf("documents: s3 put %s: %w", key, err)
	}
	return nil
}

func contentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
