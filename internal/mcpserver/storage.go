package mcpserver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage handles S3 uploads for sprint report files.
type Storage struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string // e.g. "https://sprints.apresai.dev"
}

// NewStorage creates an S3 storage handler.
func NewStorage(client *s3.Client, bucket, cdnBaseURL string) *Storage {
	return &Storage{client: client, bucket: bucket, cdnBaseURL: cdnBaseURL}
}

// Upload uploads a report JSON document to S3 and returns the S3 key and
// public URL.
func (s *Storage) Upload(ctx context.Context, sprintID string, reportJSON []byte) (key, url string, err error) {
	key = "reports/" + sprintID + ".json"

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(reportJSON),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(reportJSON))),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload to s3: %w", err)
	}

	url = s.cdnBaseURL + "/" + key
	return key, url, nil
}
