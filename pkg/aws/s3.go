package aws

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignedUpload is a signed PUT the admin client sends the image bytes to.
type PresignedUpload struct {
	URL     string            `json:"upload_url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ImagePresigner issues direct-to-bucket uploads for product images.
type ImagePresigner interface {
	PresignImageUpload(ctx context.Context, key, contentType string, expires time.Duration) (*PresignedUpload, error)
	PublicURL(key string) string
}

// S3ImageStore presigns product image uploads into one bucket.
type S3ImageStore struct {
	presigner  *s3.PresignClient
	bucket     string
	region     string
	publicBase string
}

// NewS3ImageStore builds the presigner. publicBaseURL, when set, replaces the
// virtual-hosted bucket URL in PublicURL (a CDN or the LocalStack origin).
func NewS3ImageStore(cfg sdkaws.Config, bucket, publicBaseURL string) *S3ImageStore {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = os.Getenv("AWS_ENDPOINT") != ""
	})
	return &S3ImageStore{
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		region:     cfg.Region,
		publicBase: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

func (s *S3ImageStore) PresignImageUpload(ctx context.Context, key, contentType string, expires time.Duration) (*PresignedUpload, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(s.bucket),
		Key:         sdkaws.String(key),
		ContentType: sdkaws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for k, v := range req.SignedHeader {
		if len(v) > 0 && !strings.EqualFold(k, "host") {
			headers[k] = v[0]
		}
	}
	return &PresignedUpload{URL: req.URL, Method: req.Method, Headers: headers}, nil
}

func (s *S3ImageStore) PublicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
