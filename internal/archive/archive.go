// Package archive stores finalized recordings in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"plate-order-backend/config"
)

// Archive stores a blob under a key.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes objects to one bucket.
type S3Archive struct {
	client putter
	bucket string
}

// NewS3Archive loads the default AWS credential chain for cfg.Region. A
// custom endpoint (MinIO, LocalStack) switches to path-style addressing.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{client: client, bucket: cfg.Bucket}, nil
}

func (a *S3Archive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("unable to upload %s to S3: %w", key, err)
	}
	return nil
}

// Key builds <prefix>/<yyyy>/<mm>/<dd>/<name>.<ext> in UTC.
func Key(prefix string, at time.Time, name, ext string) string {
	at = at.UTC()
	return path.Join(strings.Trim(prefix, "/"), at.Format("2006/01/02"), name+"."+strings.TrimPrefix(ext, "."))
}

// Extension picks a file extension for a recording's mime type.
func Extension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/pcm", "audio/l16":
		return "pcm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/aac":
		return "m4a"
	default:
		return "webm"
	}
}
