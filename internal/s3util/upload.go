// Package s3util archives saved images to S3 so they outlive the local
// retention sweep.
package s3util

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dalle-mcp-server/internal/retention"
)

// PutObjectAPI is the subset of *s3.Client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies local image files into a bucket under prefix/yyyy/mm/dd/.
type Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver writing to bucket. prefix may be empty.
func NewArchiver(client PutObjectAPI, bucket, prefix string) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// NewFromEnvironment builds an Archiver using the default AWS credential chain.
func NewFromEnvironment(ctx context.Context, bucket, prefix string) (*Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewArchiver(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Key returns the object key for a file name archived at t (UTC date).
func (a *Archiver) Key(name string, t time.Time) string {
	t = t.UTC()
	datePath := fmt.Sprintf("%04d/%02d/%02d", t.Year(), int(t.Month()), t.Day())
	if a.prefix == "" {
		return path.Join(datePath, name)
	}
	return path.Join(a.prefix, datePath, name)
}

// Archive uploads the file at localPath and returns its object key.
func (a *Archiver) Archive(ctx context.Context, localPath string) (string, error) {
	key := a.Key(filepath.Base(localPath), a.now())

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	log.Debug().
		Str("bucket", a.bucket).
		Str("key", key).
		Str("local_path", localPath).
		Msg("Archiving image to S3")

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(localPath)),
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %w", filepath.Base(localPath), a.bucket, key, err)
	}

	log.Info().
		Str("bucket", a.bucket).
		Str("key", key).
		Msg("Image archived to S3")

	return key, nil
}

// ContentType maps an image file extension to its MIME type.
func ContentType(name string) string {
	if mime, ok := retention.MIMEType(name); ok {
		return mime
	}
	return "application/octet-stream"
}
