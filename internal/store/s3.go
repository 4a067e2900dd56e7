package store

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/1ureka/groundlink/internal/util"
)

// putObjectAPI is the subset of the S3 client used by S3.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads artifacts to a bucket, optionally under a key prefix.
type S3 struct {
	client putObjectAPI
	bucket string
	prefix string
}

var _ Sink = (*S3)(nil)

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, bucket, region, prefix string) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newS3(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3(client putObjectAPI, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// key joins the prefix and the artifact's base name with forward slashes.
func (s *S3) key(name string) string {
	return path.Join(s.prefix, filepath.Base(name))
}

func (s *S3) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("%w: s3://%s/%s: %w", ErrArtifactIO, s.bucket, key, err)
	}
	util.LogDebug("uploaded s3://%s/%s (%d bytes)", s.bucket, key, len(data))
	return nil
}
