package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/taskforge/platform/pkg/apperr"
)

// S3Config configures the S3-backed Artifact Store.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Store is the production Artifact Store, per spec.md §6's key layout.
type S3Store struct {
	client *s3.Client
	bucket string
	jsonPutter
}

// NewS3Store builds an S3Store from cfg.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("artifacts: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("artifacts: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	st := &S3Store{client: client, bucket: bucket}
	st.jsonPutter = jsonPutter{put: st.Put}
	return st, nil
}

// Put uploads data under key, returning its s3:// URL.
func (s *S3Store) Put(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("artifacts: put %s: %w: %v", key, apperr.ArtifactError, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Get downloads the object at key.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("artifacts: get %s: %w", key, apperr.NotFound)
		}
		return nil, fmt.Errorf("artifacts: get %s: %w: %v", key, apperr.ArtifactError, err)
	}
	return out.Body, nil
}

// Delete removes the object at key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return fmt.Errorf("artifacts: delete %s: %w: %v", key, apperr.ArtifactError, err)
	}
	return nil
}

// ListPrefixes lists the immediate "directory" segments under root using a
// "/" delimiter, so the CleanupService orphan sweep can enumerate project
// ids under artifacts/ or audit/ without listing every object.
func (s *S3Store) ListPrefixes(ctx context.Context, root string) ([]string, error) {
	delim := "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    &root,
		Delimiter: &delim,
	})
	var segments []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("artifacts: list prefixes under %s: %w: %v", root, apperr.ArtifactError, err)
		}
		for _, cp := range page.CommonPrefixes {
			rest := strings.TrimPrefix(strings.TrimSuffix(*cp.Prefix, delim), root)
			if rest != "" {
				segments = append(segments, rest)
			}
		}
	}
	return segments, nil
}

// DeletePrefix removes every object under prefix, paginating through
// ListObjectsV2 and batch-deleting, per the CleanupService's
// audit/<project>/ and artifacts/<project>/ prefix sweeps (spec.md §4.12).
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("artifacts: list prefix %s: %w: %v", prefix, apperr.ArtifactError, err)
		}
		if len(page.Contents) == 0 {
			continue
		}
		var objects []types.ObjectIdentifier
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &s.bucket,
			Delete: &types.Delete{Objects: objects},
		}); err != nil {
			return fmt.Errorf("artifacts: delete prefix %s: %w: %v", prefix, apperr.ArtifactError, err)
		}
	}
	return nil
}
