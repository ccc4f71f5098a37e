// Package s3 stores objects in Amazon S3 or an S3-compatible service.
package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/storage"
)

// Store implements storage.Store using Amazon S3 (or S3-compatible services).
type Store struct {
	client    *awss3.Client
	region    string
	pathStyle bool
	endpoint  string
	publicURL string
}

// NewStore creates a new S3 client from the given config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	pathStyle := cfg.ForcePathStyle || endpoint != ""
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
		// S3-compatible services often reject the newer default checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &Store{
		client:    client,
		region:    cfg.Region,
		pathStyle: pathStyle,
		endpoint:  endpoint,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Put uploads reader to bucket/key. Non-seekable readers are buffered
// so the payload can be signed.
func (s *Store) Put(ctx context.Context, bucket, key string, reader io.Reader, contentType string) error {
	body, ok := reader.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("storage: s3 upload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	in := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return s.classify(err, "upload", bucket, key)
	}
	return nil
}

// Get returns a reader for the S3 object at bucket/key.
func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.classify(err, "download", bucket, key)
	}
	return out.Body, nil
}

// Delete removes an S3 object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.classify(err, "delete", bucket, key)
	}
	return nil
}

// Exists checks whether an S3 object exists.
func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return false, nil
		}
		return false, s.classify(err, "head", bucket, key)
	}
	return true, nil
}

// URL returns the public URL for bucket/key.
func (s *Store) URL(bucket, key string) string {
	key = escapeKey(key)
	switch {
	case s.publicURL != "":
		return fmt.Sprintf("%s/%s/%s", s.publicURL, bucket, key)
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", s.endpoint, bucket, key)
	case s.pathStyle:
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", s.region, bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, key)
	}
}

// CreateBucket creates the bucket and, when public, attaches a policy
// allowing anonymous reads.
func (s *Store) CreateBucket(ctx context.Context, name string, public bool) error {
	in := &awss3.CreateBucketInput{Bucket: aws.String(name)}
	if s.region != DefaultRegion {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, in); err != nil && !alreadyOwned(err) {
		return s.classify(err, "create bucket", name, "")
	}
	if !public {
		return nil
	}
	_, err := s.client.PutBucketPolicy(ctx, &awss3.PutBucketPolicyInput{
		Bucket: aws.String(name),
		Policy: aws.String(publicReadPolicy(name)),
	})
	if err != nil {
		return s.classify(err, "put bucket policy", name, "")
	}
	return nil
}

// List returns metadata for all objects whose key starts with prefix.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	var files []storage.ObjectInfo
	for {
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, s.classify(err, "list", bucket, prefix)
		}
		for _, obj := range out.Contents {
			fi := storage.ObjectInfo{
				Bucket: bucket,
				Key:    aws.ToString(obj.Key),
				Size:   aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				fi.LastModified = *obj.LastModified
			}
			files = append(files, fi)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return files, nil
}

func (s *Store) classify(err error, op, bucket, key string) error {
	if notFound(err) {
		return errors.NotFound("object", strings.TrimSuffix(bucket+"/"+key, "/")).WithCause(err)
	}
	return fmt.Errorf("storage: s3 %s: %w", op, err)
}

func notFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var nb *types.NoSuchBucket
	if stderrors.As(err, &nsk) || stderrors.As(err, &nf) || stderrors.As(err, &nb) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return stderrors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}

func alreadyOwned(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	return stderrors.As(err, &owned)
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Sid":"PublicRead","Effect":"Allow","Principal":"*","Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// compile-time check
var _ storage.Store = (*Store)(nil)
