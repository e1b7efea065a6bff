package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes an S3-compatible endpoint.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	// Conditional makes MoveToProcessed copy only if the source object still
	// carries the ETag that Get observed when it read the content.
	Conditional bool
}

// S3Store implements ItemStore using the minio-go SDK.
type S3Store struct {
	client      *minio.Client
	conditional bool

	mu    sync.Mutex
	etags map[string]string // bucket/key -> ETag seen by Get
}

// NewS3Store creates a client for AWS S3, MinIO or any S3-compatible service.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, wrapError("connect", "", CodeEndpointUnreachable, false, errors.New("endpoint is required"))
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, wrapError("connect", "", CodeEndpointUnreachable, false, fmt.Errorf("invalid endpoint URL: %w", err))
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	creds := credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	if cfg.AccessKeyID == "" && cfg.SecretAccessKey == "" {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, wrapError("connect", "", CodeEndpointUnreachable, true, fmt.Errorf("create minio client: %w", err))
	}

	return &S3Store{client: client, conditional: cfg.Conditional, etags: make(map[string]string)}, nil
}

func (s *S3Store) List(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	objectCh := s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true})
	for obj := range objectCh {
		if obj.Err != nil {
			return nil, classifyMinioError("list", "", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError("get", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinioError("get", key, err)
	}
	if s.conditional {
		info, err := obj.Stat()
		if err != nil {
			return nil, classifyMinioError("get", key, err)
		}
		s.rememberETag(bucket, key, info.ETag)
	}
	return data, nil
}

func (s *S3Store) MoveToProcessed(ctx context.Context, bucket, key string) error {
	src := minio.CopySrcOptions{Bucket: bucket, Object: key}
	if s.conditional {
		etag, ok := s.takeETag(bucket, key)
		if !ok {
			// Never read through this store: guard the copy itself.
			info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
			if err != nil {
				return classifyMinioError("move", key, err)
			}
			etag = info.ETag
		}
		src.MatchETag = etag
	}

	dst := minio.CopyDestOptions{Bucket: bucket, Object: ProcessedKey(key)}
	if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
		return classifyMinioError("move", key, err)
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioError("move", key, err)
	}
	return nil
}

func (s *S3Store) rememberETag(bucket, key, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.etags == nil {
		s.etags = make(map[string]string)
	}
	s.etags[bucket+"/"+key] = etag
}

// takeETag returns and forgets the ETag Get recorded for bucket/key.
func (s *S3Store) takeETag(bucket, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	etag, ok := s.etags[bucket+"/"+key]
	delete(s.etags, bucket+"/"+key)
	return etag, ok
}

// classifyMinioError converts minio-go errors to our structured Error type.
func classifyMinioError(op, key string, err error) *Error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		return wrapError(op, key, CodeBucketNotFound, false, err)
	case "NoSuchKey":
		return wrapError(op, key, CodeObjectNotFound, false, err)
	case "AccessDenied":
		return wrapError(op, key, CodePermissionDenied, false, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return wrapError(op, key, CodeAuthInvalid, false, err)
	case "PreconditionFailed":
		return wrapError(op, key, CodePreconditionFailed, true, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(op, key, CodeTimeout, true, err)
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return wrapError(op, key, CodeTimeout, true, err)
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return wrapError(op, key, CodeEndpointUnreachable, true, err)
	}
	return wrapError(op, key, CodeIO, true, err)
}
