package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore is a filesystem-backed ItemStore for development and tests.
// Layout: <root>/<bucket>/<key>.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, wrapError("connect", "", CodeIO, false, errors.New("local root is required"))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, wrapError("connect", "", CodeIO, false, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, wrapError("connect", "", CodeIO, false, fmt.Errorf("create root: %w", err))
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) List(ctx context.Context, bucket string) ([]string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, wrapError("list", "", CodeBucketNotFound, false, err)
		}
		return nil, wrapError("list", "", CodeIO, true, err)
	}

	var keys []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, classifyLocalError("list", "", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, classifyLocalError("get", key, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyLocalError("get", key, err)
	}
	return data, nil
}

// Put writes data under key, creating parent directories.
func (s *LocalStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return classifyLocalError("put", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return classifyLocalError("put", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return classifyLocalError("put", key, err)
	}
	return nil
}

func (s *LocalStore) MoveToProcessed(ctx context.Context, bucket, key string) error {
	data, err := s.Get(ctx, bucket, key)
	if err != nil {
		return wrapError("move", key, codeOf(err), false, err)
	}
	if err := s.Put(ctx, bucket, ProcessedKey(key), data); err != nil {
		return wrapError("move", key, codeOf(err), true, err)
	}
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return classifyLocalError("move", key, err)
	}
	return nil
}

func (s *LocalStore) bucketDir(bucket string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", wrapError("resolve", "", CodeBucketNotFound, false, fmt.Errorf("invalid bucket %q", bucket))
	}
	return filepath.Join(s.root, bucket), nil
}

func (s *LocalStore) objectPath(bucket, key string) (string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.FromSlash(key))
	if key == "" || !strings.HasPrefix(path, dir+string(filepath.Separator)) {
		return "", wrapError("resolve", key, CodePermissionDenied, false, errors.New("key escapes bucket"))
	}
	return path, nil
}

func classifyLocalError(op, key string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return wrapError(op, key, CodeTimeout, true, err)
	case errors.Is(err, fs.ErrNotExist):
		return wrapError(op, key, CodeObjectNotFound, false, err)
	case errors.Is(err, fs.ErrPermission):
		return wrapError(op, key, CodePermissionDenied, false, err)
	default:
		return wrapError(op, key, CodeIO, true, err)
	}
}

func codeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeIO
}
