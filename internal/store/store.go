package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/straja-ai/textpulse/internal/config"
)

const (
	// ProcessedPrefix is the namespace an item is moved into once consumed.
	// Living under it is the processed-state marker.
	ProcessedPrefix = "processed/"
	// TextSuffix marks keys that hold text items.
	TextSuffix = ".txt"
)

// ItemStore is the durable store the collector drains.
type ItemStore interface {
	// List returns every key in bucket, processed or not.
	List(ctx context.Context, bucket string) ([]string, error)
	// Get returns the content stored under key.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// MoveToProcessed copies key under ProcessedPrefix and then deletes the
	// source object. The two steps are not atomic.
	MoveToProcessed(ctx context.Context, bucket, key string) error
}

// Eligible reports whether key is an unprocessed text item.
func Eligible(key string) bool {
	return strings.HasSuffix(key, TextSuffix) && !strings.HasPrefix(key, ProcessedPrefix)
}

// ProcessedKey returns the key an item lives under after MoveToProcessed.
func ProcessedKey(key string) string {
	return ProcessedPrefix + key
}

// Discover lists bucket and keeps only eligible keys, preserving order.
func Discover(ctx context.Context, s ItemStore, bucket string) ([]string, error) {
	keys, err := s.List(ctx, bucket)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if Eligible(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// New builds the ItemStore selected by cfg.Backend. S3 moves are conditional
// on the source ETag.
func New(cfg config.StoreConfig) (ItemStore, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return NewLocalStore(cfg.LocalRoot)
	case config.BackendS3, "":
		return NewS3Store(S3Config{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.SSL(),
			Conditional:     true,
		})
	default:
		return nil, wrapError("connect", "", CodeIO, false, fmt.Errorf("unknown store backend %q", cfg.Backend))
	}
}
