// Package kvcache provides the small string key/value store the resolver
// uses to remember the resolved store id across restarts.
package kvcache

import (
	"context"
	"fmt"
	"strings"
)

// Cache is a string key/value store.
type Cache interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Kind names a cache backend.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindRedis  Kind = "redis"
)

// Options configures Open.
type Options struct {
	Path     string
	RedisURL string
	Prefix   string
}

// Open builds the cache backend named by kind.
func Open(ctx context.Context, kind Kind, opts Options) (Cache, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindMemory, "":
		return NewMemory(), nil
	case KindFile:
		return NewFile(opts.Path)
	case KindRedis:
		return NewRedis(ctx, opts.RedisURL, opts.Prefix)
	default:
		return nil, fmt.Errorf("unsupported cache kind %q", kind)
	}
}

// Close releases backend resources when the cache holds any.
func Close(c Cache) error {
	if closer, ok := c.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
