package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is the key-value contract used for session and profile lookups.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value with ttl. A non-positive ttl means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrMiss = errors.New("cache: miss")

// Noop never stores anything. It is used when no Redis URL is configured.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(context.Context, string) (string, error) { return "", ErrMiss }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Noop) Del(context.Context, ...string) (int64, error) { return 0, nil }
func (Noop) Ping(context.Context) error { return nil }
func (Noop) Close() error { return nil }
