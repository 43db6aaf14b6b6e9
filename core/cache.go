package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores JSON-encodable values under string keys.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
