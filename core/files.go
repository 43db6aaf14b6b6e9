package core

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

var ErrFileNotFound = errors.New("file not found")

type (
	// StoredFile describes an object held by a FileStorage.
	StoredFile struct {
		Key     string
		Size    int64
		ModTime time.Time
	}

	// FileStorage persists uploaded files under opaque keys.
	FileStorage interface {
		Save(ctx context.Context, prefix, filename string, r io.Reader) (key string, err error)
		Open(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
		List(ctx context.Context, prefix string) ([]StoredFile, error)
	}
)
