package files

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
)

// Local stores files under a directory of the local filesystem.
type Local struct {
	dir string
}

var _ core.FileStorage = (*Local)(nil)

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads dir")
	}
	return &Local{dir: dir}, nil
}

func (l *Local) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, filepath.FromSlash(key)), nil
}

func (l *Local) Save(_ context.Context, prefix, filename string, r io.Reader) (string, error) {
	key := newKey(prefix, filename)
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errors.Wrap(err, "creating dir")
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", errors.Wrap(err, "writing file")
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(p)
		return "", errors.Wrap(err, "closing file")
	}
	return key, nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return core.ErrFileNotFound
		}
		return errors.Wrap(err, "removing file")
	}
	return nil
}

func (l *Local) List(_ context.Context, prefix string) ([]core.StoredFile, error) {
	root, err := l.path(prefix)
	if err != nil {
		return nil, err
	}

	var stored []core.StoredFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.dir, p)
		if err != nil {
			return err
		}
		stored = append(stored, core.StoredFile{
			Key:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing files")
	}
	return stored, nil
}
