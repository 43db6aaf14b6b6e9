// Package files stores uploads on the local disk or in an S3-compatible bucket.
package files

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
)

// maxNameLen caps the sanitized filename kept in a key.
const maxNameLen = 100

var (
	errInvalidKey = errors.New("invalid file key")
	unsafeChars   = regexp.MustCompile(`[^\w.\-]+`)
)

// New returns the FileStorage selected by uploads.backend.
func New(conf *core.Config) (core.FileStorage, error) {
	switch conf.Uploads.Backend {
	case "", "local":
		return NewLocal(conf.Uploads.Dir)
	case "s3":
		return NewS3(conf.Uploads)
	}
	return nil, errors.Errorf("unknown uploads backend %q", conf.Uploads.Backend)
}

// newKey returns "prefix/<uuid>_<filename>", the filename sanitized to ASCII & capped at maxNameLen bytes.
func newKey(prefix, filename string) string {
	name := unsafeChars.ReplaceAllString(path.Base(filename), "_")
	if name == "" || name == "." || name == "_" {
		name = "upload"
	}
	if len(name) > maxNameLen {
		ext := path.Ext(name)
		if len(ext) > maxNameLen/4 {
			ext = ""
		}
		name = name[:maxNameLen-len(ext)] + ext
	}
	return path.Join(prefix, uuid.New().String()+"_"+name)
}

func cleanKey(key string) (string, error) {
	key = path.Clean(strings.TrimPrefix(key, "/"))
	if key == "." || key == ".." || strings.HasPrefix(key, "../") {
		return "", errInvalidKey
	}
	return key, nil
}
