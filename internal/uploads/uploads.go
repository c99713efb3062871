// Package uploads stores diary images and hands back the URL they are served
// from.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for anything that is not an allowed image.
var ErrUnsupportedType = errors.New("unsupported image type")

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Store persists an image and returns its public URL.
type Store interface {
	Put(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error)
}

// Allowed reports whether contentType is one of the accepted image types.
func Allowed(contentType string) bool {
	_, ok := extensions[mediaType(contentType)]
	return ok
}

// ObjectName picks a fresh file name carrying the extension for contentType.
func ObjectName(contentType string, now time.Time) (string, error) {
	ext, ok := extensions[mediaType(contentType)]
	if !ok {
		return "", fmt.Errorf("%q: %w", contentType, ErrUnsupportedType)
	}

	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), uuid.NewString()[:8], ext), nil
}

// Strips parameters like "; charset=binary".
func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// DiskStore writes images under a directory that is served at Prefix.
type DiskStore struct {
	Dir    string
	Prefix string
}

func (d DiskStore) Put(_ context.Context, name, _ string, body io.Reader, _ int64) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating upload dir: %w", err)
	}

	f, err := os.Create(filepath.Join(d.Dir, name))
	if err != nil {
		return "", fmt.Errorf("error creating upload file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("error writing upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("error closing upload file: %w", err)
	}

	return path.Join("/", d.Prefix, name), nil
}
