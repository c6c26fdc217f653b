// Package imagestore binds image bytes to an external blob store and releases them again.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUploadFailed wraps any backend failure while binding an image.
	ErrUploadFailed = errors.New("image upload failed")
	// ErrReleaseFailed wraps backend failures while releasing. It is only ever logged.
	ErrReleaseFailed = errors.New("image release failed")
	// ErrEmptyImage is returned by Bind for a zero-length payload.
	ErrEmptyImage = errors.New("image payload is empty")
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 5 * time.Second

// Meta describes an uploaded file.
type Meta struct {
	Filename    string
	ContentType string
}

// Backend stores blobs under a key and returns a public reference for them.
type Backend interface {
	Put(ctx context.Context, key, ext string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Gateway is the only path between the catalog and the blob store.
type Gateway struct {
	backend Backend
	timeout time.Duration
	log     *log.Logger
}

func NewGateway(b Backend, timeout time.Duration, logger *log.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{backend: b, timeout: timeout, log: logger}
}

// Bind stores data under a fresh key and returns its reference.
func (g *Gateway) Bind(ctx context.Context, data []byte, meta Meta) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	key := uuid.NewString()
	ref, err := g.backend.Put(ctx, key, extension(meta), data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return ref, nil
}

// Release deletes the blob behind ref. Failures are logged and reported as false;
// callers never fail an operation because of them.
func (g *Gateway) Release(ctx context.Context, ref string) bool {
	if ref == "" {
		return true
	}
	key := StorageKey(ref)
	if key == "" {
		g.log.Printf("imagestore: %v: cannot derive key from %q", ErrReleaseFailed, ref)
		return false
	}

	// release runs after the owning transaction committed; a cancelled request must not skip it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	if err := g.backend.Delete(ctx, key); err != nil {
		g.log.Printf("imagestore: %v: %s: %v", ErrReleaseFailed, ref, err)
		return false
	}
	return true
}

// StorageKey derives the backend key from a reference: its last path segment
// without extension.
func StorageKey(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	base := path.Base(ref)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func extension(meta Meta) string {
	if ext := strings.ToLower(filepath.Ext(meta.Filename)); ext != "" {
		return ext
	}
	if meta.ContentType != "" {
		if exts, err := mime.ExtensionsByType(meta.ContentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ""
}
