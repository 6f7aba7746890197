// Package media validates and stores featured images for posts.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"path"
	"time"

	"go-blog-app/internal/config"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // register WebP decoder
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("image is too large")
	// ErrUnsupportedType is returned for anything but JPEG, PNG, GIF or WebP.
	ErrUnsupportedType = errors.New("file is not a supported image type")
	// ErrCorrupt is returned when the content sniffs as an image but does not decode.
	ErrCorrupt = errors.New("image could not be decoded")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store persists uploaded files under a key and maps keys to public URLs.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New returns the store selected by cfg.Backend.
func New(cfg config.MediaConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Root, cfg.URLPrefix)
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

// Validate checks that data is a decodable image of an allowed type no
// larger than maxBytes. It returns the sniffed content type and the file
// extension to store it under.
func Validate(data []byte, maxBytes int64) (contentType, ext string, err error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", "", ErrTooLarge
	}
	contentType = http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", "", ErrCorrupt
	}
	return contentType, ext, nil
}

// Key builds a unique storage key: featured_images/YYYY/MM/<uuid><ext>.
func Key(now time.Time, ext string) string {
	return path.Join("featured_images",
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		uuid.New().String()+ext)
}
