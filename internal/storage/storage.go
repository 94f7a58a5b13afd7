// Package storage keeps uploaded ad images on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const MaxImageSize = 5 << 20

var (
	ErrTooLarge        = errors.New("image exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

type ImageStore interface {
	Save(ctx context.Context, userID, filename, contentType string, r io.Reader) (string, error)
}

type localImageStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewLocalImageStore stores files under root and serves them from baseURL + "/uploads".
func NewLocalImageStore(root, baseURL string) ImageStore {
	return &localImageStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(filepath.Base(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "image"
	}
	return name
}

// Save writes the image to ads/<user>/<millis>_<name> and returns its public URL.
func (s *localImageStore) Save(ctx context.Context, userID, filename, contentType string, r io.Reader) (string, error) {
	if !allowedTypes[strings.ToLower(contentType)] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	rel := path.Join("ads", sanitize(userID), fmt.Sprintf("%d_%s", s.now().UnixMilli(), sanitize(filename)))
	dst := filepath.Join(s.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, MaxImageSize+1))
	closeErr := f.Close()
	if err == nil && n > MaxImageSize {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	return s.baseURL + "/uploads/" + rel, nil
}
