// Package storage keeps photo assets and derives their public URLs.
package storage

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

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Bucket is the public bucket name that appears in asset URLs.
const Bucket = "trip-photos"

// PublicPrefix is the URL path under which assets are served.
const PublicPrefix = "/storage/v1/object/public/" + Bucket + "/"

// ObjectStorage stores binary assets addressed by relative path.
type ObjectStorage interface {
	Upload(ctx context.Context, objectPath string, r io.Reader) error
	Remove(ctx context.Context, objectPaths []string) error
	PublicURL(objectPath string) string
}

// FSStore is an ObjectStorage backed by a local directory.
type FSStore struct {
	root    string
	baseURL string
}

var _ ObjectStorage = (*FSStore)(nil)

// NewFSStore creates root if needed and returns a store rooted there.
func NewFSStore(root, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage.NewFSStore: %w", err)
	}
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory assets are kept in.
func (s *FSStore) Root() string { return s.root }

// Upload writes r to objectPath, replacing any existing object. The file is
// written under a temporary name and renamed, so readers never see a
// partial asset.
func (s *FSStore) Upload(ctx context.Context, objectPath string, r io.Reader) error {
	full, err := s.resolve(objectPath)
	if err != nil {
		return fmt.Errorf("storage.FSStore.Upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("storage.FSStore.Upload: %w: %w", domain.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage.FSStore.Upload: %w: %w", domain.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FSStore.Upload: copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage.FSStore.Upload: %w: %w", domain.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("storage.FSStore.Upload: %w: %w", domain.ErrStorage, err)
	}
	return nil
}

// Remove deletes every listed object. Objects that do not exist are ignored;
// any other failure is reported after all paths have been tried.
func (s *FSStore) Remove(ctx context.Context, objectPaths []string) error {
	var errs []error
	for _, p := range objectPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		full, err := s.resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("storage.FSStore.Remove: %w: %w", domain.ErrStorage, errors.Join(errs...))
	}
	return nil
}

// PublicURL returns <base>/storage/v1/object/public/trip-photos/<path>.
func (s *FSStore) PublicURL(objectPath string) string {
	return s.baseURL + PublicPrefix + strings.TrimLeft(objectPath, "/")
}

// resolve maps a relative object path onto the filesystem, refusing anything
// that would escape the root.
func (s *FSStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if objectPath == "" || clean == "/" || clean != "/"+objectPath {
		return "", fmt.Errorf("%w: invalid object path %q", domain.ErrValidation, objectPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

// PhotoPath builds the object path of a new photo: <tripId>/<unix-ms>.<ext>,
// with the extension taken from the uploaded file name.
func PhotoPath(tripID uuid.UUID, filename string, now time.Time) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" || len(ext) > 8 {
		return "", fmt.Errorf("%w: photo file name needs an extension", domain.ErrValidation)
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: invalid photo extension %q", domain.ErrValidation, ext)
		}
	}
	return fmt.Sprintf("%s/%d.%s", tripID, now.UnixMilli(), ext), nil
}
