package violations

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

	"github.com/agrohub/agrohub/internal/shared"
)

// DefaultMaxPhotoBytes is the upload size limit.
const DefaultMaxPhotoBytes int64 = 10 << 20

var allowedPhotoExt = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".mp4": {}, ".mov": {}, ".avi": {},
}

// StoredFile describes a file written by PhotoStorage.
type StoredFile struct {
	Filename string
	Path     string
	URL      string
	Size     int64
}

// PhotoStorage persists evidence files.
type PhotoStorage interface {
	Save(ctx context.Context, originalName string, r io.Reader) (StoredFile, error)
	Remove(ctx context.Context, storedPath string) error
}

// LocalStorage writes files below a root directory served under a public
// URL prefix.
type LocalStorage struct {
	root      string
	urlPrefix string
	maxBytes  int64
	now       func() time.Time
}

// NewLocalStorage constructs a LocalStorage. maxBytes <= 0 uses
// DefaultMaxPhotoBytes.
func NewLocalStorage(root, urlPrefix string, maxBytes int64) *LocalStorage {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPhotoBytes
	}
	return &LocalStorage{
		root:      root,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

// ValidatePhotoName checks the extension against the allow-list.
func ValidatePhotoName(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedPhotoExt[ext]; !ok {
		return "", shared.Invalid("photo", "unsupported file type; allowed: jpg, jpeg, png, gif, mp4, mov, avi")
	}
	return ext, nil
}

// Save stores r under violations/YYYY/MM/DD with a random name.
func (s *LocalStorage) Save(ctx context.Context, originalName string, r io.Reader) (StoredFile, error) {
	ext, err := ValidatePhotoName(originalName)
	if err != nil {
		return StoredFile{}, err
	}
	now := s.now().UTC()
	rel := path.Join("violations", now.Format("2006"), now.Format("01"), now.Format("02"))
	dir := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("violations: create upload dir: %w", err)
	}

	name := now.Format("20060102") + "-" + uuid.NewString() + ext
	full := filepath.Join(dir, name)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("violations: create file: %w", err)
	}
	written, copyErr := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if copyErr == nil && written > s.maxBytes {
		copyErr = shared.Invalid("photo", fmt.Sprintf("file exceeds %d MB limit", s.maxBytes>>20))
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && written == 0 {
		copyErr = shared.Invalid("photo", "file is empty")
	}
	if copyErr == nil {
		copyErr = ctx.Err()
	}
	if copyErr != nil {
		_ = os.Remove(full)
		var verr *shared.ValidationError
		if errors.As(copyErr, &verr) {
			return StoredFile{}, copyErr
		}
		return StoredFile{}, fmt.Errorf("violations: write file: %w", copyErr)
	}

	return StoredFile{
		Filename: name,
		Path:     full,
		URL:      s.urlPrefix + "/" + path.Join(rel, name),
		Size:     written,
	}, nil
}

// Remove deletes a stored file. Missing files are ignored.
func (s *LocalStorage) Remove(_ context.Context, storedPath string) error {
	clean := filepath.Clean(storedPath)
	root := filepath.Clean(s.root)
	if !strings.HasPrefix(clean, root+string(filepath.Separator)) {
		return fmt.Errorf("violations: refusing to remove %q outside upload root", storedPath)
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var _ PhotoStorage = (*LocalStorage)(nil)
