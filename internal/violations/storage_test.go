package violations

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrohub/agrohub/internal/shared"
)

func TestLocalStorageSaveAndRemove(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStorage(root, "/uploads/", 1024)
	s.now = func() time.Time { return time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC) }

	stored, err := s.Save(context.Background(), "Gate Camera.JPG", strings.NewReader("jpeg-data"))
	require.NoError(t, err)
	require.EqualValues(t, 9, stored.Size)
	require.True(t, strings.HasPrefix(stored.URL, "/uploads/violations/2025/02/03/20250203-"), stored.URL)
	require.True(t, strings.HasSuffix(stored.Filename, ".jpg"))

	data, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	require.Equal(t, "jpeg-data", string(data))

	require.NoError(t, s.Remove(context.Background(), stored.Path))
	_, err = os.Stat(stored.Path)
	require.True(t, os.IsNotExist(err))

	// Removing twice is fine.
	require.NoError(t, s.Remove(context.Background(), stored.Path))
}

func TestLocalStorageRejects(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStorage(root, "/uploads", 4)

	_, err := s.Save(context.Background(), "script.php", strings.NewReader("x"))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = s.Save(context.Background(), "big.png", strings.NewReader("12345"))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = s.Save(context.Background(), "empty.png", strings.NewReader(""))
	require.ErrorIs(t, err, shared.ErrValidation)

	// Rejected uploads leave no files behind.
	var files []string
	require.NoError(t, filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, p)
		}
		return err
	}))
	require.Empty(t, files)

	require.Error(t, s.Remove(context.Background(), filepath.Join(root, "..", "etc", "passwd")))
}

func TestNewLocalStorageDefaultsLimit(t *testing.T) {
	require.Equal(t, DefaultMaxPhotoBytes, NewLocalStorage(t.TempDir(), "", 0).maxBytes)
}
