package disk_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/repository/imagestore/disk"
	"github.com/stretchr/testify/require"
)

func TestSave(t *testing.T) {
	dir := t.TempDir()

	store, err := disk.New(config.Storage{Dir: dir})
	require.NoError(t, err)

	data := []byte("image bytes")

	ref, err := store.Save(context.Background(), ".png", data)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(ref, filepath.Join("uploads", "recipe")))
	require.True(t, strings.HasSuffix(ref, ".png"))

	got, err := os.ReadFile(filepath.Join(dir, ref))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestSaveUniqueNames(t *testing.T) {
	store, err := disk.New(config.Storage{Dir: t.TempDir()})
	require.NoError(t, err)

	first, err := store.Save(context.Background(), ".jpg", []byte("one"))
	require.NoError(t, err)

	second, err := store.Save(context.Background(), ".jpg", []byte("two"))
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}
