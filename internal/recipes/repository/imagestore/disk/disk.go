package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/google/uuid"
)

const recipeUploadDir = "uploads/recipe"

// ImageStore writes uploaded recipe images below a configured root
// directory. Stored references are paths relative to that root, so
// they stay valid if the root moves.
type ImageStore struct {
	dir string
}

func New(cfg config.Storage) (ImageStore, error) {
	if err := os.MkdirAll(filepath.Join(cfg.Dir, recipeUploadDir), 0o755); err != nil {
		return ImageStore{}, fmt.Errorf("mkdir error: %w", err)
	}

	return ImageStore{
		dir: cfg.Dir,
	}, nil
}

// Save stores the image bytes under a fresh uuid name keeping the
// original extension and returns the relative reference.
func (is ImageStore) Save(_ context.Context, ext string, data []byte) (string, error) {
	name := uuid.New().String() + ext
	rel := filepath.Join(recipeUploadDir, name)

	if err := os.WriteFile(filepath.Join(is.dir, rel), data, 0o644); err != nil { //nolint:gosec
		return "", fmt.Errorf("write file error: %w", err)
	}

	return rel, nil
}
