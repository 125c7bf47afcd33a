package locator

import (
	"errors"
	"fmt"
	"io/fs"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/imgclf/internal/domain"
)

// ErrNotDirectory is returned when the dataset root is missing or not a directory
var ErrNotDirectory = errors.New("not a directory")

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true, ".tiff": true,
}

// IsImage reports whether name carries a known image extension (case-insensitive).
// Leading dots are part of the name, so ".png" has no extension.
func IsImage(name string) bool {
	base := strings.TrimLeft(filepath.Base(name), ".")
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}

// FindImages walks dir recursively and returns every image file, in walk order.
// Unreadable entries below dir are logged and skipped.
func FindImages(dir string) ([]domain.ImagePath, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	var paths []domain.ImagePath
	if err := filepath.WalkDir(dir, visit(dir, &paths)); err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	return paths, nil
}

func visit(root string, paths *[]domain.ImagePath) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsImage(d.Name()) {
			return nil
		}
		*paths = append(*paths, domain.ImagePath(path))
		return nil
	}
}
