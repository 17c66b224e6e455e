package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"argmatch/internal/config"
	"argmatch/internal/domain"
	"argmatch/internal/logging"
)

// Layout resolves files under the data, models and evaluation roots.
type Layout struct {
	DataDir   string
	ModelsDir string
	EvalDir   string
	logger    *zap.Logger
}

// NewLayout creates a layout from the configured roots.
func NewLayout(paths config.PathsConfig, logger *zap.Logger) *Layout {
	return &Layout{
		DataDir:   paths.DataDir,
		ModelsDir: paths.ModelsDir,
		EvalDir:   paths.EvalDir,
		logger:    logging.OrNop(logger),
	}
}

// DataPath returns the path of a file under the data root.
func (l *Layout) DataPath(file string) string { return filepath.Join(l.DataDir, file) }

// ModelPath returns the folder of a named model.
func (l *Layout) ModelPath(name string) string { return filepath.Join(l.ModelsDir, name) }

// EvalPath returns the path of an entry under the evaluation root.
func (l *Layout) EvalPath(name string) string { return filepath.Join(l.EvalDir, name) }

// IsModelPresent reports whether the folder of the named model exists and
// holds at least one entry.
func (l *Layout) IsModelPresent(name string) bool {
	path := l.ModelPath(name)
	present, err := hasEntries(path)
	if err != nil {
		l.logger.Debug("model folder not readable", zap.String("path", path), zap.Error(err))
		return false
	}
	return present
}

// FreshEvalDir empties the evaluation folder for name and returns its path.
func (l *Layout) FreshEvalDir(name string) (string, error) {
	path := l.EvalPath(name)
	if err := EmptyFolder(path); err != nil {
		return "", err
	}
	l.logger.Debug("evaluation folder cleared", zap.String("path", path))
	return path, nil
}

// EmptyFolder makes sure path exists and has no direct children. Files are
// removed; a subdirectory fails with domain.ErrNestedEntry and is left alone.
func EmptyFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrFilesystem, path, err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrFilesystem, path, err)
	}
	for _, e := range entries {
		child := filepath.Join(path, e.Name())
		if e.IsDir() {
			return fmt.Errorf("%w: %s", domain.ErrNestedEntry, child)
		}
		if err := os.Remove(child); err != nil {
			return fmt.Errorf("%w: remove %s: %v", domain.ErrFilesystem, child, err)
		}
	}
	return nil
}

func hasEntries(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	names, err := f.Readdirnames(1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return len(names) > 0, nil
}
