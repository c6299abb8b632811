package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute application paths
type Paths struct {
	RootDir     string
	DataDir     string
	ExportsDir  string
	LogsDir     string
	DatasetFile string
	LogFile     string
}

// ExecutableDir returns the directory holding the running binary, with symlinks resolved
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

// ResolvePaths turns the configured locations into absolute paths. Relative
// directories are taken from Paths.RootDir, or the executable directory when unset.
func (c *Config) ResolvePaths() (*Paths, error) {
	root := c.Paths.RootDir
	if root == "" {
		dir, err := ExecutableDir()
		if err != nil {
			return nil, err
		}
		root = dir
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	p := &Paths{
		RootDir:    root,
		DataDir:    under(root, c.Paths.DataDir),
		ExportsDir: under(root, c.Paths.ExportsDir),
		LogsDir:    under(root, c.Paths.LogsDir),
	}
	p.DatasetFile = under(p.DataDir, c.Dataset.File)
	p.LogFile = under(root, c.Logging.FilePath)
	return p, nil
}

// EnsureDirectories creates the data, exports and logs directories
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ExportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExportPath returns the path of an export file in the exports directory
func (p *Paths) ExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// LogValue implements slog.LogValuer
func (p *Paths) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("root", p.RootDir),
		slog.String("data", p.DataDir),
		slog.String("exports", p.ExportsDir),
		slog.String("logs", p.LogsDir),
		slog.String("dataset", p.DatasetFile),
	)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func under(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
