package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Paths contains all the application paths, resolved to absolute form.
type Paths struct {
	Root       string
	DataDir    string
	LedgersDir string
	ExportsDir string
	LogsDir    string
	Journal    string
	FundsFile  string
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ResolvePaths turns the configured paths into absolute ones. When no root is
// configured the directory of the running executable is used.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	root := cfg.Root
	if root == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		// Resolve symlinks to get the actual executable location
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		root = filepath.Dir(exe)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	return &Paths{
		Root:       root,
		DataDir:    resolve(cfg.DataDir),
		LedgersDir: resolve(cfg.LedgersDir),
		ExportsDir: resolve(cfg.ExportsDir),
		LogsDir:    resolve(cfg.LogsDir),
		Journal:    resolve(cfg.Journal),
		FundsFile:  resolve(cfg.FundsFile),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.LedgersDir,
		p.ExportsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// LedgerPath returns the workbook path for a fund ledger file name.
func (p *Paths) LedgerPath(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(p.LedgersDir, file)
}

// ExportPath returns a sanitized path inside the exports directory.
func (p *Paths) ExportPath(name string) string {
	name = unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "_")
	return filepath.Join(p.ExportsDir, name)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("root", p.Root),
			slog.String("data", p.DataDir),
			slog.String("ledgers", p.LedgersDir),
			slog.String("exports", p.ExportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.String("journal", p.Journal),
		slog.String("funds_file", p.FundsFile),
	)
}
