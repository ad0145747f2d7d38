package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no file",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 3*time.Second, cfg.Fetch.HeadTimeout)
				assert.Equal(t, 10*time.Second, cfg.Fetch.IndexTimeout)
				assert.Equal(t, 30*time.Second, cfg.Fetch.DownloadTimeout)
				assert.Equal(t, 3, cfg.Update.FundConcurrency)
				assert.Equal(t, time.Now().Year(), cfg.Update.Year)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "data/ledgers", cfg.Paths.LedgersDir)
			},
		},
		{
			name: "environment overrides defaults",
			env: map[string]string{
				"MFL_SERVER_PORT":             "9090",
				"MFL_UPDATE_YEAR":             "2024",
				"MFL_FETCH_HEAD_TIMEOUT":      "5s",
				"MFL_UPDATE_FUND_CONCURRENCY": "1",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 2024, cfg.Update.Year)
				assert.Equal(t, 5*time.Second, cfg.Fetch.HeadTimeout)
				assert.Equal(t, 1, cfg.Update.FundConcurrency)
			},
		},
		{
			name: "file overrides defaults",
			file: "server:\n  port: 7070\nupdate:\n  year: 2023\nlogging:\n  level: debug\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 2023, cfg.Update.Year)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "environment wins over file",
			env:  map[string]string{"MFL_SERVER_PORT": "9191"},
			file: "server:\n  port: 7070\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9191, cfg.Server.Port)
			},
		},
		{
			name: "unknown log output falls back to stdout",
			env:  map[string]string{"MFL_LOGGING_OUTPUT": "syslog", "MFL_LOGGING_FORMAT": "text"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "stdout", cfg.Logging.Output)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name: "zero concurrency clamps to one",
			file: "update:\n  fund_concurrency: -2\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 1, cfg.Update.FundConcurrency)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"MFL_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "non-positive rate limit",
			env:     map[string]string{"MFL_FETCH_RPS": "0"},
			wantErr: true,
		},
		{
			name:    "malformed file",
			file:    "server: [port",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, "config.yaml", tt.file)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestResolvePaths(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere.db")

	paths, err := ResolvePaths(PathsConfig{
		Root:       root,
		DataDir:    "data",
		LedgersDir: "data/ledgers",
		ExportsDir: "data/exports",
		LogsDir:    "logs",
		Journal:    abs,
	})
	require.NoError(t, err)

	assert.Equal(t, root, paths.Root)
	assert.Equal(t, filepath.Join(root, "data", "ledgers"), paths.LedgersDir)
	assert.Equal(t, abs, paths.Journal)
	assert.Empty(t, paths.FundsFile)

	require.NoError(t, paths.EnsureDirectories())
	assert.DirExists(t, paths.LedgersDir)
	assert.DirExists(t, paths.ExportsDir)
	assert.DirExists(t, paths.LogsDir)

	assert.Equal(t, filepath.Join(paths.LedgersDir, "A.xlsx"), paths.LedgerPath("A.xlsx"))
	assert.Equal(t, filepath.Join(paths.ExportsDir, "ppfas_March_2025.csv"), paths.ExportPath("ppfas March/2025.csv"))
	assert.True(t, FileExists(paths.DataDir))
	assert.False(t, FileExists(filepath.Join(root, "nope")))
}
