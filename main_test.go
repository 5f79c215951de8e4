package main

import (
	"bytes"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/jsonsqlite/ingest"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, config{
		DB:          "output.db",
		RootTable:   "root",
		Backend:     "sqlite",
		CommitEvery: ingest.DefaultCommitEvery,
		MaxDepth:    64,
		MaxLineSize: 64 * datasize.MB,
		LogLevel:    slog.LevelInfo,
	}, cfg)
	assert.Equal(t, 64<<20, cfg.ingest().MaxLineSize)
}

func TestLoadConfigFlags(t *testing.T) {
	cfg, err := loadConfig(newFlags(t,
		"--db", "x.db", "--root-table", "events", "--commit-every", "5",
		"--max-line-size", "1KB", "--log-level", "debug", "--summary", "-",
	), "")
	require.NoError(t, err)
	assert.Equal(t, "x.db", cfg.DB)
	assert.Equal(t, "events", cfg.RootTable)
	assert.Equal(t, 5, cfg.CommitEvery)
	assert.Equal(t, datasize.KB, cfg.MaxLineSize)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "-", cfg.Summary)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("JSONSQLITE_COMMIT_EVERY", "250")
	t.Setenv("JSONSQLITE_ROOT_TABLE", "from_env")

	cfg, err := loadConfig(newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.CommitEvery)
	assert.Equal(t, "from_env", cfg.RootTable)

	// Flags win over the environment.
	cfg, err = loadConfig(newFlags(t, "--root-table", "from_flag"), "")
	require.NoError(t, err)
	assert.Equal(t, "from_flag", cfg.RootTable)
}

func TestLoadConfigEnvIntegersAreDecimal(t *testing.T) {
	t.Setenv("JSONSQLITE_COMMIT_EVERY", "010")
	t.Setenv("JSONSQLITE_MAX_DEPTH", " 12 ")

	cfg, err := loadConfig(newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.CommitEvery)
	assert.Equal(t, 12, cfg.MaxDepth)

	t.Setenv("JSONSQLITE_COMMIT_EVERY", "0x10")
	_, err = loadConfig(newFlags(t), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit-every")
}

func TestLoadConfigDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JSONSQLITE_MAX_DEPTH=7\n"), 0o644))
	t.Setenv("JSONSQLITE_MAX_DEPTH", "")
	require.NoError(t, os.Unsetenv("JSONSQLITE_MAX_DEPTH"))

	cfg, err := loadConfig(newFlags(t), path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxDepth)

	_, err = loadConfig(newFlags(t), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestLoadConfigDryRun(t *testing.T) {
	cfg, err := loadConfig(newFlags(t, "--dry-run"), "")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Backend)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string][]string{
		"backend":       {"--backend", "postgres"},
		"commit-every":  {"--commit-every", "0"},
		"max-depth":     {"--max-depth=-1"},
		"max-line-size": {"--max-line-size", "lots"},
		"log-level":     {"--log-level", "loud"},
		"root-table":    {"--root-table", " "},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(newFlags(t, args...), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig(newFlags(t, "--db", filepath.Join(dir, "out.db")), "")
	require.NoError(t, err)

	err = run(cfg, filepath.Join(dir, "missing.json"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
	assert.NoFileExists(t, filepath.Join(dir, "out.db"))
}

func TestRunWritesDatabaseAndSummary(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.jsonl")
	require.NoError(t, os.WriteFile(input, []byte("{\"id\":1,\"addr\":{\"city\":\"X\"}}\n{\"id\":2}\n"), 0o644))
	dbPath := filepath.Join(dir, "out.db")

	cfg, err := loadConfig(newFlags(t, "--db", dbPath, "--summary", "-", "--log-level", "error"), "")
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, run(cfg, input, &out))

	var sum ingest.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	assert.Equal(t, ingest.FormatLines, sum.Format)
	assert.Equal(t, 2, sum.Written)
	assert.Equal(t, []string{"root", "root__addr"}, sum.Tables)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM root`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(input, []byte(`[{"id":1}]`), 0o644))
	dbPath := filepath.Join(dir, "out.db")
	summaryPath := filepath.Join(dir, "summary.json")

	cfg, err := loadConfig(newFlags(t, "--db", dbPath, "--dry-run", "--summary", summaryPath, "--log-level", "error"), "")
	require.NoError(t, err)
	require.NoError(t, run(cfg, input, &bytes.Buffer{}))

	assert.NoFileExists(t, dbPath)
	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"written": 1`)
}
