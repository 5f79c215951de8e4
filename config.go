package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stevemurr/jsonsqlite/ingest"
	"github.com/stevemurr/jsonsqlite/schema"
)

const envPrefix = "JSONSQLITE"

type config struct {
	DB          string
	RootTable   string
	Backend     string
	DryRun      bool
	CommitEvery int
	MaxDepth    int
	MaxLineSize datasize.ByteSize
	LogLevel    slog.Level
	Summary     string
}

func (c config) ingest() ingest.Config {
	return ingest.Config{
		RootTable:   c.RootTable,
		CommitEvery: c.CommitEvery,
		MaxDepth:    c.MaxDepth,
		MaxLineSize: int(c.MaxLineSize.Bytes()),
	}
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String("db", "output.db", "SQLite database file")
	flags.String("root-table", ingest.DefaultRootTable, "Name of the table holding top-level records")
	flags.String("backend", "sqlite", "Storage backend (sqlite, memory)")
	flags.Bool("dry-run", false, "Ingest into memory and write nothing to disk")
	flags.Int("commit-every", ingest.DefaultCommitEvery, "Commit after this many records")
	flags.Int("max-depth", schema.DefaultMaxDepth, "Maximum nesting depth")
	flags.String("max-line-size", "64MB", "Longest accepted line of newline-delimited input")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("summary", "", `Write the run summary as JSON to this file ("-" for stdout)`)
}

// loadConfig merges flags with JSONSQLITE_* environment variables. Values
// from a .env file in the working directory are loaded first and never
// override the real environment. Flags set on the command line win.
func loadConfig(flags *pflag.FlagSet, dotEnv string) (config, error) {
	if dotEnv != "" {
		if err := godotenv.Load(dotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("load %s: %w", dotEnv, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return config{}, err
	}

	cfg := config{
		DB:        v.GetString("db"),
		RootTable: v.GetString("root-table"),
		Backend:   strings.ToLower(v.GetString("backend")),
		DryRun:    v.GetBool("dry-run"),
		Summary:   v.GetString("summary"),
	}

	var err error
	if cfg.CommitEvery, err = positiveInt(v.Get("commit-every")); err != nil {
		return config{}, fmt.Errorf("invalid commit-every: %w", err)
	}
	if cfg.MaxDepth, err = positiveInt(v.Get("max-depth")); err != nil {
		return config{}, fmt.Errorf("invalid max-depth: %w", err)
	}
	if cfg.MaxLineSize, err = datasize.ParseString(v.GetString("max-line-size")); err != nil {
		return config{}, fmt.Errorf("invalid max-line-size %q: %w", v.GetString("max-line-size"), err)
	}
	if cfg.MaxLineSize == 0 {
		return config{}, errors.New("invalid max-line-size: must be positive")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return config{}, fmt.Errorf("invalid log-level: %w", err)
	}

	if cfg.DryRun {
		cfg.Backend = "memory"
	}
	switch cfg.Backend {
	case "sqlite", "memory":
	default:
		return config{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if strings.TrimSpace(cfg.RootTable) == "" {
		return config{}, errors.New("root-table must not be empty")
	}
	return cfg, nil
}

// positiveInt accepts ints from flags and strings from the environment.
// Strings are always base 10, so "010" is ten.
func positiveInt(raw any) (int, error) {
	var (
		n   int
		err error
	)
	if str, ok := raw.(string); ok {
		n, err = strconv.Atoi(strings.TrimSpace(str))
	} else {
		n, err = cast.ToIntE(raw)
	}
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
