// Command jsonsqlite loads a JSON or newline-delimited JSON file into a
// SQLite database. Nested objects and arrays of objects become child tables
// linked to their parent rows; the schema is inferred from the data.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/stevemurr/jsonsqlite/ingest"
	"github.com/stevemurr/jsonsqlite/store"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "jsonsqlite: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jsonsqlite [flags] INPUT",
		Short: "Load JSON records into a relational SQLite schema",
		Long: `jsonsqlite reads INPUT, either a single JSON array of objects or one JSON
object per line, and writes every record as a row of the root table.
Nested objects and arrays of objects are written to child tables named
parent__field, each row linked to its parent by a parent_id column.

Every flag can also be set with a JSONSQLITE_* environment variable,
e.g. JSONSQLITE_COMMIT_EVERY=500, or in a .env file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), ".env")
			if err != nil {
				return err
			}
			return run(cfg, args[0], cmd.OutOrStdout())
		},
	}
	registerFlags(cmd.Flags())
	return cmd
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func run(cfg config, input string, stdout io.Writer) error {
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if _, err := os.Stat(input); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file not found: %s", input)
		}
		return err
	}

	s, err := store.New(cfg.Backend, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("cannot close store", "error", err)
		}
	}()
	if cfg.Backend == "sqlite" {
		logger.Info("database opened", "path", cfg.DB)
	}

	sum, err := ingest.New(s, cfg.ingest(), ingest.WithLogger(logger)).IngestFile(input)
	if err != nil {
		return err
	}
	if cfg.Summary != "" {
		if err := writeSummary(sum, cfg.Summary, stdout); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}

func writeSummary(sum ingest.Summary, dest string, stdout io.Writer) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if dest == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
