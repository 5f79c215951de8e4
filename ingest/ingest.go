// Package ingest loads JSON records into a relational store.
//
// An ingestion makes two passes over its input. The schema pass registers
// every table and column the records need; the write pass inserts the rows,
// committing every Config.CommitEvery records. A record that cannot be
// parsed or written is logged and counted, and the run moves on.
package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/stevemurr/jsonsqlite/document"
	"github.com/stevemurr/jsonsqlite/schema"
	"github.com/stevemurr/jsonsqlite/store"
)

const (
	DefaultRootTable   = "root"
	DefaultCommitEvery = 1000
	DefaultMaxLineSize = 64 << 20
)

// Config holds the ingestion settings. Zero values select the defaults.
type Config struct {
	RootTable   string
	CommitEvery int
	MaxDepth    int
	MaxLineSize int
}

func (c Config) withDefaults() Config {
	if c.RootTable == "" {
		c.RootTable = DefaultRootTable
	}
	if c.CommitEvery <= 0 {
		c.CommitEvery = DefaultCommitEvery
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = schema.DefaultMaxDepth
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = DefaultMaxLineSize
	}
	return c
}

// Summary reports the outcome of one ingestion.
type Summary struct {
	Format Format `json:"format"`
	// Records counts the records the write pass saw.
	Records int `json:"records"`
	Written int `json:"written"`
	// Skipped counts records that could not be parsed or are not objects.
	Skipped int `json:"skipped"`
	// Failed counts records whose write failed.
	Failed       int      `json:"failed"`
	SchemaErrors int      `json:"schemaErrors"`
	Tables       []string `json:"tables"`
}

type outcome int

const (
	outcomeWritten outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (s *Summary) add(o outcome) {
	s.Records++
	switch o {
	case outcomeWritten:
		s.Written++
	case outcomeSkipped:
		s.Skipped++
	case outcomeFailed:
		s.Failed++
	}
}

// Ingestor drives ingestion into one store. It is not safe for concurrent
// use.
type Ingestor struct {
	store    store.Store
	registry *schema.Registry
	writer   *Writer
	logger   *slog.Logger
	parser   document.Parser
	cfg      Config
	root     string
}

// Option configures an Ingestor.
type Option func(*Ingestor)

func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingestor) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithRegistry injects the schema registry. It must be backed by the same
// store as the Ingestor.
func WithRegistry(r *schema.Registry) Option {
	return func(in *Ingestor) { in.registry = r }
}

func New(s store.Store, cfg Config, opts ...Option) *Ingestor {
	cfg = cfg.withDefaults()
	in := &Ingestor{
		store:  s,
		logger: slog.Default(),
		cfg:    cfg,
		root:   schema.Sanitize(cfg.RootTable),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.registry == nil {
		in.registry = schema.NewRegistry(s, schema.WithMaxDepth(cfg.MaxDepth), schema.WithLogger(in.logger))
	}
	in.writer = NewWriter(s, in.registry, in.logger, cfg.MaxDepth)
	return in
}

// RootTable returns the sanitized name of the root table.
func (in *Ingestor) RootTable() string {
	return in.root
}

// Registry returns the schema registry used by the Ingestor.
func (in *Ingestor) Registry() *schema.Registry {
	return in.registry
}

// IngestFile ingests the file at path.
func (in *Ingestor) IngestFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Summary{}, fmt.Errorf("file not found: %s", path)
		}
		return Summary{}, err
	}
	defer f.Close()
	in.logger.Info("processing file", "path", path)
	return in.Ingest(f)
}

// Ingest loads every record of r. The returned error is set only for
// failures of the whole run: unreadable input, an array input that does not
// parse, or a failed commit. Per-record failures are reported in the Summary.
// Once the schema pass has started, the store is committed before Ingest
// returns, even on error.
func (in *Ingestor) Ingest(r io.ReadSeeker) (Summary, error) {
	var sum Summary
	br := bufio.NewReader(r)
	format, err := DetectFormat(br)
	if err != nil {
		return sum, fmt.Errorf("detect input format: %w", err)
	}
	sum.Format = format

	var src source
	switch format {
	case FormatArray:
		src, err = newArraySource(br, &in.parser)
		if err != nil {
			in.logger.Error("cannot parse input", "error", err)
			return sum, err
		}
	default:
		src = &lineSource{r: r, parser: &in.parser, maxLineSize: in.cfg.MaxLineSize}
	}

	err = in.schemaPass(src, &sum)
	if err == nil {
		err = in.store.Commit()
	}
	if err == nil {
		err = in.writePass(src, &sum)
	}
	if cerr := in.store.Commit(); cerr != nil && err == nil {
		err = fmt.Errorf("commit: %w", cerr)
	}
	sum.Tables = in.registry.Tables()

	in.logger.Info("file processing completed",
		"format", string(sum.Format),
		"records", sum.Records,
		"written", sum.Written,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"tables", len(sum.Tables),
	)
	return sum, err
}

func (in *Ingestor) schemaPass(src source, sum *Summary) error {
	return src.each(func(rec record) error {
		if rec.err != nil {
			in.logger.Error("invalid record", src.unit(), rec.pos, "error", rec.err)
			return nil
		}
		if err := in.registry.Ensure(in.root, rec.doc, ""); err != nil {
			sum.SchemaErrors++
			in.logger.Error("cannot register schema", src.unit(), rec.pos, "table", in.root, "error", err)
		}
		return nil
	})
}

func (in *Ingestor) writePass(src source, sum *Summary) error {
	return src.each(func(rec record) error {
		sum.add(in.writeRecord(src.unit(), rec))
		if sum.Records%in.cfg.CommitEvery == 0 {
			in.logger.Info("progress", "records", sum.Records, "written", sum.Written)
			if err := in.store.Commit(); err != nil {
				return fmt.Errorf("commit after %d records: %w", sum.Records, err)
			}
		}
		return nil
	})
}

func (in *Ingestor) writeRecord(unit string, rec record) outcome {
	if rec.err != nil {
		// Already reported by the schema pass.
		in.logger.Debug("skipping invalid record", unit, rec.pos, "error", rec.err)
		return outcomeSkipped
	}
	if _, err := in.writer.WriteRecord(in.root, rec.doc); err != nil {
		attrs := []any{unit, rec.pos}
		var we *WriteError
		if errors.As(err, &we) {
			attrs = append(attrs, "table", we.Table, "error", we.Err)
			if we.ParentTable != "" {
				attrs = append(attrs, "parent_table", we.ParentTable, "parent_id", we.ParentID)
			}
		} else {
			attrs = append(attrs, "table", in.root, "error", err)
		}
		in.logger.Error("cannot write record", attrs...)
		return outcomeFailed
	}
	return outcomeWritten
}
