package ingest

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/stevemurr/jsonsqlite/document"
	"github.com/stevemurr/jsonsqlite/schema"
	"github.com/stevemurr/jsonsqlite/store"
)

// WriteError describes a row that could not be written. When a child row
// fails, the error names the child table and the parent row it belongs to.
type WriteError struct {
	Table       string
	ParentTable string
	ParentID    int64
	Err         error
}

func (e *WriteError) Error() string {
	if e.ParentTable == "" {
		return fmt.Sprintf("write %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("write %s (%s row %d): %v", e.Table, e.ParentTable, e.ParentID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer inserts documents as rows, recursing into nested objects and
// object arrays.
type Writer struct {
	store    store.Store
	registry *schema.Registry
	logger   *slog.Logger
	maxDepth int
}

// NewWriter returns a Writer inserting into s. The registry must be backed
// by the same store, and must already hold the tables and columns of every
// document written (see schema.Registry.Ensure).
func NewWriter(s store.Store, r *schema.Registry, logger *slog.Logger, maxDepth int) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDepth <= 0 {
		maxDepth = schema.DefaultMaxDepth
	}
	return &Writer{store: s, registry: r, logger: logger, maxDepth: maxDepth}
}

type parentRow struct {
	table string
	id    int64
}

// WriteRecord inserts doc as a row of the root table tablePath, and its
// nested values as rows of child tables. It returns the new row id.
//
// A failure anywhere in the tree aborts the record. Rows already inserted
// for it are kept; there is no per-record rollback.
func (w *Writer) WriteRecord(tablePath string, doc document.Value) (int64, error) {
	return w.write(tablePath, doc, nil, 1)
}

func (w *Writer) write(tablePath string, doc document.Value, parent *parentRow, depth int) (int64, error) {
	if depth > w.maxDepth {
		return 0, newWriteError(tablePath, parent, fmt.Errorf("%w: table %s exceeds %d levels", schema.ErrTooDeep, tablePath, w.maxDepth))
	}
	if doc.Kind() != document.Object {
		return 0, newWriteError(tablePath, parent, fmt.Errorf("%w: got %s", schema.ErrNotObject, doc.Kind()))
	}
	parentTable := ""
	if parent != nil {
		parentTable = parent.table
	}

	var (
		fields []store.Field
		nested []document.Field
		index  = make(map[string]int)
	)
	for _, f := range doc.Fields() {
		if f.Value.IsComposite() {
			nested = append(nested, f)
			continue
		}
		name := w.registry.ColumnName(parentTable, f.Key)
		value := f.Value.Scalar()
		if c, ok := w.registry.Column(tablePath, name); ok {
			value = schema.Coerce(f.Value, c.Type)
		}
		// Keys that sanitize to the same column: the last one wins.
		k := strings.ToLower(name)
		if i, ok := index[k]; ok {
			fields[i].Value = value
			continue
		}
		index[k] = len(fields)
		fields = append(fields, store.Field{Column: name, Value: value})
	}
	if parent != nil {
		fields = append(fields, store.Field{Column: w.registry.ParentColumn(parent.table), Value: parent.id})
	}

	id, err := w.store.Insert(tablePath, fields)
	if err != nil {
		return 0, newWriteError(tablePath, parent, err)
	}

	self := &parentRow{table: tablePath, id: id}
	for _, f := range nested {
		if _, ok := schema.Decompose(f.Value); !ok {
			continue
		}
		child := w.registry.ChildTable(tablePath, f.Key)
		if f.Value.Kind() == document.Object {
			if _, err := w.write(child, f.Value, self, depth+1); err != nil {
				return 0, err
			}
			continue
		}
		for i, item := range f.Value.Items() {
			if item.Kind() != document.Object {
				w.logger.Warn("skipping array element that is not an object",
					"table", child, "parent_id", id, "index", i, "kind", item.Kind().String())
				continue
			}
			if _, err := w.write(child, item, self, depth+1); err != nil {
				return 0, err
			}
		}
	}
	return id, nil
}

func newWriteError(tablePath string, parent *parentRow, err error) error {
	we := &WriteError{Table: tablePath, Err: err}
	if parent != nil {
		we.ParentTable = parent.table
		we.ParentID = parent.id
	}
	return we
}
