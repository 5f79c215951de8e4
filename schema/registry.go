// Package schema infers and evolves relational tables from documents.
//
// The Registry maps every field path of a document stream onto a table and
// every scalar field onto a column whose type is fixed the first time the
// field is seen. It is the only place that decides whether a table or
// column already exists, so creation is idempotent across documents.
package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stevemurr/jsonsqlite/document"
	"github.com/stevemurr/jsonsqlite/store"
)

const (
	// DefaultSeparator joins a parent table path and a field name.
	DefaultSeparator = "__"
	// DefaultMaxDepth bounds how many tables deep a document may nest.
	DefaultMaxDepth = 64
)

var (
	// ErrTooDeep is returned when a document nests deeper than the
	// registry's maximum depth.
	ErrTooDeep = errors.New("nesting too deep")
	// ErrNotObject is returned when a record or array element that should
	// map to a row is not a JSON object.
	ErrNotObject = errors.New("document is not an object")
)

// Registry tracks, per table, the columns already materialized in the store.
// It is not safe for concurrent use.
type Registry struct {
	store    store.Store
	logger   *slog.Logger
	sep      string
	maxDepth int
	tables   map[string]*table
	order    []string
}

type table struct {
	name    string
	columns map[string]store.Column
}

// Option configures a Registry.
type Option func(*Registry)

// WithSeparator sets the string joining parent and child table names.
func WithSeparator(sep string) Option {
	return func(r *Registry) { r.sep = sep }
}

// WithMaxDepth sets the nesting limit. Values below 1 keep the default.
func WithMaxDepth(depth int) Option {
	return func(r *Registry) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger sets the logger for schema changes.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(s store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:    s,
		logger:   slog.Default(),
		sep:      DefaultSeparator,
		maxDepth: DefaultMaxDepth,
		tables:   make(map[string]*table),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func key(name string) string {
	return strings.ToLower(name)
}

// ChildTable returns the path of the table holding field of parent. Runs of
// the separator inside the field name are shortened until none is left, so
// a field "a__b" never lands on the table of the nested path a.b.
func (r *Registry) ChildTable(parent, field string) string {
	name := Sanitize(field)
	if len(r.sep) > 1 {
		short := r.sep[:len(r.sep)-1]
		for strings.Contains(name, r.sep) {
			name = strings.ReplaceAll(name, r.sep, short)
		}
	}
	return parent + r.sep + name
}

// ParentColumn returns the name of the column referencing a row of parent.
func (r *Registry) ParentColumn(parent string) string {
	return parent + "_id"
}

// ColumnName returns the column a field is stored in, for a table whose
// parent table is parent. Names that would collide with the synthetic
// columns get an underscore prefix.
func (r *Registry) ColumnName(parent, field string) string {
	name := Sanitize(field)
	for {
		k := key(name)
		if k != key(store.RowIDColumn) && (parent == "" || k != key(r.ParentColumn(parent))) {
			return name
		}
		name = "_" + name
	}
}

// Column returns a known column of a table.
func (r *Registry) Column(tablePath, column string) (store.Column, bool) {
	t, ok := r.tables[key(tablePath)]
	if !ok {
		return store.Column{}, false
	}
	c, ok := t.columns[key(column)]
	return c, ok
}

// Tables returns the known table paths in the order they were registered.
func (r *Registry) Tables() []string {
	return append([]string(nil), r.order...)
}

// Ensure makes sure tablePath and every column and child table needed to
// store doc exist. parent is the path of the parent table, or empty for the
// root table. Every object element of an array contributes its columns; the
// first one to carry a field fixes its type. Calling it again with fields it
// has seen is a no-op.
func (r *Registry) Ensure(tablePath string, doc document.Value, parent string) error {
	return r.ensure(tablePath, doc, parent, 1)
}

func (r *Registry) ensure(tablePath string, doc document.Value, parent string, depth int) error {
	if depth > r.maxDepth {
		return fmt.Errorf("%w: table %s exceeds %d levels", ErrTooDeep, tablePath, r.maxDepth)
	}
	if doc.Kind() != document.Object {
		return fmt.Errorf("%w: table %s got %s", ErrNotObject, tablePath, doc.Kind())
	}
	t, err := r.table(tablePath, parent)
	if err != nil {
		return err
	}
	for _, f := range doc.Fields() {
		typ := Classify(f.Value)
		if !typ.IsScalar() {
			if err := r.ensureChild(tablePath, f, depth); err != nil {
				return err
			}
			continue
		}
		name := r.ColumnName(parent, f.Key)
		if _, known := t.columns[key(name)]; known {
			continue
		}
		if err := r.addColumn(t, store.Column{Name: name, Type: string(typ)}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) ensureChild(tablePath string, f document.Field, depth int) error {
	child, ok := Decompose(f.Value)
	if !ok {
		return nil
	}
	childPath := r.ChildTable(tablePath, f.Key)
	if f.Value.Kind() == document.Object {
		return r.ensure(childPath, child, tablePath, depth+1)
	}
	for _, item := range f.Value.Items() {
		// Non-object elements are skipped by the writer.
		if item.Kind() != document.Object {
			continue
		}
		if err := r.ensure(childPath, item, tablePath, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// table returns the registered table, creating it in the store on first use.
// Columns of a table that already exists in the store are loaded so they are
// never added twice.
func (r *Registry) table(tablePath, parent string) (*table, error) {
	if t, ok := r.tables[key(tablePath)]; ok {
		return t, nil
	}
	var columns []store.Column
	if parent != "" {
		columns = append(columns, store.Column{Name: r.ParentColumn(parent), Type: string(Integer)})
	}
	if err := r.store.CreateTable(tablePath, columns); err != nil {
		return nil, err
	}
	t := &table{name: tablePath, columns: make(map[string]store.Column)}
	if err := r.load(t); err != nil {
		return nil, err
	}
	r.tables[key(tablePath)] = t
	r.order = append(r.order, tablePath)
	r.logger.Debug("table registered", "table", tablePath, "parent", parent, "columns", len(t.columns))
	return t, nil
}

func (r *Registry) load(t *table) error {
	existing, err := r.store.Columns(t.name)
	if err != nil {
		return fmt.Errorf("read columns of %s: %w", t.name, err)
	}
	for _, c := range existing {
		t.columns[key(c.Name)] = c
	}
	return nil
}

func (r *Registry) addColumn(t *table, c store.Column) error {
	err := r.store.AddColumn(t.name, c)
	switch {
	case err == nil:
		t.columns[key(c.Name)] = c
		r.logger.Debug("column added", "table", t.name, "column", c.Name, "type", c.Type)
		return nil
	case errors.Is(err, store.ErrColumnExists):
		// Someone else created it; learn its declared type.
		return r.load(t)
	default:
		return err
	}
}
