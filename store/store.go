// Package store defines the relational storage interface and implementations.
package store

import "errors"

// RowIDColumn is the synthetic primary key every table is created with.
const RowIDColumn = "row__id"

// ErrColumnExists is returned by AddColumn when the table already has a
// column of that name. Callers treat it as success.
var ErrColumnExists = errors.New("column already exists")

// Column is a named column with its declared storage type.
type Column struct {
	Name string
	Type string
}

// Field is one column value of a row being inserted.
type Field struct {
	Column string
	Value  any
}

// Store is the interface that all storage engines must implement.
// Identifiers passed to a Store are already sanitized; a Store only quotes
// them. Tables and columns are matched case-insensitively, as SQLite does.
type Store interface {
	// CreateTable creates a table with the synthetic RowIDColumn followed by
	// columns. It is a no-op if the table already exists.
	CreateTable(table string, columns []Column) error

	// AddColumn adds a column to an existing table, or returns
	// ErrColumnExists.
	AddColumn(table string, column Column) error

	// Columns returns the columns of a table in declaration order, including
	// RowIDColumn. A missing table yields no columns and no error.
	Columns(table string) ([]Column, error)

	// Insert writes one row and returns its row id. With no fields the row
	// is made of default values only.
	Insert(table string, fields []Field) (int64, error)

	// Commit makes all pending writes durable.
	Commit() error

	// Close discards uncommitted work and releases the store.
	Close() error
}
