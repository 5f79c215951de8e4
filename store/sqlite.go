package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// SqliteStore writes tables into a single SQLite database.
//
// All statements run inside one open transaction; Commit commits it and
// opens the next one.
type SqliteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	tx     *sql.Tx
	closed bool
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection, so the open transaction sees every statement.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db, tx: tx}, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (s *SqliteStore) CreateTable(table string, columns []Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, quote(RowIDColumn)+" INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range columns {
		defs = append(defs, quote(c.Name)+" "+c.Type)
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(defs, ", "))
	if _, err := s.tx.Exec(query); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (s *SqliteStore) AddColumn(table string, column Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quote(table), quote(column.Name), column.Type)
	if _, err := s.tx.Exec(query); err != nil {
		if isDuplicateColumn(err) {
			return fmt.Errorf("%w: %s.%s", ErrColumnExists, table, column.Name)
		}
		return fmt.Errorf("add column %s.%s: %w", table, column.Name, err)
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrError && strings.Contains(se.Error(), "duplicate column name")
}

func (s *SqliteStore) Columns(table string) ([]Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var columns []Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, Column{Name: name, Type: strings.ToUpper(typ)})
	}
	return columns, rows.Err()
}

func (s *SqliteStore) Insert(table string, fields []Field) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		query string
		args  []any
	)
	if len(fields) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(table))
	} else {
		names := make([]string, len(fields))
		placeholders := make([]string, len(fields))
		args = make([]any, len(fields))
		for i, f := range fields {
			names[i] = quote(f.Column)
			placeholders[i] = "?"
			args[i] = f.Value
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(table), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	}
	res, err := s.tx.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

func (s *SqliteStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tx.Commit(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *SqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.tx.Rollback()
	return s.db.Close()
}

