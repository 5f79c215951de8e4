package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps tables in memory. Data is lost when the process exits.
// Table and column names are matched case-insensitively and errors mimic
// SQLite's, so it can stand in for SqliteStore in tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	tables  map[string]*memTable
	commits int
}

type memTable struct {
	name    string
	columns []Column
	rows    []map[string]any
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memTable)}
}

func (t *memTable) column(name string) (Column, bool) {
	for _, c := range t.columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

func (m *MemoryStore) CreateTable(table string, columns []Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(table)
	if _, ok := m.tables[key]; ok {
		return nil
	}
	t := &memTable{name: table, columns: []Column{{Name: RowIDColumn, Type: "INTEGER"}}}
	for _, c := range columns {
		if _, dup := t.column(c.Name); dup {
			return fmt.Errorf("create table %s: duplicate column name: %s", table, c.Name)
		}
		t.columns = append(t.columns, c)
	}
	m.tables[key] = t
	return nil
}

func (m *MemoryStore) AddColumn(table string, column Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[strings.ToLower(table)]
	if !ok {
		return fmt.Errorf("add column %s.%s: no such table: %s", table, column.Name, table)
	}
	if _, dup := t.column(column.Name); dup {
		return fmt.Errorf("%w: %s.%s", ErrColumnExists, table, column.Name)
	}
	t.columns = append(t.columns, column)
	return nil
}

func (m *MemoryStore) Columns(table string) ([]Column, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[strings.ToLower(table)]
	if !ok {
		return nil, nil
	}
	return append([]Column(nil), t.columns...), nil
}

func (m *MemoryStore) Insert(table string, fields []Field) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[strings.ToLower(table)]
	if !ok {
		return 0, fmt.Errorf("insert into %s: no such table: %s", table, table)
	}
	row := make(map[string]any, len(fields)+1)
	for _, f := range fields {
		c, ok := t.column(f.Column)
		if !ok {
			return 0, fmt.Errorf("insert into %s: table %s has no column named %s", table, table, f.Column)
		}
		row[c.Name] = f.Value
	}
	t.nextID++
	row[RowIDColumn] = t.nextID
	t.rows = append(t.rows, row)
	return t.nextID, nil
}

func (m *MemoryStore) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Tables returns the names of all tables, sorted.
func (m *MemoryStore) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for _, t := range m.tables {
		names = append(names, t.name)
	}
	sort.Strings(names)
	return names
}

// Rows returns a copy of the rows of a table in insertion order, keyed by
// declared column name.
func (m *MemoryStore) Rows(table string) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[strings.ToLower(table)]
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(t.rows))
	for i, r := range t.rows {
		cp := make(map[string]any, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Commits returns how many times Commit was called.
func (m *MemoryStore) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}
