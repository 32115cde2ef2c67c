// Package dataset loads the local CSV datasets into memory.
//
// Files are parsed once and cached; every Load returns an independent deep
// copy so no caller can mutate the cached table or another caller's view.
// A change to a file's modification time invalidates its cache entry on
// the next Load.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

// Name identifies one of the bundled datasets.
type Name string

const (
	// Athletes is the sponsored-athletes dataset.
	Athletes Name = "athletes"
	// Events is the sports-events dataset.
	Events Name = "events"
)

// Table is a parsed CSV file: a header and typed rows. Cell values are
// int64, float64 or string depending on what the text parses as.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Records converts the table to flat column->value records, one per row,
// for JSON serialization.
func (t *Table) Records() []map[string]any {
	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records
}

func (t *Table) clone() *Table {
	cp := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, row := range t.Rows {
		cp.Rows[i] = append([]any(nil), row...)
	}
	return cp
}

// Loader reads and caches the CSV datasets.
type Loader struct {
	mu    sync.Mutex
	paths map[Name]string
	cache map[Name]*cachedTable
}

type cachedTable struct {
	table   *Table
	modTime time.Time
}

// NewLoader creates a Loader for the given file paths.
func NewLoader(athletesPath, eventsPath string) *Loader {
	return &Loader{
		paths: map[Name]string{
			Athletes: athletesPath,
			Events:   eventsPath,
		},
		cache: make(map[Name]*cachedTable),
	}
}

// Load returns a copy of the named dataset, reading the file on first use
// or when its modification time has changed since the cached read.
func (l *Loader) Load(name Name) (*Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	path, ok := l.paths[name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s dataset: %w", name, err)
	}

	if c, ok := l.cache[name]; ok && c.modTime.Equal(info.ModTime()) {
		return c.table.clone(), nil
	}

	table, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("read %s dataset: %w", name, err)
	}
	l.cache[name] = &cachedTable{table: table, modTime: info.ModTime()}
	return table.clone(), nil
}

// Records returns the named dataset as flat records.
func (l *Loader) Records(name Name) ([]map[string]any, error) {
	table, err := l.Load(name)
	if err != nil {
		return nil, err
	}
	return table.Records(), nil
}

// Invalidate drops the cache entry for a dataset. Mainly for tests.
func (l *Loader) Invalidate(name Name) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, name)
}

func readCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	table := &Table{Columns: header}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = parseCell(cell)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// parseCell types a CSV cell: integers and floats become numbers so
// coordinates serialize as JSON numbers, everything else stays a string.
func parseCell(s string) any {
	if s == "" {
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
