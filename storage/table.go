package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// ErrSchemaMismatch is returned when an existing table's header row differs
// from the schema it is opened with.
var ErrSchemaMismatch = errors.New("table header does not match schema")

// Record is one data row keyed by column name
type Record map[string]string

// Table is an append-only CSV file with a fixed header row
type Table struct {
	path   string
	header []string
}

// OpenTable returns a handle to the CSV file at path, guaranteeing that it
// starts with header exactly once. Opening an existing table never truncates
// it or writes a second header.
func OpenTable(path string, header []string) (*Table, error) {
	t := &Table{path: path, header: append([]string(nil), header...)}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	switch {
	case err == nil:
		defer f.Close()
		if err := writeRecords(f, header); err != nil {
			return nil, fmt.Errorf("write header %s: %w", path, err)
		}
		return t, nil
	case errors.Is(err, fs.ErrExist):
		if err := t.ensureHeader(); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
}

func (t *Table) Path() string {
	return t.path
}

func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// ensureHeader writes the header into an existing empty file or validates the
// header of a populated one.
func (t *Table) ensureHeader() error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}
	if info.Size() == 0 {
		if err := writeRecords(f, t.header); err != nil {
			return fmt.Errorf("write header %s: %w", t.path, err)
		}
		return nil
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	got, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header %s: %w", t.path, err)
	}
	if len(got) > 0 {
		got[0] = strings.TrimPrefix(got[0], "\ufeff")
	}
	if !equalHeader(got, t.header) {
		return fmt.Errorf("%s: got %v: %w", t.path, got, ErrSchemaMismatch)
	}
	return nil
}

// Rows reads every data record in file order. Short records are padded with
// empty values so every column is present in each Record.
func (t *Table) Rows() ([]Record, error) {
	var rows []Record
	err := t.scan(func(rec Record) bool {
		rows = append(rows, rec)
		return true
	})
	return rows, err
}

// scan streams data records to fn until fn returns false
func (t *Table) scan(fn func(Record) bool) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read header %s: %w", t.path, err)
	}

	for {
		fields, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", t.path, err)
		}

		rec := make(Record, len(t.header))
		for i, col := range t.header {
			if i < len(fields) {
				rec[col] = fields[i]
			} else {
				rec[col] = ""
			}
		}
		if !fn(rec) {
			return nil
		}
	}
}

// Append writes records at the end of the table and syncs the file.
// Every record must have one value per header column.
func (t *Table) Append(records ...[]string) error {
	if len(records) == 0 {
		return nil
	}
	for i, rec := range records {
		if len(rec) != len(t.header) {
			return fmt.Errorf("%s: record %d has %d fields, want %d", t.path, i, len(rec), len(t.header))
		}
	}

	f, err := os.OpenFile(t.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	if err := terminateLastLine(f); err != nil {
		return fmt.Errorf("repair %s: %w", t.path, err)
	}
	if err := writeRecords(f, records...); err != nil {
		return fmt.Errorf("append %s: %w", t.path, err)
	}
	return f.Sync()
}

// terminateLastLine adds a newline when a hand-edited file lacks one, so the
// next record does not merge into the last line.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte("\n"))
	return err
}

func writeRecords(w io.Writer, records ...[]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != b[i] {
			return false
		}
	}
	return true
}
