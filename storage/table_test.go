package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var testHeader = []string{"id", "asin", "value"}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestOpenTable_WritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")

	for i := 0; i < 3; i++ {
		if _, err := OpenTable(path, testHeader); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}

	if got := readFile(t, path); got != "id,asin,value\n" {
		t.Fatalf("expected a single header line, got %q", got)
	}
}

func TestOpenTable_KeepsExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	table, err := OpenTable(path, testHeader)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := table.Append([]string{"1", "B0DXPL5XHF", "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	reopened, err := OpenTable(path, testHeader)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rows, err := reopened.Rows()
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 1 || rows[0]["value"] != "a" {
		t.Fatalf("expected existing row to survive reopen, got %v", rows)
	}
}

func TestOpenTable_EmptyFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("create empty file: %v", err)
	}

	if _, err := OpenTable(path, testHeader); err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := readFile(t, path); got != "id,asin,value\n" {
		t.Fatalf("expected header in empty file, got %q", got)
	}
}

func TestOpenTable_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte("id,name\n1,x\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	_, err := OpenTable(path, testHeader)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if got := readFile(t, path); got != "id,name\n1,x\n" {
		t.Fatalf("mismatched file must be left untouched, got %q", got)
	}
}

func TestOpenTable_AcceptsBOMHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte("\ufeffid,asin,value\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := OpenTable(path, testHeader); err != nil {
		t.Fatalf("expected BOM-prefixed header to validate, got %v", err)
	}
}

func TestTableAppend_QuotesAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	table, err := OpenTable(path, testHeader)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	value := `{"Brand": "boAt", "note": "comma, quote \" and
newline"}`
	if err := table.Append([]string{"1", "B0DXPL5XHF", value}, []string{"2", "B0DXPL5XHF", ""}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := table.Rows()
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["value"] != value {
		t.Fatalf("value did not round trip:\n got %q\nwant %q", rows[0]["value"], value)
	}
}

func TestTableAppend_RejectsWrongWidth(t *testing.T) {
	table, err := OpenTable(filepath.Join(t.TempDir(), "table.csv"), testHeader)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := table.Append([]string{"1", "B0DXPL5XHF"}); err == nil {
		t.Fatalf("expected width error")
	}
}

func TestTableAppend_RepairsMissingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte("id,asin,value\n1,B0DXPL5XHF,a"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	table, err := OpenTable(path, testHeader)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := table.Append([]string{"2", "B0DXPL5XHF", "b"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if got := readFile(t, path); !strings.HasSuffix(got, "1,B0DXPL5XHF,a\n2,B0DXPL5XHF,b\n") {
		t.Fatalf("expected records on separate lines, got %q", got)
	}
}

func TestTableRows_PadsShortRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte("id,asin,value\n1,B0DXPL5XHF\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	table, err := OpenTable(path, testHeader)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rows, err := table.Rows()
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if v, ok := rows[0]["value"]; !ok || v != "" {
		t.Fatalf("expected padded empty value, got %q (present=%v)", v, ok)
	}
}
