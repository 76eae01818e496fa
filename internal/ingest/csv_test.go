package ingest

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestReadTable(t *testing.T) {
	body := "\ufeff Title ,LOCATION,Link\n" +
		"Greeter,Calgary,https://example.org/1\n" +
		"Porter,Edmonton\n" +
		",,\n" +
		"Driver,Red Deer,https://example.org/3,extra\n"

	table, err := ReadTable(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["title"] != "Greeter" || table.Rows[0]["location"] != "Calgary" {
		t.Errorf("headers not normalized: %v", table.Rows[0])
	}
	if _, ok := table.Rows[1]["link"]; ok {
		t.Errorf("expected missing cell to be absent, got %v", table.Rows[1])
	}
	if len(table.Rows[2]) != 3 {
		t.Errorf("expected extra cell dropped, got %v", table.Rows[2])
	}
	if !reflect.DeepEqual(table.Mismatched, []int{3, 5}) {
		t.Errorf("expected mismatched lines [3 5], got %v", table.Mismatched)
	}
}

func TestParseCSVEmpty(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}

	rows, err = ParseCSV(strings.NewReader("title,link\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected header-only input to yield no rows, got %d", len(rows))
	}
}

func TestParseCSVQuotedFields(t *testing.T) {
	body := "title,requirements\n\"Greeter, Main Lobby\",\"CPR\nFirst aid\"\n"
	rows, err := ParseCSV(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["title"] != "Greeter, Main Lobby" {
		t.Errorf("expected quoted comma preserved, got %q", rows[0]["title"])
	}
	if rows[0]["requirements"] != "CPR\nFirst aid" {
		t.Errorf("expected embedded newline preserved, got %q", rows[0]["requirements"])
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReadSourceParseError(t *testing.T) {
	_, err := readSource(Source{Key: "broken"}, failingReader{}, loggerOrNop(nil))
	var perr *SourceParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected SourceParseError, got %v", err)
	}
	if perr.Source != "broken" {
		t.Errorf("expected source broken, got %s", perr.Source)
	}
}
