package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Table is a parsed CSV body.
type Table struct {
	Rows []map[string]string
	// Mismatched holds the line numbers of rows whose field count differed
	// from the header.
	Mismatched []int
}

// ParseCSV reads a header row followed by data rows. Headers are trimmed and
// lower-cased. Short rows leave the missing columns absent and extra cells
// are dropped. Blank rows are skipped.
func ParseCSV(r io.Reader) ([]map[string]string, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	return t.Rows, nil
}

// ReadTable is ParseCSV with field-count mismatches reported.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	t := &Table{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blankRecord(record) {
			continue
		}
		if len(record) != len(header) {
			line, _ := reader.FieldPos(0)
			t.Mismatched = append(t.Mismatched, line)
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if i >= len(record) {
				break
			}
			if name == "" {
				continue
			}
			if _, dup := row[name]; dup {
				continue
			}
			row[name] = record[i]
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
