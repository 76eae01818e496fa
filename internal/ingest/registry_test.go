package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHEET_BASE", "https://docs.example.org")

	tests := []struct {
		name    string
		file    string
		content string
		want    []Source
	}{
		{
			name:    "json array",
			file:    "sheets.json",
			content: `[{"key":"a","name":"Sheet A","url":"https://example.org/a.csv"},{"key":"b","url":"https://example.org/b.csv"}]`,
			want: []Source{
				{Key: "a", Name: "Sheet A", URL: "https://example.org/a.csv"},
				{Key: "b", Name: "b", URL: "https://example.org/b.csv"},
			},
		},
		{
			name: "yaml list",
			file: "sheets.yaml",
			content: `- key: a
  name: Sheet A
  url: https://example.org/a.csv
`,
			want: []Source{{Key: "a", Name: "Sheet A", URL: "https://example.org/a.csv"}},
		},
		{
			name: "yaml document with env expansion",
			file: "sheets.yml",
			content: `sources:
  - key: north
    name: North
    url: ${SHEET_BASE}/north.csv
`,
			want: []Source{{Key: "north", Name: "North", URL: "https://docs.example.org/north.csv"}},
		},
		{
			name:    "empty json array",
			file:    "empty.json",
			content: `[]`,
			want:    []Source{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			got, err := LoadSources(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d sources, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("source %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLoadSourcesConfigErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.json")},
		{"malformed json", writeFile(t, dir, "bad.json", `{"key":`)},
		{"empty file", writeFile(t, dir, "blank.json", "  ")},
		{"missing url", writeFile(t, dir, "nourl.json", `[{"key":"a","name":"A"}]`)},
		{"missing key", writeFile(t, dir, "nokey.yaml", "- url: https://example.org/a.csv\n")},
		{"yaml scalar", writeFile(t, dir, "scalar.yaml", "just text\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSources(tt.path)
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cerr.Path != tt.path {
				t.Errorf("expected path %s, got %s", tt.path, cerr.Path)
			}
		})
	}
}
