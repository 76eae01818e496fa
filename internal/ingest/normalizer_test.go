package ingest

import (
	"reflect"
	"testing"
)

func TestMakeID(t *testing.T) {
	id := MakeID("sample", "Hospital Greeter", "Calgary General", "Calgary", "https://example.org/apply")
	if id != "d3a81ee495ff" {
		t.Errorf("expected d3a81ee495ff, got %s", id)
	}
	if len(id) != 12 {
		t.Errorf("expected 12 characters, got %d", len(id))
	}

	again := MakeID("SAMPLE", "hospital greeter", "CALGARY GENERAL", "calgary", "https://EXAMPLE.org/apply")
	if again != id {
		t.Errorf("expected case-insensitive id %s, got %s", id, again)
	}

	if other := MakeID("other", "Hospital Greeter", "Calgary General", "Calgary", "https://example.org/apply"); other == id {
		t.Errorf("expected source key to change the id")
	}
}

func TestNormalizeRow(t *testing.T) {
	src := Source{Key: "north", Name: "North Sheet"}

	tests := []struct {
		name   string
		row    map[string]string
		wantOK bool
		check  func(t *testing.T, title, location, org, link string, reqs []string)
	}{
		{
			name: "primary columns",
			row: map[string]string{
				"title":        "  Hospital Greeter ",
				"location":     "Calgary",
				"organization": "Calgary General",
				"link":         "https://example.org/apply",
				"requirements": "Police check; TB test, Immunization",
			},
			wantOK: true,
			check: func(t *testing.T, title, location, org, link string, reqs []string) {
				if title != "Hospital Greeter" {
					t.Errorf("expected trimmed title, got %q", title)
				}
				want := []string{"Police check", "TB test", "Immunization"}
				if !reflect.DeepEqual(reqs, want) {
					t.Errorf("expected %v, got %v", want, reqs)
				}
			},
		},
		{
			name: "synonym columns",
			row: map[string]string{
				"opportunity":      "Patient Visitor",
				"city":             "Edmonton",
				"hospital":         "Royal Alex",
				"application link": "http://example.org/visit",
			},
			wantOK: true,
			check: func(t *testing.T, title, location, org, link string, reqs []string) {
				if title != "Patient Visitor" || location != "Edmonton" || org != "Royal Alex" {
					t.Errorf("unexpected mapping: %q %q %q", title, location, org)
				}
				if link != "http://example.org/visit" {
					t.Errorf("expected link from synonym, got %q", link)
				}
				if reqs == nil || len(reqs) != 0 {
					t.Errorf("expected empty non-nil requirements, got %#v", reqs)
				}
			},
		},
		{
			name: "earlier synonym wins over later",
			row: map[string]string{
				"title": "",
				"name":  "Fallback Name",
				"link":  "https://example.org",
			},
			wantOK: true,
			check: func(t *testing.T, title, location, org, link string, reqs []string) {
				if title != "Fallback Name" {
					t.Errorf("expected fallback to name, got %q", title)
				}
			},
		},
		{
			name:   "missing title",
			row:    map[string]string{"link": "https://example.org"},
			wantOK: false,
		},
		{
			name:   "missing link",
			row:    map[string]string{"title": "Greeter"},
			wantOK: false,
		},
		{
			name:   "non http link",
			row:    map[string]string{"title": "Greeter", "link": "ftp://example.org/file"},
			wantOK: false,
		},
		{
			name:   "relative link",
			row:    map[string]string{"title": "Greeter", "link": "www.example.org/apply"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, ok := NormalizeRow(tt.row, src)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if opp.SourceKey != "north" || opp.SourceName != "North Sheet" {
				t.Errorf("expected source tags, got %q %q", opp.SourceKey, opp.SourceName)
			}
			if opp.ID != MakeID(src.Key, opp.Title, opp.Organization, opp.Location, opp.Link) {
				t.Errorf("id %s does not match its parts", opp.ID)
			}
			if tt.check != nil {
				tt.check(t, opp.Title, opp.Location, opp.Organization, opp.Link, opp.Requirements)
			}
		})
	}
}

func TestSplitRequirements(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"CPR", []string{"CPR"}},
		{"Police check; TB test, Immunization", []string{"Police check", "TB test", "Immunization"}},
		{"a;;b,\n c ,", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		got := splitRequirements(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitRequirements(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
