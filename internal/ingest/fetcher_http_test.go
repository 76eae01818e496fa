package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// feedOfSize returns a CSV body of at least n bytes.
func feedOfSize(n int) []byte {
	var b bytes.Buffer
	b.WriteString("title,link\n")
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "Volunteer %d,https://example.org/roles/%d\n", i, i)
	}
	return b.Bytes()
}

func TestHTTPFetcherDefaultsToUTF8(t *testing.T) {
	var body bytes.Buffer
	body.WriteString("title,location,link\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&body, "Porter %d,Calgary,https://example.org/porter/%d\n", i, i)
	}
	if body.Len() <= 1024 {
		t.Fatalf("fixture must push the first non-ASCII byte past 1 KiB, got %d bytes", body.Len())
	}
	body.WriteString("Bénévole,Montréal,https://example.org/benevole\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write(body.Bytes())
	}))
	defer srv.Close()

	doc, err := NewHTTPFetcher(true).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer doc.Body.Close()

	rows, err := ParseCSV(doc.Body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := rows[len(rows)-1]
	if last["title"] != "Bénévole" || last["location"] != "Montréal" {
		t.Errorf("expected UTF-8 text intact, got title=%q location=%q", last["title"], last["location"])
	}
}

func TestDecodeBody(t *testing.T) {
	utf16le := func(s string) []byte {
		out := []byte{0xFF, 0xFE}
		for _, c := range []byte(s) {
			out = append(out, c, 0)
		}
		return out
	}

	tests := []struct {
		name        string
		body        []byte
		contentType string
		want        string
	}{
		{"no charset is utf-8", []byte("Montréal"), "text/csv", "Montréal"},
		{"missing content type", []byte("Montréal"), "", "Montréal"},
		{"declared utf-8", []byte("Montréal"), "text/csv; charset=UTF-8", "Montréal"},
		{"declared latin-1", []byte("Montr\xe9al"), "text/csv; charset=iso-8859-1", "Montréal"},
		{"unknown label", []byte("Montréal"), "text/csv; charset=x-made-up", "Montréal"},
		{"utf-8 bom beats declared charset", []byte("\xef\xbb\xbfMontréal"), "text/csv; charset=iso-8859-1", "\ufeffMontréal"},
		{"utf-16 bom", utf16le("Calgary"), "text/csv", "Calgary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(decodeBody(tt.body, tt.contentType))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTTPFetcherBodyLimit(t *testing.T) {
	atCap := feedOfSize(MaxBodyBytes)[:MaxBodyBytes]
	overCap := feedOfSize(MaxBodyBytes + 5<<10)

	mux := http.NewServeMux()
	mux.HandleFunc("/at-cap.csv", func(w http.ResponseWriter, r *http.Request) { w.Write(atCap) })
	mux.HandleFunc("/over-cap.csv", func(w http.ResponseWriter, r *http.Request) { w.Write(overCap) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := NewHTTPFetcher(true)

	doc, err := fetcher.Fetch(context.Background(), srv.URL+"/at-cap.csv")
	if err != nil {
		t.Fatalf("body at the limit should be accepted: %v", err)
	}
	got, _ := io.ReadAll(doc.Body)
	if len(got) != MaxBodyBytes {
		t.Errorf("expected %d bytes, got %d", MaxBodyBytes, len(got))
	}

	_, err = fetcher.Fetch(context.Background(), srv.URL+"/over-cap.csv")
	var ferr *SourceFetchError
	if !errors.As(err, &ferr) || !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected SourceFetchError wrapping ErrBodyTooLarge, got %v", err)
	}
}

func TestRemoteMultiFailsOversizedSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a.csv", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, sheetA) })
	mux.HandleFunc("/big.csv", func(w http.ResponseWriter, r *http.Request) { w.Write(feedOfSize(MaxBodyBytes + 1)) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := writeFile(t, t.TempDir(), "sheets.json", fmt.Sprintf(
		`[{"key":"big","url":"%s/big.csv"},{"key":"a","url":"%s/a.csv"}]`, srv.URL, srv.URL))

	cache := NewCache(&RemoteMulti{ConfigPath: path, Fetcher: NewHTTPFetcher(true)}, time.Hour, nil)
	items, err := cache.Opportunities(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected only a's 2 records, got %d", len(items))
	}

	run := cache.Stats().LastRun
	if run == nil || run.Status != RunDegraded || run.SourcesFailed != 1 {
		t.Fatalf("expected a degraded run with one failed source, got %+v", run)
	}
	if !strings.Contains(run.Sources[0].Error, ErrBodyTooLarge.Error()) {
		t.Errorf("expected size error for big, got %q", run.Sources[0].Error)
	}
}

func TestSafeDialContextResolvesOnce(t *testing.T) {
	calls := 0
	orig := lookupIP
	lookupIP = func(ctx context.Context, network, host string) ([]net.IP, error) {
		calls++
		if calls == 1 {
			return []net.IP{net.ParseIP("203.0.113.10")}, nil
		}
		return []net.IP{net.ParseIP("127.0.0.1")}, nil
	}
	defer func() { lookupIP = orig }()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	conn, err := safeDialContext(ctx, "tcp", "feeds.example.org:443")
	if err == nil {
		conn.Close()
	}
	if calls != 1 {
		t.Errorf("expected a single lookup, got %d", calls)
	}
}

func TestDialAddrsUsesResolvedIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	conn, err := dialAddrs(context.Background(), &net.Dialer{Timeout: time.Second}, "tcp",
		[]net.IP{net.ParseIP("127.0.0.1")}, port)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()
	if got := conn.RemoteAddr().String(); got != net.JoinHostPort("127.0.0.1", port) {
		t.Errorf("expected to dial the vetted address, got %s", got)
	}
}
