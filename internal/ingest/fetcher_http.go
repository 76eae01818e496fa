package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// MaxBodyBytes is the largest feed body accepted.
const MaxBodyBytes = 10 << 20

var lookupIP = net.DefaultResolver.LookupIP

var blockedPrefixStrings = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var blockedPrefixes = func() []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(blockedPrefixStrings))
	for _, s := range blockedPrefixStrings {
		if p, err := netip.ParsePrefix(s); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}()

// HTTPFetcher downloads CSV feeds. Bodies are decoded to UTF-8; a body
// larger than MaxBodyBytes fails the fetch.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher that refuses to dial private addresses
// unless allowPrivate is set.
func NewHTTPFetcher(allowPrivate bool) *HTTPFetcher {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	if !allowPrivate {
		transport.DialContext = safeDialContext
		client.CheckRedirect = safeCheckRedirect
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &SourceFetchError{URL: url, Err: err}
	}

	req.Header.Set("User-Agent", "volunteermd/1.0 (+opportunity feed reader)")
	req.Header.Set("Accept", "text/csv,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &SourceFetchError{URL: url, Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SourceFetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, &SourceFetchError{URL: url, Err: err}
	}
	if len(body) > MaxBodyBytes {
		return nil, &SourceFetchError{URL: url, Err: ErrBodyTooLarge}
	}

	contentType := resp.Header.Get("Content-Type")
	return &FetchedDocument{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        io.NopCloser(decodeBody(body, contentType)),
		FetchedAt:   time.Now(),
	}, nil
}

// decodeBody returns body as UTF-8. A byte order mark wins over the declared
// charset; with neither, the body is taken as UTF-8 as is.
func decodeBody(body []byte, contentType string) io.Reader {
	raw := bytes.NewReader(body)

	label := ""
	switch {
	case bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}):
		return raw
	case bytes.HasPrefix(body, []byte{0xFF, 0xFE}):
		label, raw = "utf-16le", bytes.NewReader(body[2:])
	case bytes.HasPrefix(body, []byte{0xFE, 0xFF}):
		label, raw = "utf-16be", bytes.NewReader(body[2:])
	default:
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			label = params["charset"]
		}
	}
	if label == "" {
		return raw
	}

	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		// Unknown labels fall back to the raw bytes.
		return raw
	}
	return enc.NewDecoder().Reader(raw)
}

func safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := lookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return nil, fmt.Errorf("blocked private IP: %s", ip)
		}
	}

	return dialAddrs(ctx, d, network, ips, port)
}

// dialAddrs dials the already vetted addresses in order, so a second DNS
// lookup cannot swap in a different host.
func dialAddrs(ctx context.Context, d *net.Dialer, network string, ips []net.IP, port string) (net.Conn, error) {
	var lastErr error
	for _, ip := range ips {
		conn, err := d.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// isPrivateIP checks if an IP is in a private range or loopback/link-local
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalMulticast() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	addr, ok := netip.AddrFromSlice(ip)
	if ok {
		for _, prefix := range blockedPrefixes {
			if prefix.Contains(addr.Unmap()) {
				return true
			}
		}
	}
	return false
}

// safeCheckRedirect limits redirects and validates destinations
func safeCheckRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if req.URL == nil {
		return fmt.Errorf("invalid redirect URL")
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect scheme blocked")
	}

	host := req.URL.Hostname()
	if host == "" {
		return fmt.Errorf("redirect host missing")
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".local") {
		return fmt.Errorf("redirect to internal host blocked")
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("redirect to private IP blocked: %s", ip)
		}
	}

	return nil
}
