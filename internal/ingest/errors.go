package ingest

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no cached opportunity has the requested id.
var ErrNotFound = errors.New("opportunity not found")

// ErrBodyTooLarge is wrapped by SourceFetchError when a feed exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// ConfigError reports a missing or malformed source configuration file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("source config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SourceFetchError reports a network failure or a non-2xx response for one source.
type SourceFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *SourceFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// SourceParseError reports a body that could not be read as CSV at all.
type SourceParseError struct {
	Source string
	Err    error
}

func (e *SourceParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *SourceParseError) Unwrap() error { return e.Err }
