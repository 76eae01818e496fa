package ingest

import (
	"context"
	"io"
	"time"

	"github.com/david/volunteermd/internal/models"
)

// SampleSourceKey is the reserved key for records read from the local sample file.
const SampleSourceKey = "sample"

// Source identifies one CSV feed.
type Source struct {
	Key  string `json:"key" yaml:"key"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// SourceResult is what one source contributed to a population cycle.
// A non-nil Err means the source contributed nothing.
type SourceResult struct {
	Source   Source
	Items    []models.Opportunity
	Rows     int
	Rejected int
	Warnings int
	Duration time.Duration
	Err      error
}

// Batch holds per-source results in source declaration order.
type Batch struct {
	Results []SourceResult
}

// SourceStat summarizes one source after the global merge.
type SourceStat struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	Kept       int    `json:"kept"`
	Rejected   int    `json:"rejected"`
	Duplicates int    `json:"duplicates"`
	Warnings   int    `json:"warnings"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunSummary describes one population cycle.
type RunSummary struct {
	Strategy      string       `json:"strategy"`
	Status        string       `json:"status"` // completed, degraded, failed
	StartedAt     time.Time    `json:"started_at"`
	Duration      Duration     `json:"duration"`
	Items         int          `json:"items"`
	SourcesOK     int          `json:"sources_ok"`
	SourcesFailed int          `json:"sources_failed"`
	Rejected      int          `json:"rejected"`
	Sources       []SourceStat `json:"sources"`
	Error         string       `json:"error,omitempty"`
}

const (
	RunCompleted = "completed"
	RunDegraded  = "degraded"
	RunFailed    = "failed"
)

// Duration marshals as a human readable string ("1.2s").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// RunRecorder persists population cycles. Failures are logged by the cache
// and never reach its callers.
type RunRecorder interface {
	RecordRefreshRun(ctx context.Context, run models.RefreshRun) error
}
