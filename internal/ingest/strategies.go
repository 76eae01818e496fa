package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/volunteermd/internal/config"
)

const (
	DefaultConcurrency  = 4
	DefaultFetchTimeout = 15 * time.Second
)

// FetchStrategy produces the raw material of one population cycle.
type FetchStrategy interface {
	// Load returns per-source results in declaration order. An error means
	// the cycle as a whole could not run.
	Load(ctx context.Context) (Batch, error)
	Name() string
}

// NewStrategy picks the strategy for the configured opportunity source.
func NewStrategy(cfg config.Config, logger *zap.Logger) FetchStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.OpportunitySource {
	case config.ModeSample, config.ModeLocal:
		return &LocalSample{Path: cfg.SamplePath, Logger: logger}
	default:
		return &RemoteMulti{
			ConfigPath:  cfg.SourcesPath,
			Fetcher:     NewHTTPFetcher(cfg.AllowPrivateSources),
			Timeout:     cfg.FetchTimeout,
			Concurrency: DefaultConcurrency,
			Logger:      logger,
		}
	}
}

// LocalSample reads a single CSV file from disk.
type LocalSample struct {
	Path   string
	Logger *zap.Logger
}

func (s *LocalSample) Name() string { return config.ModeSample }

func (s *LocalSample) Load(ctx context.Context) (Batch, error) {
	src := Source{Key: SampleSourceKey, Name: "Sample Data", URL: s.Path}
	start := time.Now()

	f, err := os.Open(s.Path)
	if err != nil {
		return Batch{}, fmt.Errorf("open sample file: %w", err)
	}
	defer f.Close()

	res, err := readSource(src, f, loggerOrNop(s.Logger))
	if err != nil {
		return Batch{}, err
	}
	res.Duration = time.Since(start)
	return Batch{Results: []SourceResult{res}}, nil
}

// RemoteMulti fetches every configured source concurrently.
type RemoteMulti struct {
	ConfigPath  string
	Fetcher     Fetcher
	Timeout     time.Duration
	Concurrency int
	Logger      *zap.Logger
}

func (s *RemoteMulti) Name() string { return config.ModeRemote }

func (s *RemoteMulti) Load(ctx context.Context) (Batch, error) {
	sources, err := LoadSources(s.ConfigPath)
	if err != nil {
		return Batch{}, err
	}

	logger := loggerOrNop(s.Logger)
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]SourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = s.loadOne(gctx, src, timeout, logger)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err != nil {
			logger.Warn("source failed, skipping",
				zap.String("source", res.Source.Key),
				zap.String("url", res.Source.URL),
				zap.Error(res.Err))
		}
	}

	return Batch{Results: results}, nil
}

func (s *RemoteMulti) loadOne(ctx context.Context, src Source, timeout time.Duration, logger *zap.Logger) SourceResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	doc, err := s.Fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return SourceResult{Source: src, Err: err, Duration: time.Since(start)}
	}
	defer doc.Body.Close()

	res, err := readSource(src, doc.Body, logger)
	if err != nil {
		if ctx.Err() != nil {
			err = &SourceFetchError{URL: src.URL, Err: ctx.Err()}
		}
		return SourceResult{Source: src, Err: err, Duration: time.Since(start)}
	}
	res.Duration = time.Since(start)
	return res
}

// readSource parses and normalizes one CSV body.
func readSource(src Source, body io.Reader, logger *zap.Logger) (SourceResult, error) {
	table, err := ReadTable(body)
	if err != nil {
		return SourceResult{}, &SourceParseError{Source: src.Key, Err: err}
	}
	if len(table.Mismatched) > 0 {
		logger.Warn("csv rows with unexpected field count",
			zap.String("source", src.Key),
			zap.Int("rows", len(table.Mismatched)),
			zap.Int("first_line", table.Mismatched[0]))
	}

	res := SourceResult{
		Source:   src,
		Rows:     len(table.Rows),
		Warnings: len(table.Mismatched),
	}
	for _, row := range table.Rows {
		opp, ok := NormalizeRow(row, src)
		if !ok {
			res.Rejected++
			logger.Debug("row rejected", zap.String("source", src.Key))
			continue
		}
		res.Items = append(res.Items, opp)
	}
	return res, nil
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
