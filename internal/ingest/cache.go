package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/david/volunteermd/internal/models"
)

// MinTTL is the shortest lifetime a cache accepts.
const MinTTL = time.Minute

// Cache serves the merged opportunity list and repopulates it from its
// strategy when the list is empty, expired, or a refresh is forced.
type Cache struct {
	strategy FetchStrategy
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
	recorder RunRecorder

	group singleflight.Group

	mu          sync.RWMutex
	items       []models.Opportunity
	expiresAt   time.Time
	refreshedAt time.Time
	populated   bool
	last        *RunSummary
}

type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRecorder persists a summary of every population cycle.
func WithRecorder(r RunRecorder) Option {
	return func(c *Cache) { c.recorder = r }
}

func NewCache(strategy FetchStrategy, ttl time.Duration, logger *zap.Logger, opts ...Option) *Cache {
	if ttl < MinTTL {
		ttl = MinTTL
	}
	c := &Cache{
		strategy: strategy,
		ttl:      ttl,
		logger:   loggerOrNop(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Opportunities returns the current list, running a population cycle first
// when force is set or the cached list is empty or expired. Concurrent
// callers share a single cycle. The returned slice belongs to the caller.
func (c *Cache) Opportunities(ctx context.Context, force bool) ([]models.Opportunity, error) {
	if !force {
		if items, ok := c.fresh(); ok {
			return items, nil
		}
	}

	// The cycle outlives any single caller; cancelling ctx only stops waiting.
	ch := c.group.DoChan("populate", func() (any, error) {
		return c.populate(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneOpportunities(res.Val.([]models.Opportunity)), nil
	}
}

// OpportunityByID looks id up in the current list.
func (c *Cache) OpportunityByID(ctx context.Context, id string) (models.Opportunity, error) {
	items, err := c.Opportunities(ctx, false)
	if err != nil {
		return models.Opportunity{}, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return models.Opportunity{}, ErrNotFound
}

// Clear drops the cached list so the next read repopulates.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = []models.Opportunity{}
	c.expiresAt = time.Time{}
	c.populated = false
}

// CacheStats describes the cache state and its most recent cycle.
type CacheStats struct {
	Strategy    string      `json:"strategy"`
	Items       int         `json:"items"`
	RefreshedAt *time.Time  `json:"refreshedAt"`
	ExpiresAt   *time.Time  `json:"expiresAt"`
	LastRun     *RunSummary `json:"lastRun"`
}

func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Strategy: c.strategy.Name(),
		Items:    len(c.items),
	}
	if !c.refreshedAt.IsZero() {
		t := c.refreshedAt
		stats.RefreshedAt = &t
	}
	if !c.expiresAt.IsZero() {
		t := c.expiresAt
		stats.ExpiresAt = &t
	}
	if c.last != nil {
		last := *c.last
		last.Sources = append([]SourceStat(nil), c.last.Sources...)
		stats.LastRun = &last
	}
	return stats
}

func (c *Cache) fresh() ([]models.Opportunity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.items) == 0 || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return cloneOpportunities(c.items), true
}

func (c *Cache) populate(ctx context.Context) ([]models.Opportunity, error) {
	started := c.now()
	batch, err := c.strategy.Load(ctx)
	if err != nil {
		summary := RunSummary{
			Strategy:  c.strategy.Name(),
			Status:    RunFailed,
			StartedAt: started,
			Duration:  Duration(c.now().Sub(started)),
			Error:     err.Error(),
		}

		c.mu.Lock()
		c.last = &summary
		populated := c.populated
		previous := c.items
		c.mu.Unlock()

		c.record(ctx, summary)

		if populated {
			c.logger.Error("population cycle failed, keeping previous opportunities",
				zap.String("strategy", summary.Strategy),
				zap.Int("items", len(previous)),
				zap.Error(err))
			return previous, nil
		}
		c.logger.Error("population cycle failed", zap.String("strategy", summary.Strategy), zap.Error(err))
		return nil, err
	}

	items, summary := merge(batch)
	summary.Strategy = c.strategy.Name()
	summary.StartedAt = started
	finished := c.now()
	summary.Duration = Duration(finished.Sub(started))

	c.mu.Lock()
	c.items = items
	c.expiresAt = finished.Add(c.ttl)
	c.refreshedAt = finished
	c.populated = true
	c.last = &summary
	c.mu.Unlock()

	c.logger.Info("opportunities refreshed",
		zap.String("strategy", summary.Strategy),
		zap.String("status", summary.Status),
		zap.Int("items", summary.Items),
		zap.Int("sources_failed", summary.SourcesFailed),
		zap.Duration("duration", time.Duration(summary.Duration)))

	c.record(ctx, summary)
	return items, nil
}

// merge folds the batch in source order, keeping the first record seen for
// each id.
func merge(batch Batch) ([]models.Opportunity, RunSummary) {
	seen := make(map[string]struct{})
	items := []models.Opportunity{}
	summary := RunSummary{Sources: make([]SourceStat, 0, len(batch.Results))}

	for _, res := range batch.Results {
		stat := SourceStat{
			Key:        res.Source.Key,
			Name:       res.Source.Name,
			Rows:       res.Rows,
			Rejected:   res.Rejected,
			Warnings:   res.Warnings,
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			stat.Error = res.Err.Error()
			summary.SourcesFailed++
			summary.Sources = append(summary.Sources, stat)
			continue
		}

		summary.SourcesOK++
		for _, item := range res.Items {
			if _, dup := seen[item.ID]; dup {
				stat.Duplicates++
				continue
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
			stat.Kept++
		}
		summary.Rejected += res.Rejected
		summary.Sources = append(summary.Sources, stat)
	}

	summary.Items = len(items)
	switch {
	case summary.SourcesFailed > 0 && summary.SourcesOK == 0:
		summary.Status = RunFailed
	case summary.SourcesFailed > 0:
		summary.Status = RunDegraded
	default:
		summary.Status = RunCompleted
	}
	return items, summary
}

func (c *Cache) record(ctx context.Context, summary RunSummary) {
	if c.recorder == nil {
		return
	}
	details, err := json.Marshal(summary.Sources)
	if err != nil {
		details = []byte("[]")
	}
	run := models.RefreshRun{
		Strategy:      summary.Strategy,
		Status:        summary.Status,
		Items:         summary.Items,
		SourcesOK:     summary.SourcesOK,
		SourcesFailed: summary.SourcesFailed,
		Rejected:      summary.Rejected,
		Details:       string(details),
		StartedAt:     summary.StartedAt,
		DurationMs:    time.Duration(summary.Duration).Milliseconds(),
	}
	if summary.Error != "" {
		run.Details = summary.Error
	}
	if err := c.recorder.RecordRefreshRun(ctx, run); err != nil {
		c.logger.Warn("failed to record refresh run", zap.Error(err))
	}
}
