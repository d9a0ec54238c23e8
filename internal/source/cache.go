package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/civic-map-service/internal/domain"
	"github.com/couchcryptid/civic-map-service/internal/observability"
)

// CachedLoader memoizes the unfiltered source table keyed by load size.
// Concurrent misses for the same size share a single load.
type CachedLoader struct {
	inner   Loader
	cache   *gocache.Cache
	group   singleflight.Group
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedLoader creates a cache decorator around a loader. Entries expire
// after ttl so edits to the source are picked up eventually. clock times loads.
func NewCachedLoader(inner Loader, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *CachedLoader {
	return &CachedLoader{
		inner:   inner,
		cache:   gocache.New(ttl, 2*ttl),
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Load returns the cached table for limit or loads it from the inner source.
// A shared load is detached from the caller that started it, so one caller
// giving up never fails the others waiting on the same load.
func (c *CachedLoader) Load(ctx context.Context, limit int) (domain.Table, error) {
	key := fmt.Sprintf("rows:%d", limit)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.SourceCache.WithLabelValues("hit").Inc()
		return v.(domain.Table), nil
	}
	c.metrics.SourceCache.WithLabelValues("miss").Inc()

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		start := c.clock.Now()
		table, err := c.inner.Load(loadCtx, limit)
		if err != nil {
			return nil, err
		}
		c.report(table, c.clock.Since(start))
		c.cache.Set(key, table, gocache.DefaultExpiration)
		return table, nil
	})

	select {
	case <-ctx.Done():
		return domain.Table{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Table{}, res.Err
		}
		return res.Val.(domain.Table), nil
	}
}

// Invalidate drops every cached table.
func (c *CachedLoader) Invalidate() {
	c.cache.Flush()
}

// report logs and counts the outcome of a fresh load.
func (c *CachedLoader) report(table domain.Table, took time.Duration) {
	c.metrics.RowsLoaded.Add(float64(len(table.Tickets)))
	c.metrics.FieldsDegraded.WithLabelValues("categories").Add(float64(table.Degraded.Categories))
	c.metrics.FieldsDegraded.WithLabelValues("organizations").Add(float64(table.Degraded.Organizations))

	for _, rej := range table.Rejected {
		c.metrics.RowsRejected.WithLabelValues(rejectReason(rej.Err)).Inc()
		c.logger.Warn("ticket row rejected", "row", rej.Row, "id", rej.ID, "error", rej.Err)
	}

	c.logger.Info("source loaded",
		"tickets", len(table.Tickets),
		"rejected", len(table.Rejected),
		"degraded_categories", table.Degraded.Categories,
		"degraded_organizations", table.Degraded.Organizations,
		"duration", took,
	)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedCoordinate):
		return "coordinate"
	case errors.Is(err, domain.ErrMalformedTimestamp):
		return "timestamp"
	default:
		return "other"
	}
}
