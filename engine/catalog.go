package engine

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Databases returns the engine's database catalog, served from a cache that
// is refetched once CatalogTTL has elapsed. Concurrent misses share a single
// fetch.
func (c *Client) Databases(ctx context.Context) ([]Database, error) {
	if dbs, ok := c.cachedDatabases(); ok {
		c.metrics.catalog(true)
		return dbs, nil
	}
	c.metrics.catalog(false)
	return c.fetchDatabases(ctx)
}

// RefreshDatabases bypasses the cache and stores the fresh catalog.
func (c *Client) RefreshDatabases(ctx context.Context) ([]Database, error) {
	return c.fetchDatabases(ctx)
}

// DatabaseID maps a tenant to the id of the engine database carrying its
// name. Unknown tenants use the configured default database.
func (c *Client) DatabaseID(ctx context.Context, tenantID string) int {
	dbs, err := c.Databases(ctx)
	if err != nil {
		log.Warn().Err(err).Str("tenant", tenantID).Msg("Database catalog unavailable, using default database")
		return c.settings.DatabaseID
	}
	for _, db := range dbs {
		if strings.EqualFold(db.Name, tenantID) {
			return db.ID
		}
	}
	return c.settings.DatabaseID
}

func (c *Client) cachedDatabases() ([]Database, bool) {
	c.catalogMu.RLock()
	defer c.catalogMu.RUnlock()

	entry, ok := c.catalog[databaseCacheKey]
	if !ok {
		return nil, false
	}
	if c.clock.Since(entry.fetchedAt) >= c.settings.CatalogTTL {
		return nil, false
	}
	return entry.databases, true
}

// fetchDatabases shares one catalog request between concurrent callers. The
// request runs detached from any single caller, so a caller that gives up
// returns its own context error without failing the others.
func (c *Client) fetchDatabases(ctx context.Context) ([]Database, error) {
	ch := c.catalogGroup.DoChan(databaseCacheKey, func() (any, error) {
		fetchCtx, cancel := c.detachedContext(ctx)
		defer cancel()

		var resp databaseResponse
		err := c.withRetry(fetchCtx, "databases", func(ctx context.Context) error {
			resp = databaseResponse{}
			return c.authorizedJSON(ctx, "databases", http.MethodGet, pathDatabases, nil, &resp)
		})
		if err != nil {
			return nil, err
		}

		c.catalogMu.Lock()
		c.catalog[databaseCacheKey] = catalogEntry{databases: resp.Result, fetchedAt: c.clock.Now()}
		c.catalogMu.Unlock()

		log.Debug().Int("databases", len(resp.Result)).Msg("Database catalog refreshed")
		return resp.Result, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Database), nil
	}
}

// detachedContext keeps ctx's values but not its cancellation. It is bounded
// by the time every attempt and backoff delay could take.
func (c *Client) detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.settings.RequestTimeout <= 0 {
		return context.WithCancel(detached)
	}
	limit := time.Duration(c.settings.MaxAttempts)*c.settings.RequestTimeout + c.settings.RetryBase<<c.settings.MaxAttempts
	return context.WithTimeout(detached, limit)
}
