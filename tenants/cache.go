package tenants

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/dashboard-gateway/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Catalog lists the engine databases, one per tenant.
type Catalog interface {
	Databases(ctx context.Context) ([]engine.Database, error)
	RefreshDatabases(ctx context.Context) ([]engine.Database, error)
}

var _ Catalog = (*engine.Client)(nil)

type verdict struct {
	exists    bool
	checkedAt time.Time
}

// ExistenceCache remembers whether tenants exist for a TTL. Keys are
// case-insensitive. Lookups that fail are never cached so an engine outage
// does not lock tenants out once it recovers.
type ExistenceCache struct {
	catalog Catalog
	ttl     time.Duration
	clock   clock.Clock
	lookups *prometheus.CounterVec

	mu       sync.RWMutex
	verdicts map[string]verdict
}

type CacheOption func(*ExistenceCache)

func WithClock(clk clock.Clock) CacheOption {
	return func(c *ExistenceCache) {
		c.clock = clk
	}
}

// WithRegisterer records hit/miss counters on reg.
func WithRegisterer(reg prometheus.Registerer) CacheOption {
	return func(c *ExistenceCache) {
		c.lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "tenant_cache",
			Name:      "lookups_total",
			Help:      "Tenant existence lookups by cache result.",
		}, []string{"result"})
		reg.MustRegister(c.lookups)
	}
}

func NewExistenceCache(catalog Catalog, ttl time.Duration, opts ...CacheOption) *ExistenceCache {
	c := &ExistenceCache{
		catalog:  catalog,
		ttl:      ttl,
		clock:    clock.New(),
		verdicts: make(map[string]verdict),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exists reports whether the engine has a database for tenantID.
func (c *ExistenceCache) Exists(ctx context.Context, tenantID string) bool {
	key := strings.ToLower(tenantID)
	if key == "" {
		return false
	}

	c.mu.RLock()
	v, ok := c.verdicts[key]
	c.mu.RUnlock()
	if ok && c.clock.Since(v.checkedAt) < c.ttl {
		c.observe("hit")
		return v.exists
	}
	c.observe("miss")

	dbs, err := c.catalog.Databases(ctx)
	if err != nil {
		log.Err(err).Str("tenant", tenantID).Msg("Failed to check tenant existence")
		return false
	}

	exists := containsTenant(dbs, key)
	c.mu.Lock()
	c.verdicts[key] = verdict{exists: exists, checkedAt: c.clock.Now()}
	c.mu.Unlock()
	return exists
}

// Prime replaces every cached verdict using a freshly fetched catalog.
func (c *ExistenceCache) Prime(dbs []engine.Database) {
	now := c.clock.Now()
	known := make(map[string]verdict, len(dbs))
	for _, db := range dbs {
		known[strings.ToLower(db.Name)] = verdict{exists: true, checkedAt: now}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.verdicts {
		if _, ok := known[key]; !ok {
			known[key] = verdict{exists: false, checkedAt: now}
		}
	}
	c.verdicts = known
}

func (c *ExistenceCache) observe(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

func containsTenant(dbs []engine.Database, key string) bool {
	for _, db := range dbs {
		if strings.ToLower(db.Name) == key {
			return true
		}
	}
	return false
}
