package tenants

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// Refresher reloads the database catalog in the background so the existence
// cache rarely has to wait on the engine.
type Refresher struct {
	catalog  Catalog
	cache    *ExistenceCache
	interval time.Duration
	clock    clock.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(catalog Catalog, cache *ExistenceCache, interval time.Duration, clk clock.Clock) *Refresher {
	if clk == nil {
		clk = clock.New()
	}
	return &Refresher{
		catalog:  catalog,
		cache:    cache,
		interval: interval,
		clock:    clk,
		done:     make(chan struct{}),
	}
}

// Start refreshes on every tick until ctx is done or Stop is called. Only the
// first call starts a loop.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)

	ticker := r.clock.Ticker(r.interval)
	go func() {
		defer close(r.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.refresh(ctx)
			}
		}
	}()
}

// Stop cancels any refresh in flight and waits for the loop to exit. It
// returns immediately when the loop was never started.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-r.done
}

func (r *Refresher) refresh(ctx context.Context) {
	dbs, err := r.catalog.RefreshDatabases(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Background catalog refresh failed")
		return
	}
	r.cache.Prime(dbs)
	log.Debug().Int("tenants", len(dbs)).Msg("Tenant catalog refreshed")
}
