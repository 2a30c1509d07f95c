package tenantrepofakes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/dashboard-gateway/engine"
	"github.com/jrsteele09/dashboard-gateway/tenants"
)

var _ tenants.Catalog = (*FakeCatalog)(nil)

var ErrCatalogDown = errors.New("catalog unavailable")

type FakeCatalog struct {
	lock      sync.RWMutex
	databases []engine.Database
	down      bool
	gate      chan struct{}

	Calls     atomic.Int32
	Refreshes atomic.Int32
}

func NewFakeCatalog(names ...string) *FakeCatalog {
	c := &FakeCatalog{}
	for i, name := range names {
		c.databases = append(c.databases, engine.Database{ID: i + 1, Name: name})
	}
	return c
}

func (c *FakeCatalog) Add(name string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.databases = append(c.databases, engine.Database{ID: len(c.databases) + 1, Name: name})
}

func (c *FakeCatalog) SetDown(down bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.down = down
}

// BlockRefreshes makes RefreshDatabases wait until release is called or the
// caller's context ends.
func (c *FakeCatalog) BlockRefreshes() (release func()) {
	gate := make(chan struct{})
	c.lock.Lock()
	c.gate = gate
	c.lock.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (c *FakeCatalog) Databases(_ context.Context) ([]engine.Database, error) {
	c.Calls.Add(1)
	return c.list()
}

func (c *FakeCatalog) RefreshDatabases(ctx context.Context) ([]engine.Database, error) {
	c.Refreshes.Add(1)
	c.lock.RLock()
	gate := c.gate
	c.lock.RUnlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.list()
}

func (c *FakeCatalog) list() ([]engine.Database, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.down {
		return nil, ErrCatalogDown
	}
	return append([]engine.Database(nil), c.databases...), nil
}
