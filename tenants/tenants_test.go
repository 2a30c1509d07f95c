package tenants_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/dashboard-gateway/tenants"
	tenantrepofakes "github.com/jrsteele09/dashboard-gateway/tenants/repofakes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(testNow)
	return clk
}

func TestResolveTenant(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		referer string
		want    string
	}{
		{name: "page path", target: "/AcmeCafe/dashboard", want: "AcmeCafe"},
		{name: "page root", target: "/AcmeCafe", want: "AcmeCafe"},
		{name: "site root", target: "/", want: ""},
		{name: "api uses referer", target: "/api/widgetreport", referer: "https://dash.example.com/AcmeCafe/dashboard", want: "AcmeCafe"},
		{name: "api referer with query", target: "/api/efr_branches", referer: "https://dash.example.com/AcmeCafe?tab=1", want: "AcmeCafe"},
		{name: "api without referer", target: "/api/widgetreport", want: ""},
		{name: "api referer at host root", target: "/api/widgetreport", referer: "https://dash.example.com", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			if tt.referer != "" {
				r.Header.Set("Referer", tt.referer)
			}
			require.Equal(t, tt.want, tenants.ResolveTenant(r))
		})
	}
}

func TestExistenceCache(t *testing.T) {
	ctx := context.Background()
	clk := newMockClock()
	catalog := tenantrepofakes.NewFakeCatalog("AcmeCafe", "examples")
	reg := prometheus.NewRegistry()
	cache := tenants.NewExistenceCache(catalog, 5*time.Minute, tenants.WithClock(clk), tenants.WithRegisterer(reg))

	require.True(t, cache.Exists(ctx, "AcmeCafe"))
	require.True(t, cache.Exists(ctx, "acmecafe"))
	require.EqualValues(t, 1, catalog.Calls.Load())

	require.False(t, cache.Exists(ctx, "Unknown"))
	require.False(t, cache.Exists(ctx, "Unknown"))
	require.EqualValues(t, 2, catalog.Calls.Load())

	t.Run("verdict expires after ttl", func(t *testing.T) {
		catalog.Add("Unknown")
		clk.Add(4 * time.Minute)
		require.False(t, cache.Exists(ctx, "Unknown"))
		clk.Add(time.Minute)
		require.True(t, cache.Exists(ctx, "Unknown"))
	})

	t.Run("catalog errors are not cached", func(t *testing.T) {
		catalog.SetDown(true)
		require.False(t, cache.Exists(ctx, "Later"))
		catalog.SetDown(false)
		catalog.Add("Later")
		require.True(t, cache.Exists(ctx, "Later"))
	})

	expected := `
# HELP gateway_tenant_cache_lookups_total Tenant existence lookups by cache result.
# TYPE gateway_tenant_cache_lookups_total counter
gateway_tenant_cache_lookups_total{result="hit"} 3
gateway_tenant_cache_lookups_total{result="miss"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gateway_tenant_cache_lookups_total"))
}

func TestExistenceCache_EmptyTenant(t *testing.T) {
	catalog := tenantrepofakes.NewFakeCatalog("AcmeCafe")
	cache := tenants.NewExistenceCache(catalog, time.Minute)
	require.False(t, cache.Exists(context.Background(), ""))
	require.EqualValues(t, 0, catalog.Calls.Load())
}

func TestRefresher(t *testing.T) {
	ctx := context.Background()
	clk := newMockClock()
	catalog := tenantrepofakes.NewFakeCatalog("AcmeCafe")
	cache := tenants.NewExistenceCache(catalog, 1000*time.Hour, tenants.WithClock(clk))
	require.False(t, cache.Exists(ctx, "NewTenant"))
	calls := catalog.Calls.Load()

	refresher := tenants.NewRefresher(catalog, cache, 5*time.Minute, clk)
	refresher.Start(ctx)
	defer refresher.Stop()

	catalog.Add("NewTenant")
	require.Eventually(t, func() bool {
		clk.Add(5 * time.Minute)
		return cache.Exists(ctx, "newtenant")
	}, time.Second, 5*time.Millisecond)

	require.Positive(t, catalog.Refreshes.Load())
	require.Equal(t, calls, catalog.Calls.Load())
}

func TestRefresher_Stop(t *testing.T) {
	t.Run("never started", func(t *testing.T) {
		catalog := tenantrepofakes.NewFakeCatalog("AcmeCafe")
		refresher := tenants.NewRefresher(catalog, tenants.NewExistenceCache(catalog, time.Minute), time.Minute, newMockClock())

		stopped := make(chan struct{})
		go func() {
			refresher.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("Stop blocked without Start")
		}
	})

	t.Run("cancels refresh in flight", func(t *testing.T) {
		clk := newMockClock()
		catalog := tenantrepofakes.NewFakeCatalog("AcmeCafe")
		release := catalog.BlockRefreshes()
		defer release()
		refresher := tenants.NewRefresher(catalog, tenants.NewExistenceCache(catalog, time.Minute), time.Minute, clk)
		refresher.Start(context.Background())

		require.Eventually(t, func() bool {
			clk.Add(time.Minute)
			return catalog.Refreshes.Load() > 0
		}, time.Second, 5*time.Millisecond)

		stopped := make(chan struct{})
		go func() {
			refresher.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("Stop waited on a blocked refresh")
		}
		refresher.Stop()
	})
}
