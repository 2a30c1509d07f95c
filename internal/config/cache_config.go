package config

import "time"

const tenantCacheTTLVar = "TENANT_CACHE_TTL"

type CacheConfig interface {
	GetTenantCacheTTL() time.Duration
}

type Cache struct{}

var _ CacheConfig = Cache{}

// GetTenantCacheTTL bounds how stale a tenant existence verdict or the
// engine database catalog may become.
func (Cache) GetTenantCacheTTL() time.Duration {
	return GetEnvDuration(tenantCacheTTLVar, 5*time.Minute)
}
