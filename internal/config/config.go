package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	EngineConfig
	CacheConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsProduction() bool
	GetLogLevel() string
	GetPublicDomain() string
	GetCookieDomain() string
	GetDashboardUpstreamURL() string
	GetTimezone() string
	GetQueriesFile() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Security
	Engine
	Cache
}

func New() Config {
	return mainConfig{}
}

// Validate reports the first setting that would stop the gateway from
// serving requests correctly.
func Validate(c Config) error {
	if c.GetAccessTokenSecret() == "" {
		return fmt.Errorf("%s is required", accessTokenSecretVar)
	}
	if c.GetRefreshTokenSecret() == "" {
		return fmt.Errorf("%s is required", refreshTokenSecretVar)
	}
	if c.GetAccessTokenSecret() == c.GetRefreshTokenSecret() {
		return fmt.Errorf("%s and %s must differ", accessTokenSecretVar, refreshTokenSecretVar)
	}
	for _, alg := range []string{c.GetAccessTokenAlgorithm(), c.GetRefreshTokenAlgorithm()} {
		if !strings.HasPrefix(alg, "HS") {
			return fmt.Errorf("unsupported token algorithm %q", alg)
		}
	}

	base := c.GetEngineBaseURL()
	if base == "" {
		return fmt.Errorf("%s is required", engineBaseURLVar)
	}
	if u, err := url.Parse(base); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be a valid HTTP(S) URL", engineBaseURLVar)
	}
	if c.GetEngineMaxRetries() < 1 {
		return fmt.Errorf("%s must be at least 1", engineMaxRetriesVar)
	}
	if c.GetTenantCacheTTL() <= 0 {
		return fmt.Errorf("%s must be positive", tenantCacheTTLVar)
	}
	return nil
}
