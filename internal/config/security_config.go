package config

import "time"

const (
	accessTokenSecretVar     = "ACCESS_TOKEN_SECRET"
	refreshTokenSecretVar    = "REFRESH_TOKEN_SECRET"
	accessTokenLifetimeVar   = "ACCESS_TOKEN_LIFETIME"
	refreshTokenLifetimeVar  = "REFRESH_TOKEN_LIFETIME"
	accessTokenAlgorithmVar  = "ACCESS_TOKEN_ALGORITHM"
	refreshTokenAlgorithmVar = "REFRESH_TOKEN_ALGORITHM"
	loginRateLimitVar        = "LOGIN_RATE_LIMIT"
	loginRateBurstVar        = "LOGIN_RATE_BURST"
)

type SecurityConfig interface {
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetAccessTokenLifetime() time.Duration
	GetRefreshTokenLifetime() time.Duration
	GetAccessTokenAlgorithm() string
	GetRefreshTokenAlgorithm() string
	GetEnableRateLimiting() bool
	GetLoginRateLimit() float64
	GetLoginRateBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetAccessTokenSecret() string {
	return GetEnv(accessTokenSecretVar, "")
}

func (Security) GetRefreshTokenSecret() string {
	return GetEnv(refreshTokenSecretVar, "")
}

func (Security) GetAccessTokenLifetime() time.Duration {
	return GetEnvDuration(accessTokenLifetimeVar, 900*time.Second)
}

func (Security) GetRefreshTokenLifetime() time.Duration {
	return GetEnvDuration(refreshTokenLifetimeVar, 129600*time.Second) // 36 hours
}

func (Security) GetAccessTokenAlgorithm() string {
	return GetEnv(accessTokenAlgorithmVar, "HS512")
}

func (Security) GetRefreshTokenAlgorithm() string {
	return GetEnv(refreshTokenAlgorithmVar, "HS512")
}

func (s Security) GetEnableRateLimiting() bool {
	return s.GetLoginRateLimit() > 0
}

// GetLoginRateLimit is the sustained login attempts per second allowed per client IP.
func (Security) GetLoginRateLimit() float64 {
	return GetEnvFloat(loginRateLimitVar, 1)
}

func (Security) GetLoginRateBurst() int {
	return GetEnvInt(loginRateBurstVar, 5)
}
