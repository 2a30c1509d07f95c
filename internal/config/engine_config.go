package config

import "time"

const (
	engineBaseURLVar          = "SUPERSET_BASE_URL"
	engineUsernameVar         = "SUPERSET_USERNAME"
	enginePasswordVar         = "SUPERSET_PASSWORD"
	engineProviderVar         = "SUPERSET_PROVIDER"
	engineDatabaseIDVar       = "SUPERSET_DATABASE_ID"
	engineMaxRetriesVar       = "ENGINE_MAX_RETRIES"
	engineRetryBaseVar        = "ENGINE_RETRY_BASE"
	engineRequestTimeoutVar   = "ENGINE_REQUEST_TIMEOUT"
	engineRefreshThresholdVar = "ENGINE_TOKEN_REFRESH_THRESHOLD"
	engineSessionLifetimeVar  = "ENGINE_SESSION_LIFETIME"
	engineRateLimitVar        = "ENGINE_RATE_LIMIT"
	branchReportIDVar         = "BRANCH_REPORT_ID"
)

// EngineConfig describes how the gateway reaches the analytical SQL engine.
type EngineConfig interface {
	GetEngineBaseURL() string
	GetEngineUsername() string
	GetEnginePassword() string
	GetEngineProvider() string
	GetEngineDatabaseID() int
	GetEngineMaxRetries() int
	GetEngineRetryBase() time.Duration
	GetEngineRequestTimeout() time.Duration
	GetEngineRefreshThreshold() time.Duration
	GetEngineSessionLifetime() time.Duration
	GetEngineRateLimit() float64
	GetBranchReportID() string
}

type Engine struct{}

var _ EngineConfig = Engine{}

func (Engine) GetEngineBaseURL() string {
	return GetEnv(engineBaseURLVar, "")
}

func (Engine) GetEngineUsername() string {
	return GetEnv(engineUsernameVar, "")
}

func (Engine) GetEnginePassword() string {
	return GetEnv(enginePasswordVar, "")
}

func (Engine) GetEngineProvider() string {
	return GetEnv(engineProviderVar, "db")
}

func (Engine) GetEngineDatabaseID() int {
	return GetEnvInt(engineDatabaseIDVar, 3)
}

func (Engine) GetEngineMaxRetries() int {
	return GetEnvInt(engineMaxRetriesVar, 3)
}

func (Engine) GetEngineRetryBase() time.Duration {
	return GetEnvDuration(engineRetryBaseVar, time.Second)
}

func (Engine) GetEngineRequestTimeout() time.Duration {
	return GetEnvDuration(engineRequestTimeoutVar, 30*time.Second)
}

func (Engine) GetEngineRefreshThreshold() time.Duration {
	return GetEnvDuration(engineRefreshThresholdVar, 5*time.Minute)
}

// GetEngineSessionLifetime is the assumed bearer lifetime. The engine's own
// token expiry is not inspected.
func (Engine) GetEngineSessionLifetime() time.Duration {
	return GetEnvDuration(engineSessionLifetimeVar, time.Hour)
}

// GetEngineRateLimit caps outbound engine requests per second; 0 disables it.
func (Engine) GetEngineRateLimit() float64 {
	return GetEnvFloat(engineRateLimitVar, 0)
}

func (Engine) GetBranchReportID() string {
	return GetEnv(branchReportIDVar, "522")
}
