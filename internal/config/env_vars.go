package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	envVar            = "ENV"
	logLevelVar       = "LOG_LEVEL"
	publicDomainVar   = "PUBLIC_DOMAIN"
	dashboardURLVar   = "DASHBOARD_UPSTREAM_URL"
	timezoneVar       = "TIMEZONE"
	queriesFileVar    = "QUERIES_FILE"
	productionEnvName = "production"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Dashboard Gateway")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (e EnvVars) IsProduction() bool {
	return strings.EqualFold(e.GetEnv(), productionEnvName)
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetPublicDomain returns the externally visible origin of the gateway
// (e.g. "https://reports.example.com"). It is the issuer of every session token.
func (EnvVars) GetPublicDomain() string {
	return GetEnv(publicDomainVar, "http://localhost")
}

// GetCookieDomain is the hostname part of the public domain.
func (e EnvVars) GetCookieDomain() string {
	u, err := url.Parse(e.GetPublicDomain())
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}

func (EnvVars) GetDashboardUpstreamURL() string {
	return GetEnv(dashboardURLVar, "")
}

func (EnvVars) GetTimezone() string {
	return GetEnv(timezoneVar, "Local")
}

// GetQueriesFile optionally points at a YAML file overriding the stored queries.
func (EnvVars) GetQueriesFile() string {
	return GetEnv(queriesFileVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvFloat(envVar string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(envVar), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
