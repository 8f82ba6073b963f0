package config

import "time"

// Session timers
const (
	TokenRefreshInterval   = 45 * time.Minute
	StatusPollInterval     = 5 * time.Second
	QRCountdownInterval    = 1 * time.Second
	QRCodeLifetime         = 300 * time.Second
	DashboardLoadDelay     = 1 * time.Second
	DefaultAPITimeout      = 5 * time.Minute
	IdentityRequestTimeout = 30 * time.Second
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 6 * time.Minute
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Local storage connection pool settings
const (
	DBMaxOpenConns    = 4
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 5 * time.Minute
)

const DBPingTimeout = 5 * time.Second

// Template limits enforced before calling the backend
const (
	MaxMessageLength   = 4096
	MaxTemplateMedia   = 2
	MaxMediaSizeBytes  = 50 << 20
	MaxUploadBodyBytes = MaxTemplateMedia*MaxMediaSizeBytes + 1<<20
)

// Local operator API limits
const (
	MaxJSONBodyBytes      = 1 << 20
	LoginMaxAttempts      = 5
	LoginAttemptWindow    = time.Minute
	CSRFCookieMaxAge      = 12 * time.Hour
	StatusWatchRetryDelay = 5 * time.Second
)
