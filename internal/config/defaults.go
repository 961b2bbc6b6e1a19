package config

// DefaultAddr is the default listen address for the HTTP/WebSocket server.
const DefaultAddr = "127.0.0.1:7171"

// DefaultLogLevel is used when log_level is unset.
const DefaultLogLevel = "info"

// DefaultMaxDiffBytes is 16MB.
const DefaultMaxDiffBytes = 16 * 1024 * 1024

// Parse request rate limits, per client.
const (
	DefaultRateLimit = 20.0
	DefaultRateBurst = 10
)

// DefaultWatchPollMs is the watch polling interval.
const DefaultWatchPollMs = 1000
