// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

const (
	ServerHost = "server.host"
	ServerPort = "server.port"
)

const (
	ExtractorsEnabled = "extractors.enabled"
	ExtractorYtdlpURL = "extractors.ytdlp.url"
	ExtractorSpoofTLS = "extractors.spoof_tls"
)

const (
	CacheBackend   = "cache.backend"
	CacheTTL       = "cache.ttl"
	CacheRedisHost = "cache.redis.host"
	CacheRedisPort = "cache.redis.port"
)

const (
	RaceTimeout = "race.timeout"
)

const (
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)
