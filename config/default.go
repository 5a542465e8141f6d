// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"strings"

	"github.com/hlsgate/hlsgate/constant"
	"github.com/hlsgate/hlsgate/key"
)

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Hlsgate + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	// register validates and adds a new configuration field to the global registry.
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		Default[k] = Field{Key: k, Value: v, Description: desc}
		EnvExposed = append(EnvExposed, k)
	}

	register(key.ServerHost, "0.0.0.0", "Address the HTTP server binds to")
	register(key.ServerPort, 3000, "Port the HTTP server listens on")
	register(key.ExtractorsEnabled, []string{"android", "ios", "web", "ytdlp"}, "Extractor backends that participate in the race.\nConfiguring a single backend yields the degraded single-adapter pipeline")
	register(key.ExtractorYtdlpURL, "http://localhost:8080", "Base URL of the yt-dlp fallback extraction service")
	register(key.ExtractorSpoofTLS, false, "Use a Chrome-fingerprinted TLS transport for upstream extraction requests")
	register(key.CacheBackend, "file", "Cache store backend.\nAvailable options are: file, redis")
	register(key.CacheTTL, 3600, "Seconds a cached extraction result stays valid")
	register(key.CacheRedisHost, "localhost", "Redis cache store host")
	register(key.CacheRedisPort, 6379, "Redis cache store port")
	register(key.RaceTimeout, 10000, "Milliseconds the extraction race may run before timing out")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
}
