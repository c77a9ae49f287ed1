package config

import (
	"strings"

	"github.com/strandhttp/strand/internal/util"
)

// validLogLevels and validLogFormats are the accepted logging settings.
var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// Validate checks the configuration for values that cannot be served.
func Validate(c *Config) error {
	if c == nil {
		return util.NewConfigError("", "configuration is nil")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return util.NewConfigError("server.port", "port must be between 0 and 65535")
	}
	if c.Server.ReadTimeout < 0 {
		return util.NewConfigError("server.readTimeout", "timeout must not be negative")
	}
	if c.Server.WriteTimeout < 0 {
		return util.NewConfigError("server.writeTimeout", "timeout must not be negative")
	}
	if c.Server.IdleTimeout < 0 {
		return util.NewConfigError("server.idleTimeout", "timeout must not be negative")
	}
	if c.Server.MaxHeaderBytes < 0 {
		return util.NewConfigError("server.maxHeaderBytes", "size must not be negative")
	}
	if c.Server.MaxRequestBodySize < 0 {
		return util.NewConfigError("server.maxRequestBodySize", "size must not be negative")
	}

	if c.WebSocket.ReadBufferSize < 0 {
		return util.NewConfigError("websocket.readBufferSize", "size must not be negative")
	}
	if c.WebSocket.WriteBufferSize < 0 {
		return util.NewConfigError("websocket.writeBufferSize", "size must not be negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return util.NewConfigError("rateLimit.requestsPerSecond",
				"must be positive when rate limiting is enabled")
		}
		if c.RateLimit.Burst < 0 {
			return util.NewConfigError("rateLimit.burst", "burst must not be negative")
		}
	}

	level := strings.ToLower(c.Observability.Logging.Level)
	if level != "" && !validLogLevels[level] {
		return util.NewConfigError("observability.logging.level",
			"level must be one of debug, info, warn, error")
	}
	format := strings.ToLower(c.Observability.Logging.Format)
	if format != "" && !validLogFormats[format] {
		return util.NewConfigError("observability.logging.format",
			"format must be json or console")
	}

	if c.Observability.Metrics.Enabled {
		if p := c.Observability.Metrics.Path; p != "" && !strings.HasPrefix(p, "/") {
			return util.NewConfigError("observability.metrics.path",
				"path must start with /")
		}
	}

	return nil
}
