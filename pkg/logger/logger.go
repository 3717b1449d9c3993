// Package logger builds the zap loggers used by the API server and the CLI.
package logger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/classbook-api/pkg/config"
	"github.com/noah-isme/classbook-api/pkg/middleware/requestid"
)

const serviceName = "classbook-api"

// New returns the server logger: production settings outside development,
// JSON unless LOG_FORMAT=console.
func New(cfg *config.Config) (*zap.Logger, error) {
	base := zap.NewDevelopmentConfig()
	if cfg.Env == config.EnvProduction {
		base = zap.NewProductionConfig()
	}
	base.Encoding = "json"
	if strings.EqualFold(cfg.Log.Format, "console") {
		base.Encoding = "console"
	}
	base.EncoderConfig.TimeKey = "timestamp"
	base.InitialFields = map[string]interface{}{"service": serviceName}
	return build(base, cfg.Log.Level)
}

// NewCLI returns a human-readable logger on stderr, keeping stdout for command output.
func NewCLI(level string) (*zap.Logger, error) {
	base := zap.NewDevelopmentConfig()
	base.Encoding = "console"
	base.OutputPaths = []string{"stderr"}
	base.DisableStacktrace = true
	return build(base, level)
}

func build(base zap.Config, level string) (*zap.Logger, error) {
	base.Level = zap.NewAtomicLevelAt(levelOf(level))
	base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return base.Build()
}

// levelOf parses level names case-insensitively; unknown names mean info.
func levelOf(raw string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(raw)))); err != nil || raw == "" {
		return zapcore.InfoLevel
	}
	return lvl
}

var quietPaths = map[string]bool{"/health": true, "/ready": true, "/metrics": true}

// GinMiddleware writes one "http_request" entry per request: debug for probes,
// error for 5xx and info otherwise.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := make([]zap.Field, 0, 8)
		fields = append(fields,
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(started)),
			zap.String("ip", c.ClientIP()),
		)
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		level := zapcore.InfoLevel
		switch {
		case quietPaths[c.Request.URL.Path]:
			level = zapcore.DebugLevel
		case status >= 500:
			level = zapcore.ErrorLevel
		}
		if entry := l.Check(level, "http_request"); entry != nil {
			entry.Write(fields...)
		}
	}
}
