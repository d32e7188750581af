// Package logger builds the structured logger a flashkv store hands to its
// engine through options.Options.Logger: one SugaredLogger per instance,
// structured key-value pairs on every call site, no global logger state.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile zap.SugaredLogger tagged with the given
// service name. service typically identifies the store instance (e.g. a
// mount point or device label) so logs from multiple concurrently open
// stores stay distinguishable.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build()
	if err != nil {
		// Config.Build only fails on a malformed encoder/sink configuration,
		// which NewProductionConfig never produces; fall back to a no-op
		// logger rather than letting a logging failure block store Open.
		base = zap.NewNop()
	}

	return base.Sugar().With("service", service)
}

// Nop returns a logger that discards everything, for tests and for callers
// that have not configured a logger explicitly.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
