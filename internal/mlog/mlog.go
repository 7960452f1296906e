// Package mlog is the logging setup shared by the lookup controller and
// cmd/lookupctl. It wraps go.uber.org/zap the way the teacher repo's own
// mlog package does (a config-driven *zap.Logger plus a package-level
// accessor), reimplemented here because that package was not part of the
// retrieved sources.
package mlog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls log level and encoding. It is unmarshaled straight from
// the "log" section of the YAML config.
type Config struct {
	Level    string `yaml:"level"`    // debug|info|warn|error, default info
	Encoding string `yaml:"encoding"` // console|json, default console
}

var global = zap.NewNop()

// NewLogger builds a *zap.Logger from cfg and sets it as the package-level
// global returned by L(). A nil cfg yields the default (info, console).
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lg, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	global = lg
	return lg, nil
}

// L returns the current global logger. Before NewLogger is called it is a
// no-op logger, so packages may hold onto mlog.L() at init time safely.
func L() *zap.Logger {
	return global
}
