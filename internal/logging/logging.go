// Package logging provides structured logging for findex built on Zap.
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger for the given level and format.
//
// Level is one of debug, info, warn, error. Format is "json" (production
// output) or "console" (human-readable, for local runs).
func New(level, format string) (*zap.Logger, error) {
	return NewWithOTel(level, format, nil)
}

// NewWithOTel creates a logger that writes to stderr and, when provider
// is non-nil, tees records into the OpenTelemetry log pipeline.
func NewWithOTel(level, format string, provider log.LoggerProvider) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(
		newEncoder(format),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	if provider != nil {
		otelCore := otelzap.NewCore("findex",
			otelzap.WithLoggerProvider(provider),
		)
		core = zapcore.NewTee(core, otelCore)
	}
	return zap.New(core, zap.AddCaller()), nil
}

// newEncoder creates a JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", level)
	}
}
