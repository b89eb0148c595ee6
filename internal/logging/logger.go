// Package logging builds the shared zap logger.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a JSON logger writing to a rotated file under logDir.
func NewLogger(logDir, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "pathwatch.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, parseLevel(level))
	return zap.New(core), nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
