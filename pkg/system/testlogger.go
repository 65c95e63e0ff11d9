package system

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewTestLogger returns a console logger for tests at info level without
// stack traces, so retry loops in dispatcher tests stay readable.
func NewTestLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Named("test").Sugar()
}
