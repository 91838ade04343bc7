package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// fileMaxSizeMB is the size at which the log file is rotated.
	fileMaxSizeMB = 50
	// fileMaxBackups is how many rotated files are kept.
	fileMaxBackups = 5
	// fileMaxAgeDays is how long rotated files are kept.
	fileMaxAgeDays = 28
)

// WithFile tees every entry into a rotating JSON log file at path.
// The file core follows the shared atomic level.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithFile(path string) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
			Compress:   true,
		})

		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, defaultLevel)

		return zapcore.NewTee(core, fileCore)
	})
}
