package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger: JSON with ISO8601 timestamps in production,
// coloured console output otherwise. Each sink additionally receives every
// entry JSON-encoded, for shipping to CloudWatch Logs.
func New(env string, sinks ...io.Writer) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if len(sinks) == 0 {
		return config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	}

	level := zap.NewAtomicLevelAt(config.Level.Level())
	var console zapcore.Encoder
	if config.Encoding == "json" {
		console = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		console = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}
	cores := []zapcore.Core{zapcore.NewCore(console, zapcore.Lock(os.Stdout), level)}

	sinkEncoder := config.EncoderConfig
	sinkEncoder.EncodeLevel = zapcore.CapitalLevelEncoder
	for _, sink := range sinks {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(sinkEncoder), zapcore.AddSync(sink), level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
