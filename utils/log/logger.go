package log

import (
	"context"
	"os"

	"go.uber.org/zap"
)

var logger *zap.Logger

func init() {
	if os.Getenv("DEBUG") == "true" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
}

// WithCtx returns a logger carrying the request-scoped identifiers that the
// auth layer stores on the context.
func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	if v := ctx.Value("user_id"); v != nil {
		fields = append(fields, zap.Any("user_id", v))
	}
	if v := ctx.Value("device_id"); v != nil {
		fields = append(fields, zap.Any("device_id", v))
	}
	if v := ctx.Value("session_id"); v != nil {
		fields = append(fields, zap.Any("session_id", v))
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}
