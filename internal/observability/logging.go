// Package observability provides logging and metrics.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapgrpc"
	"google.golang.org/grpc/grpclog"

	"github.com/cory-johannsen/sotamapper/internal/config"
)

// AppName is attached to every log entry as the "app" field.
const AppName = "sotamapper"

var formats = map[string]func() zap.Config{
	"json":    zap.NewProductionConfig,
	"console": zap.NewDevelopmentConfig,
}

// NewLogger creates a structured logger from the given logging configuration.
// When cfg.File is set, log lines are appended to that file as well as
// written to stderr.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	newCfg, ok := formats[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg := newCfg()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Every watcher tick at debug level would otherwise be sampled away.
	zapCfg.Sampling = nil
	zapCfg.InitialFields = map[string]any{"app": AppName}
	if cfg.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
		zapCfg.ErrorOutputPaths = append(zapCfg.ErrorOutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// InstallGlobals routes the zap globals, the standard library log package
// and grpc-go's internal logging through logger.
//
// Precondition: call once from main before any gRPC use.
// Postcondition: the returned func restores the zap globals and the standard
// logger; grpclog keeps logger.
func InstallGlobals(logger *zap.Logger) (restore func()) {
	undoGlobals := zap.ReplaceGlobals(logger)
	undoStdLog := zap.RedirectStdLog(logger.Named("stdlog"))
	grpclog.SetLoggerV2(zapgrpc.NewLogger(logger.Named("grpc").WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))))
	return func() {
		undoStdLog()
		undoGlobals()
	}
}
