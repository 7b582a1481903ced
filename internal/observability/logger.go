package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valter-silva-au/taskflow/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogFile is the log file name used when none is configured.
const DefaultLogFile = "taskflow.log"

// NewLogger builds a zap logger from cfg. Output goes to a file, never to
// the terminal, so the TUI is not corrupted. A relative cfg.File is resolved
// against basePath.
func NewLogger(cfg models.LogConfig, basePath string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	path := cfg.File
	if path == "" {
		path = DefaultLogFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(basePath, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	var encCfg zapcore.EncoderConfig
	var encoding string
	switch strings.ToLower(cfg.Format) {
	case "console":
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoding = "console"
	case "", "json":
		encCfg = zap.NewProductionEncoderConfig()
		encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
