// Package internal provides the App struct that wires all components of the
// TaskFlow client together and initializes the CLI layer.
package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/taskflow/internal/cli"
	"github.com/valter-silva-au/taskflow/internal/client"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/observability"
	"github.com/valter-silva-au/taskflow/internal/storage"
	"github.com/valter-silva-au/taskflow/pkg/models"
	"go.uber.org/zap"
)

// EventLogFileName is the activity log inside the base path.
const EventLogFileName = "activity.jsonl"

// App holds all service dependencies for the TaskFlow client.
type App struct {
	BasePath string
	Config   *models.Config

	// Configuration
	ConfigMgr core.ConfigurationManager

	Logger *zap.Logger

	// Storage layer
	SessionStore storage.SessionStoreManager

	// Transport and core services
	Client    *client.Client
	Suggester core.Suggester

	// Observability
	EventLog   observability.EventLog
	Summarizer observability.ActivitySummarizer

	stopWatch context.CancelFunc
}

// NewApp creates and wires all components of the TaskFlow client. basePath
// is the directory holding the config file, session and activity log.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", basePath, err)
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Logging ---
	app.Logger, err = observability.NewLogger(cfg.Log, basePath)
	if err != nil {
		// Non-fatal: run without a log file.
		app.Logger = zap.NewNop()
	}

	// --- Storage layer ---
	app.SessionStore = storage.NewSessionStoreManager(basePath, app.Logger)
	watchCtx, cancel := context.WithCancel(context.Background())
	app.stopWatch = cancel
	if err := app.SessionStore.Watch(watchCtx); err != nil {
		// Non-fatal: other processes' logins are picked up on next start.
		app.Logger.Warn("session watcher disabled", zap.Error(err))
	}

	// --- Transport ---
	app.Client = client.New(cfg.API.BaseURL, app.SessionStore,
		client.WithTimeout(cfg.API.Timeout),
		client.WithLogger(app.Logger.Named("client")),
	)

	// --- Core services ---
	app.Suggester, err = core.NewSuggester(cfg.AI, app.Client)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("configuring suggester: %w", err)
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, EventLogFileName))
	if err != nil {
		// Non-fatal: disable the activity log if it can't be created.
		app.Logger.Warn("activity log disabled", zap.Error(err))
		app.EventLog = nil
	}
	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog, logger: app.Logger}
		app.Summarizer = observability.NewActivitySummarizer(app.EventLog)
	}

	// --- Wire CLI package-level variables ---
	cli.Cfg = cfg
	cli.BasePath = basePath
	cli.API = app.Client
	cli.Sessions = app.SessionStore
	cli.Suggester = app.Suggester
	cli.Events = evtAdapter
	cli.EventLog = app.EventLog
	cli.Summarizer = app.Summarizer

	app.Logger.Debug("app initialized",
		zap.String("base_path", basePath),
		zap.String("api", cfg.API.BaseURL),
		zap.String("suggester", cfg.AI.Suggester),
	)
	return app, nil
}

// Close stops the session watcher and releases the event log and logger.
// It is safe to call Close more than once.
func (a *App) Close() error {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	if a.EventLog != nil {
		err := a.EventLog.Close()
		a.EventLog = nil
		return err
	}
	return nil
}

// ResolveBasePath determines the TaskFlow data directory. TASKFLOW_HOME wins,
// then the nearest parent directory holding .taskflow.yaml, then ~/.taskflow.
func ResolveBasePath() string {
	if home := os.Getenv("TASKFLOW_HOME"); home != "" {
		return home
	}
	configFile := core.ConfigFileName + ".yaml"
	if dir, err := os.Getwd(); err == nil {
		for {
			if _, err := os.Stat(filepath.Join(dir, configFile)); err == nil {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".taskflow")
	}
	cwd, _ := os.Getwd()
	return cwd
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log    observability.EventLog
	logger *zap.Logger
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	if err := a.log.Write(observability.NewEvent(eventType, data)); err != nil {
		a.logger.Warn("writing activity event", zap.String("type", eventType), zap.Error(err))
		return err
	}
	return nil
}
