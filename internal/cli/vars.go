package cli

import (
	"context"

	"github.com/valter-silva-au/taskflow/internal/client"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/observability"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// APIClient is the subset of client.Client the commands use.
type APIClient interface {
	core.TaskAPI
	Login(ctx context.Context, username, password string) (client.LoginResult, error)
	Register(ctx context.Context, username, email, password string) (client.LoginResult, error)
}

// SessionStore is the subset of storage.SessionStoreManager the commands use.
type SessionStore interface {
	Get() (models.Session, error)
	Set(token string, user models.User) error
	Clear() error
	Subscribe() (<-chan models.Session, func())
}

// Service instances, set during app initialization in app.go.
var (
	Cfg        *models.Config
	API        APIClient
	Sessions   SessionStore
	Suggester  core.Suggester
	Events     core.EventLogger
	EventLog   observability.EventLog
	Summarizer observability.ActivitySummarizer
	BasePath   string
)

// taskListConfig wires a TaskList to the configured services.
func taskListConfig(notifier core.Notifier, nav core.Navigator) core.TaskListConfig {
	cfg := core.TaskListConfig{
		API:       API,
		Session:   Sessions,
		Notifier:  notifier,
		Navigator: nav,
		Events:    Events,
	}
	if Cfg != nil {
		cfg.LocalCreate = Cfg.Tasks.LocalCreate
	}
	return cfg
}

func logEvent(eventType string, data map[string]any) {
	if Events != nil {
		_ = Events.LogEvent(eventType, data)
	}
}
