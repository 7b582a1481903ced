// Package core contains the client-side business logic for TaskFlow: the
// task list controller, the task form state machine, AI suggestion
// strategies, the session routing gate and configuration loading.
package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/taskflow/pkg/models"
	"go.uber.org/zap/zapcore"
)

// ConfigFileName is the base name of the YAML configuration file.
const ConfigFileName = ".taskflow"

// EnvPrefix prefixes environment overrides, e.g. TASKFLOW_API_BASE_URL.
const EnvPrefix = "TASKFLOW"

// ConfigurationManager defines the interface for loading and validating the
// client configuration.
type ConfigurationManager interface {
	LoadConfig() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file and environment overrides.
type viperConfigManager struct {
	// basePath is the directory where .taskflow.yaml resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a Config populated with the built-in defaults.
func DefaultConfig() *models.Config {
	return &models.Config{
		API: models.APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		AI: models.AIConfig{
			Suggester: models.SuggesterMock,
			Delay:     1500 * time.Millisecond,
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads .taskflow.yaml from the base path and applies TASKFLOW_*
// environment overrides. If the file does not exist, defaults (plus any
// environment overrides) are returned.
func (cm *viperConfigManager) LoadConfig() (*models.Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("ai.suggester", cfg.AI.Suggester)
	v.SetDefault("ai.delay", cfg.AI.Delay)
	v.SetDefault("tasks.local_create", cfg.Tasks.LocalCreate)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s.yaml: %w", ConfigFileName, err)
		}
	}

	cfg.API.BaseURL = strings.TrimRight(v.GetString("api.base_url"), "/")
	cfg.API.Timeout = v.GetDuration("api.timeout")
	cfg.AI.Suggester = strings.ToLower(v.GetString("ai.suggester"))
	cfg.AI.Delay = v.GetDuration("ai.delay")
	cfg.Tasks.LocalCreate = v.GetBool("tasks.local_create")
	cfg.Log.Level = strings.ToLower(v.GetString("log.level"))
	cfg.Log.Format = strings.ToLower(v.GetString("log.format"))
	cfg.Log.File = v.GetString("log.file")

	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.base_url %q must be an absolute http(s) URL", cfg.API.BaseURL))
	}

	if cfg.API.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("api.timeout must be non-negative, got %s", cfg.API.Timeout))
	}

	switch cfg.AI.Suggester {
	case models.SuggesterMock, models.SuggesterKeyword, models.SuggesterRemote:
	default:
		errs = append(errs, fmt.Sprintf(
			"ai.suggester %q is invalid, must be one of: mock, keyword, remote",
			cfg.AI.Suggester,
		))
	}

	if cfg.AI.Delay < 0 {
		errs = append(errs, fmt.Sprintf("ai.delay must be non-negative, got %s", cfg.AI.Delay))
	}

	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", cfg.Log.Level))
	}

	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be json or console", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
