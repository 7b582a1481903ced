package models

import "time"

// Suggester names accepted by AIConfig.Suggester.
const (
	SuggesterMock    = "mock"
	SuggesterKeyword = "keyword"
	SuggesterRemote  = "remote"
)

// APIConfig holds the REST endpoint settings.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AIConfig selects the analysis capability used by the task form.
type AIConfig struct {
	Suggester string        `yaml:"suggester" mapstructure:"suggester"`
	Delay     time.Duration `yaml:"delay" mapstructure:"delay"`
}

// TasksConfig holds task list behavior switches.
type TasksConfig struct {
	// LocalCreate prepends form-built tasks without calling the API.
	LocalCreate bool `yaml:"local_create" mapstructure:"local_create"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Config holds client-wide settings read from .taskflow.yaml via Viper.
type Config struct {
	API   APIConfig   `yaml:"api" mapstructure:"api"`
	AI    AIConfig    `yaml:"ai" mapstructure:"ai"`
	Tasks TasksConfig `yaml:"tasks" mapstructure:"tasks"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}
