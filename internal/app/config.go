package app

import (
	"story-app/internal/config"
	"story-app/internal/repository/db"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Database interface for data persistence
	DB db.Database
	// Centralized application configuration
	AppConfig *config.AppConfig
}

// NewConfig creates a new application configuration
func NewConfig(database db.Database, appConfig *config.AppConfig) *Config {
	return &Config{
		DB:        database,
		AppConfig: appConfig,
	}
}

// ModesConfig returns the story modes catalogue
func (c *Config) ModesConfig() *config.ModesConfig {
	return c.AppConfig.Modes
}
