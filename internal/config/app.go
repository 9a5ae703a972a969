package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"story-app/internal/logger"

	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Usage    UsageConfig
	Voice    VoiceConfig
	Payment  PaymentConfig
	Auth     AuthConfig
	Modes    *ModesConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port    string
	Version string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LLMConfig holds generation provider configuration
type LLMConfig struct {
	Provider           string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	OpenRouterAPIKey   string
	OpenRouterBaseURL  string
	OpenRouterModel    string
	DefaultTemperature float64
	DefaultMaxTokens   int
	RequestTimeout     time.Duration
}

// UsageConfig holds quota and history configuration
type UsageConfig struct {
	DailyRequestLimit int
	HistoryLimit      int
	ExemptUserIDs     []string
}

// VoiceConfig holds speech synthesis and transcription configuration
type VoiceConfig struct {
	TTSModel     string
	DefaultVoice string
	STTModel     string
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	SecretKey          string
	BaseURL            string
	CallbackURL        string
	Currency           string
	PlanAmounts        map[string]int64
	SubscriptionPeriod time.Duration
}

// AuthConfig holds bearer token configuration. An empty secret disables
// token verification and identity comes from the request body.
type AuthConfig struct {
	JWTSecret []byte
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	config := &AppConfig{}

	config.Server = ServerConfig{
		Port:    getEnvOrDefault("SERVER_PORT", getEnvOrDefault("PORT", "8080")),
		Version: getEnvOrDefault("APP_VERSION", "dev"),
	}

	config.Database = DatabaseConfig{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault("DB_NAME", "storyapp"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	config.LLM = LLMConfig{
		Provider:           getEnvOrDefault("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:        getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:  getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:    getEnvOrDefault("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		DefaultTemperature: getEnvAsFloat("DEFAULT_TEMPERATURE", 0.8),
		DefaultMaxTokens:   getEnvAsInt("DEFAULT_MAX_TOKENS", 800),
		RequestTimeout:     getEnvAsDuration("LLM_REQUEST_TIMEOUT", 60*time.Second),
	}
	switch config.LLM.Provider {
	case "openai":
		if config.LLM.OpenAIAPIKey == "" {
			logger.Log.Warn("OPENAI_API_KEY environment variable not set")
		}
	case "openrouter":
		if config.LLM.OpenRouterAPIKey == "" {
			logger.Log.Warn("OPENROUTER_API_KEY environment variable not set")
		}
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be one of: openai, openrouter; got %s", config.LLM.Provider)
	}

	config.Usage = UsageConfig{
		DailyRequestLimit: getEnvAsInt("DAILY_REQUEST_LIMIT", 10),
		HistoryLimit:      getEnvAsInt("HISTORY_LIMIT", 20),
		ExemptUserIDs:     getEnvAsList("EXEMPT_USER_IDS"),
	}
	if config.Usage.DailyRequestLimit < 0 {
		return nil, fmt.Errorf("DAILY_REQUEST_LIMIT must not be negative, got %d", config.Usage.DailyRequestLimit)
	}

	config.Voice = VoiceConfig{
		TTSModel:     getEnvOrDefault("TTS_MODEL", "tts-1"),
		DefaultVoice: getEnvOrDefault("TTS_VOICE", "alloy"),
		STTModel:     getEnvOrDefault("STT_MODEL", "whisper-1"),
	}

	config.Payment = PaymentConfig{
		SecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
		BaseURL:     getEnvOrDefault("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		CallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
		Currency:    getEnvOrDefault("PAYMENT_CURRENCY", "NGN"),
		PlanAmounts: map[string]int64{
			"premium": int64(getEnvAsInt("PLAN_PREMIUM_AMOUNT", 500000)),
			"pro":     int64(getEnvAsInt("PLAN_PRO_AMOUNT", 1500000)),
		},
		SubscriptionPeriod: getEnvAsDuration("SUBSCRIPTION_PERIOD", 30*24*time.Hour),
	}
	if config.Payment.SecretKey == "" {
		logger.Log.Warn("PAYSTACK_SECRET_KEY environment variable not set, payment endpoints will fail")
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		if len(secret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(secret))
		}
		config.Auth.JWTSecret = []byte(secret)
	}

	modesConfig, err := LoadModesConfig(os.Getenv("MODES_CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("failed to load modes config: %w", err)
	}
	config.Modes = modesConfig

	return config, nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ActiveModel returns the default model of the configured provider
func (c *LLMConfig) ActiveModel() string {
	if c.Provider == "openrouter" {
		return c.OpenRouterModel
	}
	return c.OpenAIModel
}

// IsExempt reports whether a user is listed in EXEMPT_USER_IDS
func (c *UsageConfig) IsExempt(userID string) bool {
	for _, id := range c.ExemptUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
