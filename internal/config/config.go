package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gemini   GeminiConfig
	Azure    AzureConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	GenerateTimeout time.Duration
	ImageTimeout    time.Duration
}

// AzureConfig holds Azure service configuration
type AzureConfig struct {
	Storage StorageConfig
}

// StorageConfig holds Azure Blob Storage configuration
type StorageConfig struct {
	AccountName     string
	AccountKey      string
	ReportContainer string
}

// SecurityConfig holds at-rest encryption configuration
type SecurityConfig struct {
	// ChatEncryptionKey is a hex-encoded 32-byte AES-256 key
	ChatEncryptionKey string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.connmaxlifetime", 5*time.Minute)

	// Gemini defaults
	v.SetDefault("gemini.baseurl", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-3-flash-preview")
	v.SetDefault("gemini.temperature", 0.4)
	v.SetDefault("gemini.maxoutputtokens", 2048)
	v.SetDefault("gemini.generatetimeout", 60*time.Second)
	v.SetDefault("gemini.imagetimeout", 30*time.Second)

	// Azure Storage defaults
	v.SetDefault("azure.storage.reportcontainer", "analysis-reports")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.environment", "ENV", "ENVIRONMENT")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Gemini
	v.BindEnv("gemini.apikey", "GEMINI_API_KEY")
	v.BindEnv("gemini.baseurl", "GEMINI_BASE_URL")
	v.BindEnv("gemini.model", "GEMINI_MODEL")

	// Azure Storage
	v.BindEnv("azure.storage.accountname", "AZURE_STORAGE_ACCOUNT_NAME")
	v.BindEnv("azure.storage.accountkey", "AZURE_STORAGE_ACCOUNT_KEY")
	v.BindEnv("azure.storage.reportcontainer", "AZURE_STORAGE_REPORT_CONTAINER")

	// Security
	v.BindEnv("security.chatencryptionkey", "CHAT_ENCRYPTION_KEY")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate required fields
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.apikey is required")
	}

	if c.Gemini.BaseURL == "" {
		return fmt.Errorf("gemini.baseurl is required")
	}

	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model is required")
	}

	if c.Security.ChatEncryptionKey != "" {
		key, err := hex.DecodeString(c.Security.ChatEncryptionKey)
		if err != nil {
			return fmt.Errorf("security.chatencryptionkey must be hex encoded: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("security.chatencryptionkey must decode to 32 bytes, got %d", len(key))
		}
	}

	return nil
}

// ChatEncryptionKeyBytes returns the decoded chat encryption key, or nil when
// at-rest encryption is not configured
func (c *Config) ChatEncryptionKeyBytes() []byte {
	if c.Security.ChatEncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.Security.ChatEncryptionKey)
	if err != nil {
		return nil
	}
	return key
}

// ReportStorageConfigured reports whether blob storage for report export is set up
func (c *Config) ReportStorageConfigured() bool {
	return c.Azure.Storage.AccountName != "" && c.Azure.Storage.AccountKey != ""
}
