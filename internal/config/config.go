package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	AI       AIConfig       `json:"ai"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

type AIConfig struct {
	APIKey                 string        `json:"api_key,omitempty"`
	BaseURL                string        `json:"base_url"`
	Model                  string        `json:"model"`
	MaxRetries             int           `json:"max_retries"`
	RequestTimeout         time.Duration `json:"request_timeout"`
	MaxToolRounds          int           `json:"max_tool_rounds"`
	LegacyStatusMode       bool          `json:"legacy_status_mode"`
	SearchingFirstResponse bool          `json:"searching_first_response"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".tripwise"))
	}

	// Defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "tripwise")
	viper.SetDefault("database.database", "tripwise")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("ai.model", "arcee-ai/trinity-large-preview:free")
	viper.SetDefault("ai.max_retries", 3)
	viper.SetDefault("ai.request_timeout", 30*time.Second)
	viper.SetDefault("ai.max_tool_rounds", 4)
	viper.SetDefault("ai.legacy_status_mode", true)
	viper.SetDefault("ai.searching_first_response", false)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No config file: defaults plus env overrides.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("TRIPWISE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("TRIPWISE_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if model := os.Getenv("TRIPWISE_AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}

	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}
}
