package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Generation GenerationConfig `mapstructure:"generation"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port" validate:"min=1,max=65535"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver is one of mysql, sqlite or memory.
	Driver          string            `mapstructure:"driver" validate:"oneof=mysql sqlite memory"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds" validate:"min=0"`
	// Path is the database file for the sqlite driver.
	Path string `mapstructure:"path"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model" validate:"required"`
	BaseURL     string  `mapstructure:"base_url" validate:"required,url"`
	Temperature float64 `mapstructure:"temperature" validate:"min=0,max=2"`
}

type GenerationConfig struct {
	// Provider selects the generator: openai, or fake for local development.
	Provider string        `mapstructure:"provider" validate:"oneof=openai fake"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// RetryAttempts is the number of extra attempts after a transport failure. Zero disables retries.
	RetryAttempts   uint          `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" validate:"min=0"`
	StrictQuestions bool          `mapstructure:"strict_questions"`
}

type AuthConfig struct {
	SecretToken string `mapstructure:"secret_token"`
}

type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=memory valkey"`
	Limit         int           `mapstructure:"limit" validate:"min=1"`
	Window        time.Duration `mapstructure:"window" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

type ValkeyConfig struct {
	Address   string `mapstructure:"address" validate:"omitempty,hostname_port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"min=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/surveygen")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "surveys")
	v.SetDefault("database.username", "survey")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.path", "surveys.db")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("generation.provider", "openai")
	v.SetDefault("generation.timeout", 30*time.Second)
	v.SetDefault("generation.retry_attempts", 0)
	v.SetDefault("generation.retry_delay", 500*time.Millisecond)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.limit", 3)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.sweep_interval", 5*time.Minute)
	v.SetDefault("valkey.key_prefix", "surveygen")

	// Secrets come from the environment only, never from the config file
	bindings := map[string]string{
		"openai.api_key":    "OPENAI_API_KEY",
		"openai.model":      "OPENAI_MODEL",
		"auth.secret_token": "SECRET_TOKEN",
		"database.password": "DB_PASSWORD",
		"valkey.password":   "VALKEY_PASSWORD",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}
	if cfg.RateLimit.Backend == "valkey" && cfg.Valkey.Address == "" {
		return nil, fmt.Errorf("invalid configuration: valkey.address is required when rate_limit.backend is valkey")
	}

	return &cfg, nil
}
