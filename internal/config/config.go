package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Email     EmailConfig     `mapstructure:"email"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Timer     TimerConfig     `mapstructure:"timer"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port    string        `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type EmailConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	FromName    string `mapstructure:"from_name"`
	FromAddress string `mapstructure:"from_address"`
}

type DirectoryConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

type ProcessorConfig struct {
	BatchSize          int  `mapstructure:"batch_size"`
	RespectPreferences bool `mapstructure:"respect_preferences"`
}

type TimerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type WebhookConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RabbitMQConfig is optional; an empty URL disables sent-event publishing.
type RabbitMQConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// RedisConfig is optional; an empty URL disables the delivery-status trail.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Env string `mapstructure:"env"`
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Set defaults. Every key needs one so AutomaticEnv can resolve it during Unmarshal.
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", "10s")
	v.SetDefault("database.url", "")
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.base_url", "https://api.sendgrid.com/v3")
	v.SetDefault("email.from_name", "Device Alerts")
	v.SetDefault("email.from_address", "")
	v.SetDefault("directory.secret_key", "")
	v.SetDefault("directory.base_url", "https://api.clerk.com/v1")
	v.SetDefault("processor.batch_size", 50)
	v.SetDefault("processor.respect_preferences", false)
	v.SetDefault("timer.enabled", true)
	v.SetDefault("timer.interval", "1m")
	v.SetDefault("webhook.jwt_secret", "")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "notifications.events")
	v.SetDefault("rabbitmq.routing_key", "notification.sent")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("log.env", "production")

	// Read from environment: DATABASE_URL, EMAIL_API_KEY, DIRECTORY_SECRET_KEY ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports the first required setting that is missing.
func (c *Config) Validate() error {
	switch {
	case c.Database.URL == "":
		return errors.New("database.url is required")
	case c.Email.APIKey == "":
		return errors.New("email.api_key is required")
	case c.Email.FromAddress == "":
		return errors.New("email.from_address is required")
	case c.Directory.SecretKey == "":
		return errors.New("directory.secret_key is required")
	case c.Processor.BatchSize <= 0:
		return errors.New("processor.batch_size must be positive")
	case c.Timer.Enabled && c.Timer.Interval <= 0:
		return errors.New("timer.interval must be positive")
	}
	return nil
}
