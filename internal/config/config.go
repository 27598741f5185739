package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// URL renders the connection string golang-migrate expects.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry_hours"`
}

// ReminderConfig carries the scheduling and delivery policy knobs.
type ReminderConfig struct {
	DefaultOffsets  []string      `yaml:"default_offsets"`
	DigestHorizon   time.Duration `yaml:"digest_horizon"`
	DigestLocalHour int           `yaml:"digest_local_hour"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffCap      time.Duration `yaml:"backoff_cap"`
	SkewTolerance   time.Duration `yaml:"skew_tolerance"`
	PastDueGrace    time.Duration `yaml:"past_due_grace"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	JWT       JWTConfig       `yaml:"jwt"`
	Reminder  ReminderConfig  `yaml:"reminder"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`
}

// WorkerEnv overrides config values from the environment for the worker
// binary, which typically runs without a config volume.
type WorkerEnv struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`
	SMTPHost    string `envconfig:"SMTP_HOST"`
	SMTPPort    int    `envconfig:"SMTP_PORT"`
	MetricsPort int    `envconfig:"METRICS_PORT"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	// Hour 0 is a valid setting (midnight); default only when absent.
	viper.SetDefault("reminder.digest_local_hour", 8)
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// LoadWorkerEnv parses environment overrides for the worker.
func LoadWorkerEnv() (*WorkerEnv, error) {
	var env WorkerEnv
	if err := envconfig.Process("tracker", &env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return &env, nil
}

func (c *Config) applyDefaults() {
	r := &c.Reminder
	if len(r.DefaultOffsets) == 0 {
		r.DefaultOffsets = []string{"24h", "1h"}
	}
	if r.DigestHorizon <= 0 {
		r.DigestHorizon = 7 * 24 * time.Hour
	}
	if r.DigestLocalHour < 0 || r.DigestLocalHour > 23 {
		r.DigestLocalHour = 8
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 5
	}
	if r.BackoffBase <= 0 {
		r.BackoffBase = 30 * time.Second
	}
	if r.BackoffCap <= 0 {
		r.BackoffCap = 30 * time.Minute
	}
	if r.SkewTolerance <= 0 {
		r.SkewTolerance = 5 * time.Second
	}
	if r.PastDueGrace <= 0 {
		r.PastDueGrace = 60 * time.Second
	}
	if r.DeliveryTimeout <= 0 {
		r.DeliveryTimeout = 30 * time.Second
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 5 * time.Second
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
}
