// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultConfigPath is used when no path is passed to Load.
	DefaultConfigPath = "./config.yaml"
	// ConfigPathEnv overrides the config file location.
	ConfigPathEnv = "FORM_RELAY_CONFIG"
)

// Acknowledgement modes for the intake endpoint.
const (
	AckImmediate    = "immediate"
	AckFirstAttempt = "first-attempt"
)

type Server struct {
	ListenAddress string `yaml:"listenAddress" env:"LISTEN_ADDRESS"`
	// Port mirrors the PORT variable set by most PaaS runtimes. When set it wins
	// over ListenAddress.
	Port            string        `yaml:"port" env:"PORT"`
	TrustedProxies  []string      `yaml:"trustedProxies"` // IPs/CIDRs trusted for X-Forwarded-For
	AllowedOrigins  []string      `yaml:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	HealthPath      string        `yaml:"healthPath"`
}

type Mail struct {
	// Service is a well-known provider shortcut ("gmail", "outlook", "yahoo")
	// that fills Host and Port when they are empty.
	Service   string `yaml:"service" env:"EMAIL_SERVICE"`
	Host      string `yaml:"host" env:"EMAIL_HOST"`
	Port      int    `yaml:"port" env:"EMAIL_PORT"`
	User      string `yaml:"user" env:"EMAIL_USER"`
	Password  string `yaml:"password" env:"EMAIL_PASSWORD"`
	Recipient string `yaml:"recipient" env:"EMAIL_RECIPIENT"`
	// SenderAddress is the envelope sender. Providers that reject foreign From
	// addresses need it; when empty the submitter's address is used.
	SenderAddress      string `yaml:"senderAddress" env:"EMAIL_FROM"`
	Subject            string `yaml:"subject" env:"EMAIL_SUBJECT"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

type SMS struct {
	Enabled    bool          `yaml:"enabled" env:"SMS_ENABLED"`
	BaseURL    string        `yaml:"baseURL" env:"TWILIO_BASE_URL"`
	AccountSID string        `yaml:"accountSID" env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string        `yaml:"authToken" env:"TWILIO_AUTH_TOKEN"`
	From       string        `yaml:"from" env:"TWILIO_PHONE_NUMBER"`
	To         string        `yaml:"to" env:"MY_PHONE_NUMBER"`
	Timeout    time.Duration `yaml:"timeout"`
	// Rate and Burst throttle outgoing alerts (alerts per second).
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type RateLimit struct {
	Window          time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	Max             int           `yaml:"max" env:"RATE_LIMIT_MAX"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

type Delivery struct {
	AckMode    string        `yaml:"ackMode" env:"ACK_MODE"`
	MaxRetries int           `yaml:"maxRetries" env:"MAX_RETRIES"`
	Backoff    string        `yaml:"backoff"` // "random" or "exponential"
	MinDelay   time.Duration `yaml:"minDelay"`
	MaxDelay   time.Duration `yaml:"maxDelay"`
	Workers    int           `yaml:"workers"`
}

type Queue struct {
	Driver         string        `yaml:"driver" env:"QUEUE_DRIVER"` // "memory" or "redis"
	Size           int           `yaml:"size"`
	EnqueueTimeout time.Duration `yaml:"enqueueTimeout"`
	RedisAddr      string        `yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisPassword  string        `yaml:"redisPassword" env:"REDIS_PASSWORD"`
	RedisDB        int           `yaml:"redisDB" env:"REDIS_DB"`
	RedisKey       string        `yaml:"redisKey"`
}

type Fallback struct {
	// Driver is "sqlite" or "sqlserver". An empty driver disables the store.
	Driver string `yaml:"driver" env:"FALLBACK_DRIVER"`
	DSN    string `yaml:"dsn" env:"FALLBACK_DSN"`
	Table  string `yaml:"table"`
}

type Events struct {
	KafkaBrokers []string `yaml:"kafkaBrokers" env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string   `yaml:"kafkaTopic" env:"KAFKA_TOPIC"`
}

type Captcha struct {
	SecretKey string        `yaml:"secretKey" env:"CAPTCHA_SECRET_KEY"`
	VerifyURL string        `yaml:"verifyURL"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Liveness struct {
	Enabled  bool          `yaml:"enabled" env:"LIVENESS_ENABLED"`
	Schedule string        `yaml:"schedule"`
	URL      string        `yaml:"url" env:"LIVENESS_URL"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Logging struct {
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Mail      Mail      `yaml:"mail"`
	SMS       SMS       `yaml:"sms"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Delivery  Delivery  `yaml:"delivery"`
	Queue     Queue     `yaml:"queue"`
	Fallback  Fallback  `yaml:"fallback"`
	Events    Events    `yaml:"events"`
	Captcha   Captcha   `yaml:"captcha"`
	Liveness  Liveness  `yaml:"liveness"`
	Logging   Logging   `yaml:"logging"`
}

// Load reads the configuration file, applies environment overrides and defaults.
// The path resolution order is: explicit argument, FORM_RELAY_CONFIG, ./config.yaml.
// A missing file is only an error when the path was given explicitly; otherwise the
// service runs from environment variables alone.
func Load(configPath ...string) (Config, error) {
	var cfg Config

	// .env is optional and never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env file: %w", err)
	}

	path, explicit := resolvePath(configPath...)
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// env-only deployment
	default:
		return cfg, fmt.Errorf("trying to open form-relay config file %s: %w", path, err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("reading environment overrides: %w", err)
	}

	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func resolvePath(configPath ...string) (string, bool) {
	if len(configPath) > 0 && configPath[0] != "" {
		return configPath[0], true
	}
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p, true
	}
	return DefaultConfigPath, false
}
