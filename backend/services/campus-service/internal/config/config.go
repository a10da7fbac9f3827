package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "campuswallet/backend/libs/config"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"CAMPUS_HTTP_PORT"`
}

// StorageConfig selects the store implementation.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"CAMPUS_STORAGE_DRIVER"`
}

// DatabaseConfig holds postgres settings.
type DatabaseConfig struct {
	DSN     string `yaml:"dsn" env:"CAMPUS_POSTGRES_DSN"`
	Migrate bool   `yaml:"migrate" env:"CAMPUS_POSTGRES_MIGRATE"`
}

// RedisConfig holds the scan cache and event bus settings. An empty address disables redis.
type RedisConfig struct {
	Addr           string `yaml:"addr" env:"CAMPUS_REDIS_ADDR"`
	Password       string `yaml:"password" env:"CAMPUS_REDIS_PASSWORD"`
	DB             int    `yaml:"db" env:"CAMPUS_REDIS_DB"`
	ScanTTLSeconds int    `yaml:"scanTTLSeconds" env:"CAMPUS_REDIS_SCAN_TTL"`
	Channel        string `yaml:"channel" env:"CAMPUS_REDIS_CHANNEL"`
	KeyPrefix      string `yaml:"keyPrefix" env:"CAMPUS_REDIS_KEY_PREFIX"`
}

// JWTConfig holds token settings.
type JWTConfig struct {
	Secret            string `yaml:"secret" env:"CAMPUS_JWT_SECRET"`
	ExpirationMinutes int    `yaml:"expirationMinutes" env:"CAMPUS_JWT_EXPIRATION_MINUTES"`
}

// AdminConfig is the bootstrap operator account.
type AdminConfig struct {
	Email    string `yaml:"email" env:"CAMPUS_ADMIN_EMAIL"`
	Password string `yaml:"password" env:"CAMPUS_ADMIN_PASSWORD"`
}

// PasswordConfig tunes password hashing. Zero selects the bcrypt default.
type PasswordConfig struct {
	BcryptCost int `yaml:"bcryptCost" env:"CAMPUS_BCRYPT_COST"`
}

// DeviceConfig authenticates RFID readers.
type DeviceConfig struct {
	APIKey string `yaml:"apiKey" env:"CAMPUS_DEVICE_API_KEY"`
}

// RazorpayConfig holds payment gateway credentials.
type RazorpayConfig struct {
	KeyID         string `yaml:"keyId" env:"CAMPUS_RAZORPAY_KEY_ID"`
	KeySecret     string `yaml:"keySecret" env:"CAMPUS_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `yaml:"webhookSecret" env:"CAMPUS_RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string `yaml:"baseUrl" env:"CAMPUS_RAZORPAY_BASE_URL"`
	Currency      string `yaml:"currency" env:"CAMPUS_RAZORPAY_CURRENCY"`
}

// NotifyConfig points at the external notification bridge.
type NotifyConfig struct {
	URL    string   `yaml:"url" env:"CAMPUS_NOTIFY_URL"`
	Events []string `yaml:"events" env:"CAMPUS_NOTIFY_EVENTS"`
}

// ReconcileConfig schedules the ledger reconciler.
type ReconcileConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds" env:"CAMPUS_RECONCILE_INTERVAL"`
}

// WSConfig tunes the event websocket.
type WSConfig struct {
	PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"CAMPUS_WS_PING_INTERVAL"`
	WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"CAMPUS_WS_WRITE_TIMEOUT"`
}

// Config defines campus service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Admin     AdminConfig     `yaml:"admin"`
	Password  PasswordConfig  `yaml:"password"`
	Device    DeviceConfig    `yaml:"device"`
	Razorpay  RazorpayConfig  `yaml:"razorpay"`
	Notify    NotifyConfig    `yaml:"notify"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	WS        WSConfig        `yaml:"ws"`
}

// Default returns the configuration used before files and env are applied.
func Default() *Config {
	return &Config{
		HTTP:     HTTPConfig{Port: "8080"},
		Storage:  StorageConfig{Driver: DriverPostgres},
		Database: DatabaseConfig{Migrate: true},
		Redis: RedisConfig{
			ScanTTLSeconds: 120,
			Channel:        "campus:events",
			KeyPrefix:      "campus",
		},
		JWT:       JWTConfig{ExpirationMinutes: 720},
		Razorpay:  RazorpayConfig{Currency: "INR"},
		Notify:    NotifyConfig{Events: []string{"item:new"}},
		Reconcile: ReconcileConfig{IntervalSeconds: 900},
		WS:        WSConfig{PingIntervalSeconds: 30, WriteTimeoutSeconds: 10},
	}
}

// Load reads configuration via the shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret required")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// TokenTTL returns the JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpirationMinutes) * time.Minute
}

// ScanTTL returns how long a card scan stays current.
func (c *Config) ScanTTL() time.Duration {
	if c.Redis.ScanTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Redis.ScanTTLSeconds) * time.Second
}

// ReconcileInterval returns the reconciler period; zero disables it.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconcile.IntervalSeconds) * time.Second
}

// PingInterval returns the websocket keepalive period.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.WS.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WS.WriteTimeoutSeconds) * time.Second
}
