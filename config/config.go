package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKHUB_SERVER_PORT.
const EnvPrefix = "TASKHUB"

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Firebase   FirebaseConfig
	NATS       NATSConfig
	Reminder   ReminderConfig
	WebSocket  WebSocketConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT"`
	Env          string        `envconfig:"ENV"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT"`
	RateLimit    int           `envconfig:"RATE_LIMIT"`
}

type LogConfig struct {
	Level string `envconfig:"LEVEL"`
}

type DatabaseConfig struct {
	DSN             string        `envconfig:"DSN"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME"`
}

type JWTConfig struct {
	AccessSecret string        `envconfig:"ACCESS_SECRET"`
	AccessExpiry time.Duration `envconfig:"ACCESS_EXPIRY"`
	Issuer       string        `envconfig:"ISSUER"`
}

type CloudinaryConfig struct {
	CloudName string `envconfig:"CLOUD_NAME"`
	APIKey    string `envconfig:"API_KEY"`
	APISecret string `envconfig:"API_SECRET"`
	Folder    string `envconfig:"FOLDER"`
}

// Enabled reports whether attachment uploads can be served.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// FirebaseConfig enables FCM pushes to offline recipients when a service account is present.
type FirebaseConfig struct {
	ServiceAccountPath string `envconfig:"SERVICE_ACCOUNT_PATH"`
}

type NATSConfig struct {
	URL            string        `envconfig:"URL"`
	Subject        string        `envconfig:"SUBJECT"`
	Stream         string        `envconfig:"STREAM"`
	Queue          string        `envconfig:"QUEUE"`
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT"`
}

// Enabled reports whether domain events should be consumed from NATS.
func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

// MaxReminderWindow bounds the match window around each deadline threshold.
// The closest thresholds are 3h and 1h apart by 2h, so a window of an hour or
// more would let one tick fire both.
const MaxReminderWindow = time.Hour

type ReminderConfig struct {
	Enabled  bool          `envconfig:"ENABLED"`
	Interval time.Duration `envconfig:"INTERVAL"`
	Window   time.Duration `envconfig:"WINDOW"`
}

type WebSocketConfig struct {
	SendBuffer int           `envconfig:"SEND_BUFFER"`
	WriteWait  time.Duration `envconfig:"WRITE_WAIT"`
	PongWait   time.Duration `envconfig:"PONG_WAIT"`
}

// PingPeriod is how often the server pings; it must stay below PongWait.
func (c WebSocketConfig) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Defaults returns the development configuration without environment overrides.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8099",
			Env:          "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimit:    100,
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			DSN:             "taskhub:taskhub@tcp(localhost:3306)/taskhub?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: "change-me-in-production",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "taskhub",
		},
		Cloudinary: CloudinaryConfig{Folder: "taskhub/chat"},
		NATS: NATSConfig{
			Subject:        "taskhub.events.>",
			Stream:         "TASKHUB_EVENTS",
			Queue:          "taskhub-realtime",
			ConnectTimeout: 30 * time.Second,
		},
		Reminder: ReminderConfig{
			Enabled:  true,
			Interval: 15 * time.Minute,
			Window:   15 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			SendBuffer: 256,
			WriteWait:  10 * time.Second,
			PongWait:   60 * time.Second,
		},
	}
}

// Load returns Defaults overlaid with any TASKHUB_* environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.WebSocket.PongWait <= 0 {
		return nil, fmt.Errorf("loading config: websocket pong wait must be positive")
	}
	if cfg.Reminder.Interval <= 0 {
		return nil, fmt.Errorf("loading config: reminder interval must be positive")
	}
	if cfg.Reminder.Window <= 0 || cfg.Reminder.Window >= MaxReminderWindow {
		return nil, fmt.Errorf("loading config: reminder window must be positive and under %s, got %s", MaxReminderWindow, cfg.Reminder.Window)
	}
	return cfg, nil
}
