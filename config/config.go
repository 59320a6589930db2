package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Cloud   CloudConfig   `mapstructure:"cloud"`
	Mail    MailConfig    `mapstructure:"mail"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Storage StorageConfig `mapstructure:"storage"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

// CloudConfig represents the device registry API connection
type CloudConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// Request timeout in seconds, applied to every upstream call
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// MailConfig represents the outbound SMTP transport
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// MonitorConfig represents the polling loop settings
type MonitorConfig struct {
	// Poll interval in minutes between fleet sweeps
	IntervalMinutes int `mapstructure:"interval_minutes"`
	// Minimum minutes between two notifications for the same device
	CooldownMinutes int `mapstructure:"cooldown_minutes"`
	// Number of devices processed concurrently within one sweep
	BatchSize int `mapstructure:"batch_size"`
	// Optional JS hook that can suppress or annotate outgoing alerts
	FilterScriptPath string `mapstructure:"filter_script_path"`
	FilterScriptCode string `mapstructure:"filter_script_code"`
}

// MQTTConfig represents the optional alert mirror channel
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// StorageConfig represents the status-change audit trail backends
type StorageConfig struct {
	File     FileStorageConfig     `mapstructure:"file"`
	Database DatabaseStorageConfig `mapstructure:"database"`
}

// FileStorageConfig represents the file audit backend
type FileStorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DatabaseStorageConfig represents the database audit backend
type DatabaseStorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"`
	DSN     string `mapstructure:"dsn"`
}

// LoggerConfig represents the logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Console    bool   `mapstructure:"console"`
}

// ConfigChangeCallback is invoked when the config file changes on disk
type ConfigChangeCallback func(cfg *Config) error

// LoadConfig loads the configuration from the given path.
// Credentials may come from environment variables instead of the file;
// the environment wins and is read once at startup.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)

	return &config, nil
}

// applyEnvOverrides pulls secrets from the process environment
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLOUD_CLIENT_ID"); v != "" {
		cfg.Cloud.ClientID = v
	}
	if v := os.Getenv("CLOUD_CLIENT_SECRET"); v != "" {
		cfg.Cloud.ClientSecret = v
	}
	if v := os.Getenv("MAIL_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Monitor.IntervalMinutes <= 0 {
		cfg.Monitor.IntervalMinutes = 60
	}
	if cfg.Monitor.CooldownMinutes <= 0 {
		cfg.Monitor.CooldownMinutes = 60
	}
	if cfg.Monitor.BatchSize <= 0 {
		cfg.Monitor.BatchSize = 5
	}
	if cfg.Cloud.TimeoutSeconds <= 0 {
		cfg.Cloud.TimeoutSeconds = 10
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "alerts"
	}
}

// WatchConfig watches the config file and invokes the callback on change
func WatchConfig(configPath string, callback ConfigChangeCallback) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	viper.SetConfigFile(absPath)
	viper.WatchConfig()

	// Debounce so one editor save does not fire several reloads
	var lastChangeTime time.Time
	var debounceInterval = 2 * time.Second

	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write == fsnotify.Write {
			now := time.Now()
			if now.Sub(lastChangeTime) < debounceInterval {
				return
			}
			lastChangeTime = now

			log.Printf("config file changed: %s", e.Name)

			var newConfig Config
			if err := viper.Unmarshal(&newConfig); err != nil {
				log.Printf("failed to parse updated config: %v", err)
				return
			}
			applyEnvOverrides(&newConfig)
			applyDefaults(&newConfig)

			if err := callback(&newConfig); err != nil {
				log.Printf("failed to apply new config: %v", err)
				return
			}

			log.Println("config updated and applied")
		}
	})

	return nil
}
