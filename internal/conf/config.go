// config.go: settings struct for fencewatch and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fraktlabs/fencewatch/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// LogFileSettings controls the rotating JSON log file.
type LogFileSettings struct {
	Enabled    bool   // write JSON logs to Path
	Path       string // log file path
	MaxSize    int    // megabytes before rotation
	MaxBackups int    // rotated files to keep
	MaxAge     int    // days to keep rotated files
	Compress   bool   // gzip rotated files
}

// LogSettings contains logging settings.
type LogSettings struct {
	Level    string            // default level: trace, debug, info, warn, error
	Timezone string            // Local, UTC or IANA name
	File     LogFileSettings   // rotating file output
	Modules  map[string]string // per-module level overrides
}

// Resolution is a capture width and height in pixels.
type Resolution struct {
	Width  int
	Height int
}

// MonitorSettings controls the pipeline scheduler.
type MonitorSettings struct {
	IdleInterval  time.Duration // re-check interval while no source is monitored
	FrameInterval time.Duration // pause between passes
	Capture       Resolution    // frame size sent to pose inference
	Evidence      Resolution    // frame size attached to alerts
	DefaultAlert  string        // alert used when a source has none assigned
	Threshold     int           // boundary extractor foreground threshold
}

// CaptureSettings controls the ffmpeg frame grabber.
type CaptureSettings struct {
	FfmpegPath    string        // path to ffmpeg binary
	Timeout       time.Duration // per-frame capture timeout
	InputFormat   string        // ffmpeg input format for device paths, e.g. v4l2
	RTSPTransport string        // tcp or udp
}

// VisionSettings points at the remote pose/segmentation service.
type VisionSettings struct {
	URL     string        // base URL, e.g. http://localhost:5000
	Timeout time.Duration // per-request timeout
}

// SpeechSettings controls the local voice channel.
type SpeechSettings struct {
	Command  string        // text-to-speech binary
	Args     []string      // extra arguments
	Rate     float64       // speaking rate multiplier
	Cooldown time.Duration // guard release delay after speech ends
}

// RelaySettings configures an HTTP alert relay.
type RelaySettings struct {
	URL     string        // relay base URL
	Timeout time.Duration // per-request timeout
}

// DispatchSettings groups alert channel settings.
type DispatchSettings struct {
	Speech    SpeechSettings
	Mail      RelaySettings // Apps Script style mail relay
	Messaging RelaySettings // Telegram bot API
}

// SQLiteSettings contains sqlite database settings.
type SQLiteSettings struct {
	Path string // database file path
}

// MySQLSettings contains mysql database settings.
type MySQLSettings struct {
	Host         string
	Port         int
	Username     string
	Password     string // may reference ${ENV}
	PasswordFile string // read instead of Password when set
	Database     string
}

// PersistenceSettings selects where fences and alerts are stored.
type PersistenceSettings struct {
	Backend string // sqlite, mysql or remote
	SQLite  SQLiteSettings
	MySQL   MySQLSettings
	Remote  RelaySettings // another fencewatch instance
}

// MemorySessionSettings configures the in-process session store.
type MemorySessionSettings struct {
	TTL  time.Duration // snapshot lifetime
	File string        // optional file the snapshot survives restarts in
}

// RedisSettings configures the redis session store.
type RedisSettings struct {
	Address      string
	Password     string // may reference ${ENV}
	PasswordFile string // read instead of Password when set
	DB           int
	TTL          time.Duration
}

// SessionSettings selects the registry snapshot store.
type SessionSettings struct {
	Backend string // memory or redis
	Memory  MemorySessionSettings
	Redis   RedisSettings
}

// MQTTSettings contains settings for MQTT event publishing.
type MQTTSettings struct {
	Enabled      bool   // true to publish events to MQTT
	Broker       string // tcp://host:port
	Topic        string // topic prefix
	Username     string
	Password     string // may reference ${ENV}
	PasswordFile string // read instead of Password when set
	ClientID     string
	QoS          byte
	Retain       bool
}

// WebServerSettings contains settings for the control API.
type WebServerSettings struct {
	Enabled        bool
	Listen         string   // address and port
	AllowedOrigins []string // CORS origins for the control UI; "*" allows any
}

// TelemetrySettings contains settings for error reporting and metrics.
type TelemetrySettings struct {
	Enabled bool   // report errors to Sentry
	DSN     string // Sentry DSN, may reference ${ENV}
	Metrics bool   // expose /metrics
}

// Settings contains all configuration options for fencewatch.
type Settings struct {
	Debug bool

	Log         LogSettings
	Monitor     MonitorSettings
	Capture     CaptureSettings
	Vision      VisionSettings
	Dispatch    DispatchSettings
	Persistence PersistenceSettings
	Session     SessionSettings
	MQTT        MQTTSettings
	WebServer   WebServerSettings
	Telemetry   TelemetrySettings
}

// LoggingConfig converts log settings into the central logger configuration.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Log.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}
	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     s.Log.Timezone,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
		ModuleLevels: s.Log.Modules,
	}
	if s.Log.File.Enabled {
		cfg.FileOutput = &logger.FileOutput{
			Enabled:    true,
			Path:       s.Log.File.Path,
			Level:      level,
			MaxSize:    s.Log.File.MaxSize,
			MaxAge:     s.Log.File.MaxAge,
			MaxBackups: s.Log.File.MaxBackups,
			Compress:   s.Log.File.Compress,
		}
	}
	return cfg
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables.
// An explicit configFile overrides the search path.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and env bindings, then reads the config file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		return viper.ReadInConfig()
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default config to dir and reads it back.
func createDefaultConfig(dir string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically via a temp file and rename.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
