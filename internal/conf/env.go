// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "FENCEWATCH"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "FENCEWATCH_DEBUG", validateEnvBool},
		{"log.level", "FENCEWATCH_LOG_LEVEL", validateEnvLevel},

		{"monitor.defaultalert", "FENCEWATCH_DEFAULT_ALERT", nil},
		{"monitor.frameinterval", "FENCEWATCH_FRAME_INTERVAL", validateEnvDuration},

		{"vision.url", "FENCEWATCH_VISION_URL", validateEnvURL},
		{"vision.timeout", "FENCEWATCH_VISION_TIMEOUT", validateEnvDuration},

		{"persistence.backend", "FENCEWATCH_PERSISTENCE_BACKEND", validateEnvBackend},
		{"persistence.sqlite.path", "FENCEWATCH_SQLITE_PATH", nil},
		{"persistence.remote.url", "FENCEWATCH_REMOTE_URL", validateEnvURL},

		{"session.backend", "FENCEWATCH_SESSION_BACKEND", validateEnvSessionBackend},
		{"session.redis.address", "FENCEWATCH_REDIS_ADDRESS", nil},
		{"session.redis.password", "FENCEWATCH_REDIS_PASSWORD", nil},

		{"mqtt.enabled", "FENCEWATCH_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "FENCEWATCH_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "FENCEWATCH_MQTT_USERNAME", nil},
		{"mqtt.password", "FENCEWATCH_MQTT_PASSWORD", nil},

		{"webserver.listen", "FENCEWATCH_LISTEN", nil},
		{"telemetry.dsn", "FENCEWATCH_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("must be one of trace, debug, info, warn, error")
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("must be a duration such as 500ms or 10s")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

func validateEnvBackend(value string) error {
	switch value {
	case BackendSQLite, BackendMySQL, BackendRemote:
		return nil
	}
	return fmt.Errorf("must be sqlite, mysql or remote")
}

func validateEnvSessionBackend(value string) error {
	switch value {
	case SessionMemory, SessionRedis:
		return nil
	}
	return fmt.Errorf("must be memory or redis")
}

// dotEnvFile is read from the working directory when present. Variables
// already set in the environment win.
const dotEnvFile = ".env"

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	if _, err := os.Stat(dotEnvFile); err == nil {
		if err := godotenv.Load(dotEnvFile); err != nil {
			return fmt.Errorf("error loading %s: %w", dotEnvFile, err)
		}
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	return bindEnvVars()
}
