// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// Persistence and session backend names.
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendRemote = "remote"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateMonitorSettings,
		validateVisionSettings,
		validatePersistenceSettings,
		validateSessionSettings,
		validateMQTTSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMonitorSettings(s *Settings) error {
	m := &s.Monitor
	if m.Capture.Width <= 0 || m.Capture.Height <= 0 {
		return fmt.Errorf("monitor.capture resolution must be positive")
	}
	if m.Evidence.Width <= 0 || m.Evidence.Height <= 0 {
		return fmt.Errorf("monitor.evidence resolution must be positive")
	}
	if m.IdleInterval <= 0 {
		return fmt.Errorf("monitor.idleinterval must be positive")
	}
	if m.FrameInterval < 0 {
		return fmt.Errorf("monitor.frameinterval cannot be negative")
	}
	if m.Threshold < 0 || m.Threshold > 255 {
		return fmt.Errorf("monitor.threshold must be between 0 and 255")
	}
	return nil
}

func validateVisionSettings(s *Settings) error {
	if err := validateHTTPURL(s.Vision.URL); err != nil {
		return fmt.Errorf("vision.url: %w", err)
	}
	return nil
}

func validatePersistenceSettings(s *Settings) error {
	p := &s.Persistence
	switch p.Backend {
	case BackendSQLite:
		if p.SQLite.Path == "" {
			return fmt.Errorf("persistence.sqlite.path is required")
		}
	case BackendMySQL:
		if p.MySQL.Host == "" || p.MySQL.Database == "" {
			return fmt.Errorf("persistence.mysql host and database are required")
		}
	case BackendRemote:
		if err := validateHTTPURL(p.Remote.URL); err != nil {
			return fmt.Errorf("persistence.remote.url: %w", err)
		}
	default:
		return fmt.Errorf("persistence.backend %q is not one of sqlite, mysql, remote", p.Backend)
	}
	return nil
}

func validateSessionSettings(s *Settings) error {
	switch s.Session.Backend {
	case SessionMemory:
		return nil
	case SessionRedis:
		if s.Session.Redis.Address == "" {
			return fmt.Errorf("session.redis.address is required")
		}
		return nil
	default:
		return fmt.Errorf("session.backend %q is not one of memory, redis", s.Session.Backend)
	}
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	if s.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if s.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
	}
	if s.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
