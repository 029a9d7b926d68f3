package conf

import (
	"fmt"

	"github.com/fraktlabs/fencewatch/internal/secrets"
)

// resolveSecrets replaces credential settings with their resolved values.
func resolveSecrets(s *Settings) error {
	fields := []struct {
		name  string
		file  string
		value *string
	}{
		{"persistence.mysql.password", s.Persistence.MySQL.PasswordFile, &s.Persistence.MySQL.Password},
		{"session.redis.password", s.Session.Redis.PasswordFile, &s.Session.Redis.Password},
		{"mqtt.password", s.MQTT.PasswordFile, &s.MQTT.Password},
		{"telemetry.dsn", "", &s.Telemetry.DSN},
	}
	for _, f := range fields {
		resolved, err := secrets.Resolve(f.file, *f.value)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = resolved
	}
	return nil
}
