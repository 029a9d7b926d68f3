// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Capture and evidence sizes used by the pipeline.
const (
	DefaultCaptureWidth   = 640
	DefaultCaptureHeight  = 480
	DefaultEvidenceWidth  = 1280
	DefaultEvidenceHeight = 720
	DefaultMaskThreshold  = 20
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.timezone", "Local")
	viper.SetDefault("log.file.enabled", false)
	viper.SetDefault("log.file.path", "logs/fencewatch.log")
	viper.SetDefault("log.file.maxsize", 100)
	viper.SetDefault("log.file.maxbackups", 10)
	viper.SetDefault("log.file.maxage", 30)
	viper.SetDefault("log.file.compress", false)

	viper.SetDefault("monitor.idleinterval", 100*time.Millisecond)
	viper.SetDefault("monitor.frameinterval", 16*time.Millisecond)
	viper.SetDefault("monitor.capture.width", DefaultCaptureWidth)
	viper.SetDefault("monitor.capture.height", DefaultCaptureHeight)
	viper.SetDefault("monitor.evidence.width", DefaultEvidenceWidth)
	viper.SetDefault("monitor.evidence.height", DefaultEvidenceHeight)
	viper.SetDefault("monitor.defaultalert", "")
	viper.SetDefault("monitor.threshold", DefaultMaskThreshold)

	viper.SetDefault("capture.ffmpegpath", "ffmpeg")
	viper.SetDefault("capture.timeout", 5*time.Second)
	viper.SetDefault("capture.inputformat", "v4l2")
	viper.SetDefault("capture.rtsptransport", "tcp")

	viper.SetDefault("vision.url", "http://localhost:5000")
	viper.SetDefault("vision.timeout", 10*time.Second)

	viper.SetDefault("dispatch.speech.command", "espeak-ng")
	viper.SetDefault("dispatch.speech.args", []string{})
	viper.SetDefault("dispatch.speech.rate", 1.1)
	viper.SetDefault("dispatch.speech.cooldown", 1500*time.Millisecond)
	viper.SetDefault("dispatch.mail.url", "https://script.google.com/macros/s")
	viper.SetDefault("dispatch.mail.timeout", 15*time.Second)
	viper.SetDefault("dispatch.messaging.url", "https://api.telegram.org")
	viper.SetDefault("dispatch.messaging.timeout", 15*time.Second)

	viper.SetDefault("persistence.backend", "sqlite")
	viper.SetDefault("persistence.sqlite.path", "data/fencewatch.db")
	viper.SetDefault("persistence.mysql.host", "localhost")
	viper.SetDefault("persistence.mysql.port", 3306)
	viper.SetDefault("persistence.mysql.database", "fencewatch")
	viper.SetDefault("persistence.remote.url", "")
	viper.SetDefault("persistence.remote.timeout", 10*time.Second)

	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.memory.ttl", 12*time.Hour)
	viper.SetDefault("session.memory.file", "")
	viper.SetDefault("session.redis.address", "localhost:6379")
	viper.SetDefault("session.redis.db", 0)
	viper.SetDefault("session.redis.ttl", 12*time.Hour)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "fencewatch")
	viper.SetDefault("mqtt.clientid", "fencewatch")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.allowedorigins", []string{"*"})

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.metrics", true)
}
