// Package serve implements the long-running monitor command.
package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fraktlabs/fencewatch/internal/app"
	"github.com/fraktlabs/fencewatch/internal/buildinfo"
	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/logger"
	"github.com/fraktlabs/fencewatch/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor, the HTTP API and event publishing",
		Long:  "Start watching every monitored source and alert when a person leaves their fence. Runs until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, settings, info)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, info *buildinfo.Context) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Global().Module("main")
	log.Info("starting fencewatch",
		logger.String("version", info.Version()),
		logger.String("build_date", info.BuildDate()))

	if err := telemetry.Init(settings.Telemetry, info.Version()); err != nil {
		return err
	}
	defer telemetry.Flush(telemetryFlushTimeout)

	a, err := app.New(ctx, settings, info.Version())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Serve(ctx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", viper.GetString("webserver.listen"), "Listen address of the HTTP API")
	cmd.Flags().Bool("mqtt", viper.GetBool("mqtt.enabled"), "Publish events to MQTT")
	cmd.Flags().Bool("metrics", viper.GetBool("telemetry.metrics"), "Expose Prometheus metrics at /metrics")

	for key, flag := range map[string]string{
		"webserver.listen":  "listen",
		"mqtt.enabled":      "mqtt",
		"telemetry.metrics": "metrics",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}
