package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fraktlabs/fencewatch/cmd/extract"
	"github.com/fraktlabs/fencewatch/cmd/notify"
	"github.com/fraktlabs/fencewatch/cmd/once"
	"github.com/fraktlabs/fencewatch/cmd/serve"
	"github.com/fraktlabs/fencewatch/internal/buildinfo"
	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand that needs configuration runs.
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "fencewatch",
		Short:        "Camera fence violation monitor",
		Version:      info.String(),
		SilenceUsage: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	extractCmd := extract.Command()
	rootCmd.AddCommand(
		serve.Command(settings, info),
		once.Command(settings, info),
		notify.Command(settings, info),
		extractCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// extract works on a file alone and must not create a default config
		if cmd.Name() == extractCmd.Name() {
			return nil
		}
		return initialize(configFile, settings)
	}

	return rootCmd
}

// initialize loads settings and installs the central logger.
func initialize(configFile string, settings *conf.Settings) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(settings.LoggingConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVar(configFile, "config", "", "Config file (default: ./config.yaml, ~/.config/fencewatch, /etc/fencewatch)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
