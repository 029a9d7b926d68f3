// Package once runs a single monitor pass.
package once

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/fraktlabs/fencewatch/internal/app"
	"github.com/fraktlabs/fencewatch/internal/buildinfo"
	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/source"
)

// Command creates the once command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run one capture, inference and react pass and print it as JSON",
		Long:  "Run a single pass over the monitored sources restored from the session store. Violations dispatch their alerts as in serve.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := app.New(ctx, settings, info.Version())
			if err != nil {
				return err
			}
			// Close waits for speech started by the pass
			defer a.Close()

			if len(a.Sources.List(source.Monitoring())) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no monitored sources")
			}

			report := a.Monitor.RunPass(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
