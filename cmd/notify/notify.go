// Package notify sends a test dispatch of a stored alert.
package notify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fraktlabs/fencewatch/internal/app"
	"github.com/fraktlabs/fencewatch/internal/buildinfo"
	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/dispatch"
)

const defaultFence = "test"

// Command creates the notify command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var fenceName string

	cmd := &cobra.Command{
		Use:   "notify <alert>",
		Short: "Send an alert through its channel without a violation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings, info.Version())
			if err != nil {
				return err
			}
			defer a.Close()

			al, err := a.Alerts.Get(args[0])
			if err != nil {
				return err
			}
			a.Dispatcher.Dispatch(cmd.Context(), al, fenceName, dispatch.Evidence{})
			// delivery failures are logged by the dispatcher
			a.Dispatcher.Wait()
			fmt.Fprintf(cmd.OutOrStdout(), "dispatched %s via %s: %s\n", al.Name, al.Type, al.Render(fenceName))
			return nil
		},
	}

	cmd.Flags().StringVar(&fenceName, "fence", defaultFence, "Fence name substituted into the alert text")
	return cmd
}
