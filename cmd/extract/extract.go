// Package extract prints the fence rectangle of a segmentation mask.
package extract

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/conf"
)

// Command creates the extract command.
func Command() *cobra.Command {
	var threshold uint8

	cmd := &cobra.Command{
		Use:   "extract <mask.png>",
		Short: "Print the normalized bounding rectangle of a mask",
		Long:  "Print the rectangle enclosing the mask pixels whose red channel exceeds the threshold. Exits non-zero when the mask has no foreground.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rect, err := extractFile(args[0], threshold)
			if err != nil {
				return err
			}
			if err := json.NewEncoder(cmd.OutOrStdout()).Encode(rect); err != nil {
				return err
			}
			if !rect.Valid() {
				return fmt.Errorf("mask %s has no foreground above threshold %d", args[0], threshold)
			}
			return nil
		},
	}

	cmd.Flags().Uint8Var(&threshold, "threshold", conf.DefaultMaskThreshold, "Red channel cutoff for foreground pixels")
	return cmd
}

func extractFile(path string, threshold uint8) (boundary.Rect, error) {
	f, err := os.Open(path)
	if err != nil {
		return boundary.Rect{}, err
	}
	defer f.Close()
	return boundary.ExtractFrom(f, threshold)
}
