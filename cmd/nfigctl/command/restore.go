package command

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getnfig/nfig/values"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <app> <snapshot.json>",
	Short: "Replace an app's entire override set from a JSON snapshot file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading snapshot file: %w", err)
		}
		var snapshot values.OverridesSnapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return fmt.Errorf("parsing snapshot file: %w", err)
		}

		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		snap, err := c.RestoreSnapshot(cmd.Context(), args[0], snapshot)
		if err != nil {
			return err
		}
		fmt.Printf("ok, commit now %s\n", snap.Commit)
		return nil
	},
}
