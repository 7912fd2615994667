package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List every app the server currently knows about",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		names, err := c.ListApps(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <app>",
	Short: "Print an app's current override snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		snap, err := c.GetSnapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(snap)
	},
}

var subAppsCmd = &cobra.Command{
	Use:   "subapps <app>",
	Short: "Print an app's published sub-app metadata as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		subApps, err := c.GetSubApps(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(subApps)
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata <app>",
	Short: "Print an app's published per-setting metadata as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		meta, err := c.GetMetadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(meta)
	},
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
