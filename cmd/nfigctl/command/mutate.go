package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getnfig/nfig/cmd/nfigctl/client"
)

var (
	setSubApp   int
	setHasSub   bool
	setDC       int32
	setIfMatch  string
)

var setCmd = &cobra.Command{
	Use:   "set <app> <setting> <value>",
	Short: "Write one override",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		req := client.SetOverrideRequest{
			Name:           args[1],
			Value:          args[2],
			DataCenter:     setDC,
			ExpectedCommit: setIfMatch,
		}
		if setHasSub {
			req.SubAppID = &setSubApp
		}
		snap, err := c.SetOverride(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		fmt.Printf("ok, commit now %s\n", snap.Commit)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <app> <setting>",
	Short: "Remove one override",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		req := client.ClearOverrideRequest{
			Name:           args[1],
			DataCenter:     setDC,
			ExpectedCommit: setIfMatch,
		}
		if setHasSub {
			req.SubAppID = &setSubApp
		}
		snap, err := c.ClearOverride(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		fmt.Printf("ok, commit now %s\n", snap.Commit)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{setCmd, clearCmd} {
		cmd.Flags().IntVar(&setSubApp, "sub-app", 0, "sub-app ID")
		cmd.Flags().BoolVar(&setHasSub, "has-sub-app", false, "scope to --sub-app instead of the root app")
		cmd.Flags().Int32Var(&setDC, "dc", 0, "data center (0 = any)")
		cmd.Flags().StringVar(&setIfMatch, "if-match", "", "compare-and-set against this commit")
	}
}
