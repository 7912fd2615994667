package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage nfigd connection profiles",
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a connection profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if addrFlag == "" {
			return fmt.Errorf("--addr is required")
		}
		path := profilesPath
		if path == "" {
			path = defaultProfilesPath()
		}
		pf, err := loadProfiles(path)
		if err != nil {
			return err
		}
		pf.Profiles[args[0]] = Profile{Addr: addrFlag, User: userFlag, Password: passwordFlag}
		if pf.Default == "" {
			pf.Default = args[0]
		}
		return saveProfiles(path, pf)
	},
}

var profileDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Set the default connection profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := profilesPath
		if path == "" {
			path = defaultProfilesPath()
		}
		pf, err := loadProfiles(path)
		if err != nil {
			return err
		}
		if _, ok := pf.Profiles[args[0]]; !ok {
			return fmt.Errorf("no such profile %q", args[0])
		}
		pf.Default = args[0]
		return saveProfiles(path, pf)
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured connection profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := profilesPath
		if path == "" {
			path = defaultProfilesPath()
		}
		pf, err := loadProfiles(path)
		if err != nil {
			return err
		}
		for name, p := range pf.Profiles {
			marker := "  "
			if name == pf.Default {
				marker = "* "
			}
			fmt.Printf("%s%s\t%s\t%s\n", marker, name, p.Addr, p.User)
		}
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileAddCmd, profileDefaultCmd, profileListCmd)
}
