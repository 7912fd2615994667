// Package command provides nfigctl's root and sub-commands: one root
// command plus sub-commands grouped by the resource they act on.
//
//	nfigctl apps [-p profile]
//	nfigctl snapshot <app> [-p profile]
//	nfigctl subapps <app> [-p profile]
//	nfigctl metadata <app> [-p profile]
//	nfigctl set <app> <setting> <value> [--sub-app N] [--dc N] [--if-match commit]
//	nfigctl clear <app> <setting> [--sub-app N] [--dc N] [--if-match commit]
//	nfigctl restore <app> <snapshot.json>
//	nfigctl profile add <name> --addr URL --user U --password P
//	nfigctl profile default <name>
package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/getnfig/nfig/cmd/nfigctl/client"
)

var (
	profilesPath string
	profileName  string
	addrFlag     string
	userFlag     string
	passwordFlag string
)

var rootCmd = &cobra.Command{
	Use:   "nfigctl",
	Short: "Command-line admin client for a running nfigd server",
	Long: `nfigctl is the operator CLI for nfigd: it reads and writes
overrides, inspects sub-app and setting metadata, and restores whole
snapshots against a running nfigd instance's HTTP admin API.`,
}

// Execute runs rootCmd and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profilesPath, "config", "c", "", "profiles file path (default ~/.config/nfigctl/profiles.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "connection profile name")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "nfigd base URL, overrides the profile")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "admin user, overrides the profile")
	rootCmd.PersistentFlags().StringVar(&passwordFlag, "password", "", "admin password, overrides the profile")

	rootCmd.AddCommand(appsCmd, snapshotCmd, subAppsCmd, metadataCmd, setCmd, clearCmd, restoreCmd, profileCmd)
}

// newClient resolves the active profile (flags override the named or
// default profile) and authenticates against it.
func newClient(ctx context.Context) (*client.Client, error) {
	path := profilesPath
	if path == "" {
		path = defaultProfilesPath()
	}
	pf, err := loadProfiles(path)
	if err != nil {
		return nil, err
	}

	profile, resolveErr := pf.resolve(profileName)
	if resolveErr != nil && addrFlag == "" {
		return nil, resolveErr
	}

	addr, user, password := profile.Addr, profile.User, profile.Password
	if addrFlag != "" {
		addr = addrFlag
	}
	if userFlag != "" {
		user = userFlag
	}
	if passwordFlag != "" {
		password = passwordFlag
	}
	if addr == "" {
		return nil, fmt.Errorf("no nfigd address: pass --addr or configure a profile")
	}

	authCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return client.New(authCtx, addr, user, password)
}
