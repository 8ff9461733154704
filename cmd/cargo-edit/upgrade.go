package main

import (
	"fmt"

	"github.com/spf13/cobra"

	cargoedit "github.com/cassaundra/cargo-edit"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [dep...]",
	Short: "Upgrade version requirements in Cargo.toml manifests",
	Long: `Upgrade raises the version requirements of a workspace's dependencies to
the newest published versions, preserving how each requirement was written.
Without arguments every dependency of every workspace member is considered.`,
	RunE: runUpgrade,
}

func init() {
	f := upgradeCmd.Flags()
	f.StringSlice("exclude", nil, "dependencies to skip")
	f.Bool("pinned", false, "upgrade pinned (=, <, <=, wildcard) requirements too")
	f.Bool("allow-prerelease", false, "consider prerelease versions")
	f.Bool("to-lockfile", false, "upgrade to the versions pinned in Cargo.lock")
	f.Bool("compatible", false, "rewrite requirements even when already compatible")
	f.Bool("dry-run", false, "plan and report without writing")
	f.Bool("locked", false, "fail if any file would change")

	rootCmd.AddCommand(upgradeCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	req := cargoedit.UpgradeRequest{
		Dir:  flagPath,
		Deps: args,
	}
	req.Exclude, _ = f.GetStringSlice("exclude")
	req.Pinned, _ = f.GetBool("pinned")
	req.AllowPrerelease, _ = f.GetBool("allow-prerelease")
	req.ToLockfile, _ = f.GetBool("to-lockfile")
	req.Compatible, _ = f.GetBool("compatible")
	req.DryRun, _ = f.GetBool("dry-run")
	req.Locked, _ = f.GetBool("locked")

	editor, err := newEditor()
	if err != nil {
		return err
	}
	res, err := editor.Upgrade(cmd.Context(), req)
	if res != nil {
		fmt.Fprint(cmd.OutOrStdout(), res.Report.String())
	}
	if err != nil {
		return err
	}
	if req.DryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run: no files written")
	} else if res.Changes.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to upgrade")
	}
	return nil
}
