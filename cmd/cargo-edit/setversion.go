package main

import (
	"fmt"

	"github.com/spf13/cobra"

	cargoedit "github.com/cassaundra/cargo-edit"
)

var setVersionCmd = &cobra.Command{
	Use:   "set-version <version>",
	Short: "Change a package's version and keep the workspace coherent",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetVersion,
}

func init() {
	f := setVersionCmd.Flags()
	f.StringP("package", "p", "", "package to version (default: the package at --path)")
	f.Bool("workspace", false, "version every workspace member")
	f.Bool("dry-run", false, "plan without writing")

	rootCmd.AddCommand(setVersionCmd)
}

func runSetVersion(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	req := cargoedit.SetVersionRequest{
		Dir:     flagPath,
		Version: args[0],
	}
	req.Package, _ = f.GetString("package")
	req.Workspace, _ = f.GetBool("workspace")
	req.DryRun, _ = f.GetBool("dry-run")

	editor, err := newEditor()
	if err != nil {
		return err
	}
	res, err := editor.SetVersion(cmd.Context(), req)
	if err != nil {
		return err
	}
	for _, name := range res.Bumped {
		fmt.Fprintf(cmd.OutOrStdout(), "Setting %s to version %s\n", name, req.Version)
	}
	if req.DryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run: no files written")
	}
	return nil
}
