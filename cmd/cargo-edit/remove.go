package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cargoedit "github.com/cassaundra/cargo-edit"
)

var removeCmd = &cobra.Command{
	Use:     "rm <dep>...",
	Aliases: []string{"remove"},
	Short:   "Remove dependencies from a Cargo.toml manifest",
	RunE:    runRemove,
}

func init() {
	f := removeCmd.Flags()
	f.Bool("dev", false, "remove from [dev-dependencies]")
	f.Bool("build", false, "remove from [build-dependencies]")
	f.String("target", "", "remove from the given target platform's dependencies")
	f.Bool("dry-run", false, "plan without writing")

	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no dependencies to remove")
	}
	sec, err := sectionFromFlags(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	editor, err := newEditor()
	if err != nil {
		return err
	}
	res, err := editor.Remove(cmd.Context(), cargoedit.RemoveRequest{
		Dir:     flagPath,
		Deps:    args,
		Section: sec,
		DryRun:  dryRun,
	})
	if err != nil {
		return err
	}
	for _, key := range res.Removed {
		fmt.Fprintf(cmd.OutOrStdout(), "Removing %s from %s\n", key, sec.String())
	}
	if dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run: no files written")
	}
	return nil
}
