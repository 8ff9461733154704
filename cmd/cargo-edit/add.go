package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cargoedit "github.com/cassaundra/cargo-edit"
	"github.com/cassaundra/cargo-edit/manifest"
)

var addCmd = &cobra.Command{
	Use:   "add [crate[@req]...]",
	Short: "Add dependencies to a Cargo.toml manifest",
	RunE:  runAdd,
}

func init() {
	f := addCmd.Flags()
	f.Bool("dev", false, "add to [dev-dependencies]")
	f.Bool("build", false, "add to [build-dependencies]")
	f.String("target", "", "add to the given target platform's dependencies")
	f.String("rename", "", "store the dependency under a different key")
	f.StringSlice("features", nil, "enable the given features")
	f.Bool("no-default-features", false, "disable the dependency's default features")
	f.Bool("optional", false, "mark the dependency as optional")
	f.String("dep-path", "", "add as a path dependency")
	f.String("git", "", "add as a git dependency")
	f.String("branch", "", "git branch")
	f.String("tag", "", "git tag")
	f.String("rev", "", "git revision")
	f.String("registry", "", "use an alternative registry")
	f.Bool("dry-run", false, "plan without writing")

	rootCmd.AddCommand(addCmd)
}

// sectionFromFlags maps the --dev/--build/--target flags to a dependency
// section.
func sectionFromFlags(cmd *cobra.Command) (manifest.Section, error) {
	dev, _ := cmd.Flags().GetBool("dev")
	build, _ := cmd.Flags().GetBool("build")
	target, _ := cmd.Flags().GetString("target")
	if dev && build {
		return manifest.Section{}, errors.New("--dev and --build are mutually exclusive")
	}
	sec := manifest.Section{Target: target}
	switch {
	case dev:
		sec.Kind = manifest.KindDev
	case build:
		sec.Kind = manifest.KindBuild
	}
	return sec, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	sec, err := sectionFromFlags(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	req := cargoedit.AddRequest{
		Dir:     flagPath,
		Crates:  args,
		Section: sec,
	}
	req.Rename, _ = f.GetString("rename")
	req.Features, _ = f.GetStringSlice("features")
	req.NoDefaultFeatures, _ = f.GetBool("no-default-features")
	req.Optional, _ = f.GetBool("optional")
	req.Path, _ = f.GetString("dep-path")
	req.Git, _ = f.GetString("git")
	req.Branch, _ = f.GetString("branch")
	req.Tag, _ = f.GetString("tag")
	req.Rev, _ = f.GetString("rev")
	req.Registry, _ = f.GetString("registry")
	req.DryRun, _ = f.GetBool("dry-run")

	editor, err := newEditor()
	if err != nil {
		return err
	}
	res, err := editor.Add(cmd.Context(), req)
	if err != nil {
		return err
	}
	for _, d := range res.Added {
		if d.Req != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Adding %s v%s to %s\n", d.TomlKey(), d.Req, d.Section.String())
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Adding %s (%s) to %s\n", d.TomlKey(), d.SourceString(), d.Section.String())
		}
	}
	if req.DryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run: no files written")
	}
	return nil
}
