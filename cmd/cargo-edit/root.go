package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	cargoedit "github.com/cassaundra/cargo-edit"
	"github.com/cassaundra/cargo-edit/registry"
)

var (
	flagPath     string
	flagVerbose  bool
	flagOffline  bool
	flagRegistry string

	rootCmd = &cobra.Command{
		Use:   "cargo-edit",
		Short: "Edit Cargo.toml dependencies from the command line",
		Long: `cargo-edit adds, removes, and upgrades dependencies in Cargo manifests
while preserving the formatting of everything it does not touch.

Examples:
  cargo-edit add serde --features derive
  cargo-edit add demo-lib --path ../demo-lib
  cargo-edit rm rand
  cargo-edit upgrade --dry-run
  cargo-edit upgrade serde --pinned
  cargo-edit set-version 1.2.0 --workspace`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", ".", "directory of the manifest to edit")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "use only the local registry cache")
	rootCmd.PersistentFlags().StringVar(&flagRegistry, "registry-url", "", "sparse index URL (default: crates.io)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newEditor builds an editor from the persistent flags.
func newEditor() (*cargoedit.Editor, error) {
	var opts []cargoedit.Option

	clientOpts := []registry.ClientOption{
		registry.WithOffline(flagOffline),
	}
	logger := newLogger()
	if logger != nil {
		opts = append(opts, cargoedit.WithLogger(logger))
		clientOpts = append(clientOpts, registry.WithLogger(logger))
	}
	opts = append(opts, cargoedit.WithRegistry(registry.NewClient(flagRegistry, clientOpts...)))

	return cargoedit.New(opts...)
}

func newLogger() *slog.Logger {
	if !flagVerbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
