// Command gstage fetches an input from a location, runs a build over it and
// ships the output to another location.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/franksops/gostage/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "gstage",
		Short: "Stage build inputs and outputs between S3, HTTP and archives",
		Long: `gstage resolves an input location to a local path, runs a build over it
and stages the output directory to a destination location.

Locations are local paths, s3://bucket/key, http(s):// URLs, or
archive:<location>!/<entry> to address an entry inside a zip archive.
Archive locations nest.

Without a subcommand gstage behaves like "gstage run".`,
		Example: `  gstage --source s3://in/doc.zip --dest s3://out/site/ --ant-home /opt/dita -- -Dtranstype=html5
  input=archive:s3://in/doc.zip!/map.ditamap output=archive:s3://out/site.zip!/ gstage run
  gstage resolve archive:https://example.com/bundle.zip!/docs
  gstage push ./site s3://out/site/
  gstage journal`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, cfgFile, args)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./gstage.yaml when present)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(&cfgFile),
		newResolveCmd(&cfgFile),
		newPushCmd(&cfgFile),
		newJournalCmd(&cfgFile),
	)
	return root
}

func loadConfig(cmd *cobra.Command, cfgFile string) (*config.Config, error) {
	return config.Load(cmd.Flags(), cfgFile)
}
