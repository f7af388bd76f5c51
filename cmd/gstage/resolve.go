package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franksops/gostage/engine"
	"github.com/franksops/gostage/location"
	"github.com/franksops/gostage/staging"
)

func newResolveCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <location>",
		Short: "Fetch a location and print its local path",
		Long: `Resolve fetches and unpacks a location into the staging root and prints the
resulting local path. The staged files are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}
			loc, err := location.Parse(args[0])
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg)
			a, err := newApp(cmd.Context(), cfg, logger, engine.NopObserver{}, staging.CleanupNever)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.resolver.Resolve(cmd.Context(), loc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}
