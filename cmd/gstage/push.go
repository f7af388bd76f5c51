package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franksops/gostage/engine"
	"github.com/franksops/gostage/location"
)

func newPushCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "push <path> <location>",
		Short: "Stage a local file or directory to a location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}
			dest, err := location.Parse(args[1])
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg)
			a, err := newApp(cmd.Context(), cfg, logger, engine.NopObserver{}, "")
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.resolver.Stage(cmd.Context(), args[0], dest)
			if _, cerr := a.area.Cleanup(err == nil); cerr != nil {
				logger.Warn("cleanup failed", "err", cerr)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staged %s to %s\n", args[0], dest)
			return nil
		},
	}
}
