package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/franksops/gostage/store"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newJournalCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "journal [run-id]",
		Short: "List journaled transfers",
		Long:  "Journal lists the transfer records kept in the state directory, optionally for a single run.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}
			if cfg.StateDir == "" {
				return errors.New("no state directory configured")
			}
			journal, err := openJournal(cfg)
			if err != nil {
				return err
			}
			defer journal.Close()

			prefix := ""
			if len(args) == 1 {
				prefix = args[0] + "/"
			}
			records, err := journal.ListJobs(prefix)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no transfers recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), journalTable(records))
			return nil
		},
	}
}

func journalTable(records []*store.JobRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "DIRECTION", "SOURCE", "DESTINATION", "STATE", "BYTES", "ERROR").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range records {
		t.Row(r.RunID, string(r.Direction), r.SourcePath, r.DestinationPath, string(r.State), fmt.Sprint(r.BytesTransferred), r.Error)
	}
	return t.String()
}
