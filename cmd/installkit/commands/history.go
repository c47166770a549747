package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/installkit/installkit/pkg/installer"
	"github.com/installkit/installkit/pkg/setup"
	"github.com/installkit/installkit/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		step      string
		outcome   string
		limit     int
		offset    int
		pruneDays int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled installation steps",
		Example: `  # Last 20 attempts
  installkit history --limit 20

  # Failed connection attempts
  installkit history --step save_connection --outcome connectivity

  # Drop entries older than 30 days
  installkit history --prune 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pruneDays > 0 {
				return pruneHistory(cmd.Context(), time.Duration(pruneDays)*24*time.Hour)
			}

			var filter stores.Filter
			if step != "" {
				filter.Step = &step
			}
			if outcome != "" {
				o := setup.Outcome(outcome)
				filter.Outcome = &o
			}
			return runStep(cmd.Context(), func(ctx context.Context, in *installer.Installer) setup.Result {
				return in.History(ctx, filter, limit, offset)
			})
		},
	}

	cmd.Flags().StringVar(&step, "step", "", "only entries of this step")
	cmd.Flags().StringVar(&outcome, "outcome", "", "only entries with this outcome")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	cmd.Flags().IntVar(&pruneDays, "prune", 0, "delete entries older than this many days instead of listing")

	return cmd
}

func pruneHistory(ctx context.Context, age time.Duration) error {
	def, _, err := loadDefinition()
	if err != nil {
		return err
	}

	journal, err := openJournal(ctx, def.JournalPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	n, err := journal.Prune(ctx, time.Now().Add(-age))
	if err != nil {
		return err
	}

	log.Info().Int64("deleted", n).Dur("older_than", age).Msg("Journal pruned")
	return printResult(setup.Succeeded("Journal pruned").With("deleted", n))
}
