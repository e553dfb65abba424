package main

import (
	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-search/internal/batch"
)

var scheduleSpec string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the topics file on a cron schedule",
	Long: `Schedule runs every topic of a topics file on a cron schedule until
interrupted. Each run writes into {output-dir}/daily/{topic}/{YYYY-MM-DD}/.
A run that is still busy when the next one is due makes that one skip.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	addTopicFlags(scheduleCmd)
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", batch.DefaultSchedule, "cron expression (minute hour day month weekday)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, tf, runner, err := loadTopicRun()
	if err != nil {
		return err
	}

	s, err := batch.NewScheduler(scheduleSpec, runner, a.Config.Export.OutputDir, tf.Topics, a.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	s.Run(ctx)
	return nil
}
