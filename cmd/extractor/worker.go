package main

import (
	"context"

	"github.com/spf13/cobra"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued documents until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(context.Background())
		defer cancel()

		deps, err := setup()
		if err != nil {
			return err
		}
		defer deps.Cleanup()

		deps.ServeMetrics(ctx)
		scheduler, err := deps.StartScheduler()
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()

		return deps.Worker(workerConcurrency).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().IntVarP(&workerConcurrency, "concurrency", "c", 0, "Concurrent tasks; defaults to WORKER_CONCURRENCY")
}
