package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-extractor/internal/domain/inbox"
)

var (
	watchExisting bool
	watchOutput   string
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Submit every PDF dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(context.Background())
		defer cancel()

		deps, err := setup()
		if err != nil {
			return err
		}
		defer deps.Cleanup()

		orch, err := deps.Orchestrator(watchOutput)
		if err != nil {
			return err
		}

		w := inbox.New(orch, inbox.Config{Dir: args[0], Existing: watchExisting}, deps.Logger)
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Also submit the PDFs already in the directory")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "Directory for inline (remote) artifacts")
}
