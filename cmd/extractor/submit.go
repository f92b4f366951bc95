package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var submitOutput string

var submitCmd = &cobra.Command{
	Use:   "submit <pdf|dir>...",
	Short: "Classify and dispatch statement PDFs",
	Long: `submit classifies every PDF (directories are expanded to the PDFs inside
them). Local vendors are queued for workers; the remote vendor is extracted
inline and its artifacts written to the output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(context.Background())
		defer cancel()

		deps, err := setup()
		if err != nil {
			return err
		}
		defer deps.Cleanup()

		orch, err := deps.Orchestrator(submitOutput)
		if err != nil {
			return err
		}

		accepted, results, err := orch.SubmitBatch(ctx, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, res := range results {
			switch {
			case res.Err != nil:
				fmt.Fprintf(out, "%s\t%s\t%v\n", res.State, res.Path, res.Err)
			case res.TaskID != "":
				fmt.Fprintf(out, "%s\t%s\t%s (task %s)\n", res.State, res.Path, res.Extractor, res.TaskID)
			default:
				fmt.Fprintf(out, "%s\t%s\t%s\n", res.State, res.Path, res.Extractor)
			}
		}
		fmt.Fprintf(out, "%d of %d documents accepted\n", accepted, len(results))

		if accepted == 0 && len(results) > 0 {
			return fmt.Errorf("no document was accepted")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVarP(&submitOutput, "output", "o", "", "Directory for inline (remote) artifacts; defaults to OUTPUT_DIR or <pdf parent's parent>/output")
}
