package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-extractor/internal/domain/queue"
)

var (
	statusFromStart bool
	statusFilesOnly bool
	statusJSON      bool
	statusName      string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Follow document status events",
	Long: `status subscribes to the status stream and prints every event until
interrupted. A named subscriber resumes where it stopped; --from-start replays
the stream for a subscriber seen for the first time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(context.Background())
		defer cancel()

		deps, err := setup()
		if err != nil {
			return err
		}
		defer deps.Cleanup()

		sub := queue.NewSubscriber(deps.Dial, queue.SubscriberConfig{
			Name:      statusName,
			FromStart: statusFromStart,
		}, deps.Logger)

		handler := printEvent(cmd.OutOrStdout(), statusJSON)
		if statusFilesOnly {
			handler = queue.OnFileGenerated(handler)
		}
		return sub.Run(ctx, handler)
	},
}

// printEvent writes one line per event.
func printEvent(w io.Writer, asJSON bool) queue.Handler {
	return func(_ context.Context, ev queue.StatusEvent) error {
		if asJSON {
			return json.NewEncoder(w).Encode(ev)
		}

		line := fmt.Sprintf("%s  %-20s %s", ev.Timestamp.Local().Format(time.DateTime), ev.Type, ev.PDFPath)
		if ev.ExtractorName != "" {
			line += "  [" + ev.ExtractorName + "]"
		}
		switch {
		case ev.GeneratedFilePath != "":
			line += "  -> " + ev.GeneratedFilePath
		case ev.ErrorMessage != "":
			line += "  error: " + ev.ErrorMessage
		}
		_, err := fmt.Fprintln(w, line)
		return err
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusFromStart, "from-start", false, "Replay the stream for a new subscriber")
	statusCmd.Flags().BoolVar(&statusFilesOnly, "files", false, "Only print file_generated events")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print events as JSON")
	statusCmd.Flags().StringVar(&statusName, "name", "", "Durable subscriber name; random when empty")
}
