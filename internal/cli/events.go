package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dependify/modernize/internal/event"
)

var eventsCmd = &cobra.Command{
	Use:   "events <batch-id>",
	Short: "Print a batch's durable progress log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		after, _ := cmd.Flags().GetInt64("after")
		artifact, _ := cmd.Flags().GetString("artifact")

		pub := event.NewPublisher(database)
		var events []event.Event
		if artifact != "" {
			events, err = pub.ArtifactStream(args[0], artifact)
		} else {
			events, err = pub.Replay(args[0], after)
		}
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no events")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tARTIFACT\tSTAGE\tATTEMPT\tMESSAGE")
		for _, e := range events {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
				e.ID, e.Timestamp.Format("15:04:05"), e.ArtifactID, e.Stage, e.Attempt, e.Message)
		}
		return w.Flush()
	},
}

func init() {
	eventsCmd.Flags().Int64("after", 0, "Only show events with id greater than this")
	eventsCmd.Flags().String("artifact", "", "Only show one artifact's stream")
}
