package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/facewatch/internal/annotate"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect recorded match events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded events, newest first",
	Long: `List recorded match events, newest first.

Examples:
  # Last 20 events
  facewatch events list --limit 20

  # Watchlist matches from the camera only
  facewatch events list --watchlisted --channel real_time_camera`,
	Args: cobra.NoArgs,
	RunE: runEventsList,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)

	eventsListCmd.Flags().Int("limit", constants.DefaultEventLimit, "Maximum number of events")
	eventsListCmd.Flags().String("channel", "", "Filter by channel (upload, single_capture, real_time_camera)")
	eventsListCmd.Flags().String("label", "", "Filter by label")
	eventsListCmd.Flags().Bool("watchlisted", false, "Only watchlist matches")
	eventsListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEventsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	channel, err := database.ParseChannel(mustGetString(cmd, "channel"))
	if err != nil {
		return err
	}
	filter := database.EventFilter{
		Limit:           database.NormalizeLimit(mustGetInt(cmd, "limit"), constants.DefaultEventLimit, constants.MaxEventLimit),
		Channel:         channel,
		Label:           mustGetString(cmd, "label"),
		WatchlistedOnly: mustGetBool(cmd, "watchlisted"),
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.events.ListEvents(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(events)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tCHANNEL\tLABEL\tCONFIDENCE\tIMAGE")
	for _, ev := range events {
		conf := "-"
		if ev.Watchlisted {
			conf = annotate.FormatConfidence(ev.Confidence) + "%"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			ev.ID, ev.CreatedAt.Local().Format(time.DateTime), ev.Channel, ev.Label, conf, ev.ImageRef)
	}
	return w.Flush()
}
