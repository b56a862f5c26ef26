package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/facewatch/internal/annotate"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/notify"
	"github.com/kozaktomas/facewatch/internal/pipeline"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Match the faces in one image against the watchlist",
	Long: `Match the faces in one image file against the watchlist and record the
outcome as an upload event. The image is stored under scans/ in the artifact
store.

Examples:
  # Scan a photo
  facewatch scan suspect.jpg

  # Stricter matching, JSON output
  facewatch scan suspect.jpg --tolerance 0.4 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Float64("tolerance", 0, "Maximum distance accepted as a match (overrides MATCH_TOLERANCE)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tolerance := a.cfg.Matching.Tolerance
	if t := mustGetFloat64(cmd, "tolerance"); t > 0 {
		tolerance = t
	}

	report, err := a.store.Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watchlist: %w", err)
	}
	if !jsonOutput {
		fmt.Printf("Watchlist: %d embeddings\n", report.Identities)
	}

	alerts, err := notify.New(ctx, a.cfg, a.metrics.Alerts, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect alert brokers: %w", err)
	}
	defer alerts.Close()

	scanner := pipeline.NewSingleShot(pipeline.SingleShotConfig{
		Detector:   a.detector,
		References: a.store,
		Matcher:    a.matcher,
		Tolerance:  tolerance,
		Sinks: pipeline.Sinks{
			Events:    a.events,
			Artifacts: a.files,
			Alerts:    alerts,
		},
		Logger: a.logger,
	})

	out, err := scanner.Process(ctx, data, database.ChannelUpload)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(out)
	}

	fmt.Println(out.Message)
	fmt.Printf("  Faces:      %d\n", out.Faces)
	fmt.Printf("  Label:      %s\n", out.Event.Label)
	if out.Matched {
		fmt.Printf("  Confidence: %s%%\n", annotate.FormatConfidence(out.Event.Confidence))
	}
	fmt.Printf("  Event:      #%d\n", out.Event.ID)
	fmt.Printf("  Image:      %s\n", out.Event.ImageRef)
	return nil
}
