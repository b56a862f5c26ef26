package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Inspect and validate the watchlist",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured reference images",
	Long: `List the reference images of the configured watchlist source without
running face detection.`,
	Args: cobra.NoArgs,
	RunE: runWatchlistList,
}

var watchlistReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Encode every reference image and report the result",
	Long: `Run face detection on every reference image, exactly as the server does
on startup, and report which references were skipped and why. Use it to
validate a watchlist before deploying it.`,
	Args: cobra.NoArgs,
	RunE: runWatchlistReload,
}

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistReloadCmd)

	watchlistListCmd.Flags().Bool("json", false, "Output as JSON")
	watchlistReloadCmd.Flags().Bool("json", false, "Output as JSON")
}

func runWatchlistList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	refs, err := a.provider.List(ctx)
	if err != nil {
		return fmt.Errorf("listing references: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(refs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tIMAGE")
	for _, ref := range refs {
		fmt.Fprintf(w, "%s\t%s\n", ref.Name, ref.Handle)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d reference images\n", len(refs))
	return nil
}

func runWatchlistReload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if jsonOutput {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Encoding references"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("images"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(done)
	}

	report, err := a.store.ReloadWithProgress(ctx, progress)
	if err != nil {
		return fmt.Errorf("reloading watchlist: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	if jsonOutput {
		return outputJSON(report)
	}

	fmt.Printf("References: %d\n", report.References)
	fmt.Printf("Embeddings: %d\n", report.Identities)
	fmt.Printf("Identities: %d\n", len(a.store.Snapshot().Names()))
	fmt.Printf("Duration:   %s\n", report.Duration.Round(time.Millisecond))

	if len(report.Skipped) > 0 {
		fmt.Printf("\nSkipped %d references:\n", len(report.Skipped))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tIMAGE\tREASON")
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Handle, s.Reason)
		}
		return w.Flush()
	}
	return nil
}
