package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/facewatch/internal/capture"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/notify"
	"github.com/kozaktomas/facewatch/internal/pipeline"
	"github.com/kozaktomas/facewatch/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the facewatch web server.
The server loads the watchlist, exposes the real-time camera session,
single-shot scans, event history and the live event feed over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("autostart", false, "Start the camera session immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}

	fmt.Printf("Loading watchlist...\n")
	report, err := a.store.Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watchlist: %w", err)
	}
	fmt.Printf("Watchlist ready with %d embeddings (%d references skipped)\n", report.Identities, len(report.Skipped))

	publisher, err := notify.New(ctx, a.cfg, a.metrics.Alerts, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect alert brokers: %w", err)
	}
	alerts := notify.NewAsync(publisher, a.logger)
	defer alerts.Close()

	feed := pipeline.NewEventFeed()
	sinks := pipeline.Sinks{
		Events:    a.events,
		Artifacts: a.files,
		Alerts:    alerts,
		Feed:      feed,
		Metrics:   a.metrics.Pipeline,
	}

	session := pipeline.NewSession(pipeline.SessionConfig{
		Device:              capture.New(a.cfg.Camera, a.logger),
		Detector:            a.detector,
		References:          a.store,
		Matcher:             a.matcher,
		Tolerance:           a.cfg.Matching.Tolerance,
		Cooldown:            facematch.NewCooldownTracker(a.cfg.Matching.Cooldown),
		Sinks:               sinks,
		Logger:              a.logger,
		ReleaseOnDisconnect: a.cfg.Camera.ReleaseOnDisconnect,
		MaxWidth:            a.cfg.Camera.Width,
		MaxHeight:           a.cfg.Camera.Height,
	})
	scanner := pipeline.NewSingleShot(pipeline.SingleShotConfig{
		Detector:   a.detector,
		References: a.store,
		Matcher:    a.matcher,
		Tolerance:  a.cfg.Matching.Tolerance,
		Sinks:      sinks,
		Logger:     a.logger,
	})

	server := web.NewServer(a.cfg, web.Dependencies{
		Session:   session,
		Scanner:   scanner,
		Watchlist: a.store,
		Events:    a.events,
		Feed:      feed,
		Artifacts: a.files,
		Metrics:   a.metrics.Handler(),
	}, a.logger)

	if mustGetBool(cmd, "autostart") {
		if _, err := session.Start(); err != nil {
			return fmt.Errorf("failed to start camera session: %w", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		session.Stop(shutdownCtx)
		feed.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facewatch on http://%s:%d\n", a.cfg.Web.Host, a.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
