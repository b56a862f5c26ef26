package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facewatch",
	Short: "Real-time face matching against a watchlist",
	Long: `facewatch matches faces from a live camera, uploaded images and browser
captures against a watchlist of reference faces. Every outcome is recorded
as an event with its evidence image; watchlist matches raise alerts.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var envFile string

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")
}

// initConfig loads the environment file. A missing default file is fine, an
// explicitly requested one that cannot be read is reported.
func initConfig() {
	if err := godotenv.Load(envFile); err != nil && rootCmd.PersistentFlags().Changed("env-file") {
		fmt.Fprintf(os.Stderr, "warning: cannot load %s: %v\n", envFile, err)
	}
}
