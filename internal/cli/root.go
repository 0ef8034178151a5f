// Package cli provides the command-line interface for paperdigest.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"PaperDigest/internal/app"
	"PaperDigest/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string

	application *app.Application
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "paperdigest",
	Short: "Daily arXiv paper digest pipeline",
	Long: `Paperdigest scrapes fresh arXiv submissions for subscribed categories,
classifies them against a fixed taxonomy with an LLM, and delivers the
digest to configured chat channels.

Each day's run tracks scrape, classify and send completion separately,
so an interrupted pipeline resumes where it stopped.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg := config.Load()
		if configPath != "" {
			cfg = config.LoadFrom(configPath)
		}
		var err error
		application, err = app.New(cfg)
		if err != nil {
			return fmt.Errorf("initialise application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if application != nil {
			return application.Close()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (default $PAPER_DIGEST_CONFIG)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(papersCmd)
	rootCmd.AddCommand(daemonCmd)
}
