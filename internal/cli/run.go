package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	runTargetDate string
	runJSON       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Long: `Run the scrape, classify and send stages for one day.

Stages completed by an earlier run are skipped. An empty --date picks the
most recent non-weekend day.

Examples:
  paperdigest run
  paperdigest run --date 2026-03-02
  paperdigest run --json`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&runTargetDate, "date", "d", "", "target date (YYYY-MM-DD)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the structured run report as JSON")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	onProgress := func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rclassifying %d/%d", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}

	result := application.RunOnce(cmd.Context(), runTargetDate, onProgress)

	if runJSON {
		raw, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Println(string(raw))
	} else {
		fmt.Println(result.Summary)
	}

	if !result.Succeeded() {
		return fmt.Errorf("pipeline run failed: %s", result.Summary)
	}
	return nil
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep running the pipeline on a schedule",
	Long: `Run as a long-lived process, retrying the pipeline on the configured
interval until each day's run reaches a terminal state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return application.RunDaemon(ctx)
	},
}
