package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"PaperDigest/internal/ledger"
)

var (
	statusDays int
	statusJSON bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-day stage completion",
	Long: `Show which pipeline stages completed for the most recent days.

Examples:
  paperdigest status
  paperdigest status --days 14 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := application.Status(statusDays)

		if statusJSON {
			raw, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal status: %w", err)
			}
			fmt.Println(string(raw))
			return nil
		}

		if len(doc) == 0 {
			fmt.Println("No pipeline runs recorded.")
			return nil
		}

		days := make([]string, 0, len(doc))
		for day := range doc {
			days = append(days, day)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(days)))

		for _, day := range days {
			fmt.Println(day + ":")
			for _, stage := range ledger.Stages {
				rec, ok := doc[day][stage]
				state := "pending"
				if ok && rec.Completed {
					state = "done " + rec.Timestamp.Format("15:04:05")
				}
				fmt.Printf("  %-9s %s\n", stage, state)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusDays, "days", 7, "how many recent days to show")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print raw ledger records as JSON")
}
