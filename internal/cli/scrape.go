package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scrapeTargetDate string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run only the scrape stage",
	Long: `Fetch papers for the subscribed categories and store the raw
artifacts, without classifying or sending anything.

Examples:
  paperdigest scrape
  paperdigest scrape --date 2026-03-02`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawFiles, err := application.ScrapeOnly(cmd.Context(), scrapeTargetDate)
		if err != nil {
			return fmt.Errorf("scrape: %w", err)
		}
		if len(rawFiles) == 0 {
			fmt.Println("No papers found.")
			return nil
		}
		for _, path := range rawFiles {
			fmt.Println(path)
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeTargetDate, "date", "d", "", "target date (YYYY-MM-DD)")
}
