package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	papersKeyword string
	papersDay     string
	papersJSON    bool
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Query classified papers",
	Long: `Look up classified papers in the local index by keyword and day.

Examples:
  paperdigest papers --keyword diffusion
  paperdigest papers --day 2026-03-02
  paperdigest papers --keyword agents --day 2026-03-02 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		papers, err := application.QueryPapers(cmd.Context(), papersKeyword, papersDay)
		if err != nil {
			return fmt.Errorf("query papers: %w", err)
		}

		if papersJSON {
			raw, err := json.MarshalIndent(papers, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal papers: %w", err)
			}
			fmt.Println(string(raw))
			return nil
		}

		if len(papers) == 0 {
			fmt.Println("No papers matched.")
			return nil
		}
		for _, paper := range papers {
			fmt.Printf("%s  %s\n", paper.ArxivID, paper.Title)
			fmt.Printf("    %s / %s / %s\n",
				paper.PrimaryArea, paper.SecondaryFocus, paper.ApplicationDomain)
			if paper.TLDR != "" {
				fmt.Printf("    %s\n", paper.TLDR)
			}
			if len(paper.InterestTags) > 0 {
				fmt.Printf("    tags: %s\n", strings.Join(paper.InterestTags, ", "))
			}
		}
		return nil
	},
}

func init() {
	papersCmd.Flags().StringVarP(&papersKeyword, "keyword", "k", "", "keyword to match in title, summary or taxonomy")
	papersCmd.Flags().StringVarP(&papersDay, "day", "d", "", "restrict to one day (YYYY-MM-DD)")
	papersCmd.Flags().BoolVar(&papersJSON, "json", false, "print matches as JSON")
}
