package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-templates/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results [template-id]",
	Short: "Show recent test runs of a template, or one run with --id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID, _ := cmd.Flags().GetString("id")
		if runID == "" && len(args) == 0 {
			return eris.New("results: a template id or --id is required")
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if runID != "" {
			rec, err := a.store.GetTestResult(ctx, runID)
			if err != nil {
				return err
			}
			if rec == nil {
				return eris.Errorf("results: test run %q not found", runID)
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			fmt.Printf("Run %s of %s (hash %s) at %s\n\n", rec.ID, rec.TemplateID, truncateID(rec.TemplateHash), rec.TestedAt.Format("2006-01-02 15:04:05"))
			formatTestResult(os.Stdout, &rec.Result)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		recs, err := a.store.ListTestResults(ctx, args[0], limit)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No test results found.")
			return nil
		}
		formatTestRecords(os.Stdout, recs)
		return nil
	},
}

func init() {
	resultsCmd.Flags().String("id", "", "show a single test run by id")
	resultsCmd.Flags().Int("limit", store.DefaultResultLimit, "maximum number of results")
	resultsCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(resultsCmd)
}
