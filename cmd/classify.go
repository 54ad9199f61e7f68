package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/engine"
	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/ocr"
	"github.com/sells-group/invoice-templates/internal/report"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <document>",
	Short: "Pick the template that fits a document and extract its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		text, err := a.docs.GetDocumentText(ctx, args[0])
		if err != nil {
			return err
		}

		cctx, cancel := classifyContext(ctx)
		res, err := a.engine.Classify(cctx, text)
		cancel()
		if err != nil {
			var amb *engine.AmbiguousTemplateError
			if errors.As(err, &amb) {
				fmt.Fprintf(os.Stderr, "Ambiguous: %v tie at marker_score=%.3f match_score=%.3f\n",
					amb.TemplateIDs, amb.MarkerScore, amb.MatchScore)
			}
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Printf("Template: %s\n\n", res.TemplateID)
		formatCandidates(os.Stdout, res.Candidates)
		fmt.Println()
		formatTestResult(os.Stdout, &res.Result)
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Classify every document in a directory",
	Long:  "Classifies each .pdf, .txt and .md file in the directory against one snapshot of the template library and prints a summary, optionally writing an XLSX report.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c := *cfg
		c.OCR.DocumentDir = args[0]
		a, err := newApp(ctx, &c, true)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		ids, err := a.docs.ListDocuments()
		if err != nil {
			return err
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(ids) > limit {
			ids = ids[:limit]
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "No documents found.")
			return nil
		}

		items, err := a.engine.ClassifyBatch(ctx, ids)
		if err != nil {
			return err
		}

		formatBatchSummary(os.Stdout, items)

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := report.WriteXLSX(path, items); err != nil {
				return err
			}
			fmt.Printf("\nReport written to %s\n", path)
		}

		if record, _ := cmd.Flags().GetBool("record"); record {
			n, err := a.store.SaveTestResults(ctx, batchRecords(a.engine, items))
			if err != nil {
				return eris.Wrap(err, "batch: record results")
			}
			zap.L().Info("batch results recorded", zap.Int64("records", n))
		}
		return nil
	},
}

// batchRecords turns matched batch items into test history records pinned
// to the compiled template hash.
func batchRecords(eng *engine.Engine, items []engine.BatchItem) []model.TestRecord {
	var recs []model.TestRecord
	for _, item := range items {
		if item.Result == nil {
			continue
		}
		rec := model.TestRecord{
			TemplateID: item.Result.TemplateID,
			DocumentID: item.DocumentID,
			Result:     item.Result.Result,
		}
		if ct, ok := eng.Library().Get(item.Result.TemplateID); ok {
			rec.TemplateHash = ct.Hash
		}
		recs = append(recs, rec)
	}
	return recs
}

var _ engine.DocumentSource = (*ocr.DirSource)(nil)

func init() {
	classifyCmd.Flags().Bool("json", false, "print the full result as JSON")

	batchCmd.Flags().String("xlsx", "", "write an XLSX report to this path")
	batchCmd.Flags().Int("limit", 0, "maximum number of documents (0 = all)")
	batchCmd.Flags().Bool("record", false, "save matched results to the test history")

	rootCmd.AddCommand(classifyCmd, batchCmd)
}
