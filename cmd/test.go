package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-templates/internal/model"
)

const rawSampleChars = 1000

// testOutput is the --json shape of the test command.
type testOutput struct {
	RecordID      string                    `json:"record_id,omitempty"`
	TemplateHash  string                    `json:"template_hash"`
	Result        *model.TemplateTestResult `json:"result"`
	RawTextSample string                    `json:"raw_text_sample"`
}

var testCmd = &cobra.Command{
	Use:   "test <template-id> <document>",
	Short: "Run one template against a document",
	Long:  "Extracts every field of the template from the document, reports per-field outcomes and records the run in the test history.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		templateID, documentID := args[0], args[1]

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		text, err := a.docs.GetDocumentText(ctx, documentID)
		if err != nil {
			return err
		}
		tctx, cancel := classifyContext(ctx)
		res, err := a.engine.TestTemplate(tctx, templateID, text)
		cancel()
		if err != nil {
			return err
		}

		out := testOutput{Result: res, RawTextSample: model.Sample(text, rawSampleChars)}
		if ct, ok := a.engine.Library().Get(templateID); ok {
			out.TemplateHash = ct.Hash
		}

		if noRecord, _ := cmd.Flags().GetBool("no-record"); !noRecord {
			rec := model.TestRecord{
				TemplateID:   templateID,
				TemplateHash: out.TemplateHash,
				DocumentID:   documentID,
				Result:       *res,
			}
			if err := a.store.SaveTestResult(ctx, &rec); err != nil {
				return eris.Wrap(err, "test: record result")
			}
			out.RecordID = rec.ID
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		formatTestResult(os.Stdout, res)
		fmt.Printf("\nRaw text sample:\n%s\n", out.RawTextSample)
		return nil
	},
}

// classifyContext bounds template evaluation by engine.classify_timeout_secs.
// OCR runs outside the deadline.
func classifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if cfg != nil && cfg.Engine.ClassifyTimeoutSecs > 0 {
		return context.WithTimeout(ctx, time.Duration(cfg.Engine.ClassifyTimeoutSecs)*time.Second)
	}
	return context.WithCancel(ctx)
}

func init() {
	testCmd.Flags().Bool("json", false, "print the full result as JSON")
	testCmd.Flags().Bool("no-record", false, "do not save the run to the test history")
	rootCmd.AddCommand(testCmd)
}
