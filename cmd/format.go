package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/invoice-templates/internal/engine"
	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/report"
)

// formatTemplateList writes one row per template to out.
func formatTemplateList(out io.Writer, tpls []model.Template) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tVENDOR\tVERSION\tACTIVE\tMARKERS\tFIELDS")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t------\t-------\t------")

	for i := range tpls {
		t := &tpls[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\t%d\n",
			t.ID,
			truncate(t.Name, 30),
			t.Vendor,
			t.Version,
			t.Active(),
			len(t.Data.Identification.Markers),
			len(t.Data.Fields),
		)
	}
	_ = w.Flush()
}

// formatTestResult writes the score summary and per-field outcomes to out.
func formatTestResult(out io.Writer, res *model.TemplateTestResult) {
	status := "FAILED"
	if res.Success {
		status = "OK"
	}
	_, _ = fmt.Fprintf(out, "Template %s: %s\n", res.TemplateID, status)
	_, _ = fmt.Fprintf(out, "  marker_score %.3f (%d/%d required, %d/%d optional markers)\n",
		res.MarkerScore,
		res.Identification.RequiredFound, res.Identification.RequiredTotal,
		res.Identification.OptionalFound, res.Identification.OptionalTotal,
	)
	_, _ = fmt.Fprintf(out, "  match_score  %.3f (%d/%d fields)\n\n", res.MatchScore, res.FieldsMatched, res.FieldsTotal)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tREQUIRED\tMATCHED\tVALID\tMETHOD\tVALUE\tPROBLEMS")
	_, _ = fmt.Fprintln(w, "-----\t--------\t-------\t-----\t------\t-----\t--------")
	for i := range res.FieldResults {
		f := &res.FieldResults[i]
		_, _ = fmt.Fprintf(w, "%s\t%t\t%t\t%t\t%s\t%s\t%s\n",
			f.FieldName,
			f.Required,
			f.Matched,
			f.ValidationPassed,
			f.MatchMethod,
			truncate(f.Display(), 40),
			strings.Join(f.Problems, "; "),
		)
	}
	_ = w.Flush()
}

// formatCandidates writes the ranked candidate list to out.
func formatCandidates(out io.Writer, cands []model.CandidateScore) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tTEMPLATE\tMARKER\tMATCH\tREQUIRED_MARKERS")
	for i, c := range cands {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%.3f\t%.3f\t%d\n", i+1, c.TemplateID, c.MarkerScore, c.MatchScore, c.RequiredMarkers)
	}
	_ = w.Flush()
}

// formatBatchSummary writes one row per document and status totals to out.
func formatBatchSummary(out io.Writer, items []engine.BatchItem) {
	counts := make(map[string]int)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOCUMENT\tSTATUS\tTEMPLATE\tMATCH\tDETAIL")
	_, _ = fmt.Fprintln(w, "--------\t------\t--------\t-----\t------")
	for _, item := range items {
		status := report.Status(item)
		counts[status]++

		var tpl, match, detail string
		if item.Result != nil {
			tpl = item.Result.TemplateID
			match = fmt.Sprintf("%.3f", item.Result.Result.MatchScore)
			if failed := item.Result.Result.FailedRequired(); len(failed) > 0 {
				detail = "missing " + strings.Join(failed, ", ")
			}
		} else if item.Err != nil {
			detail = truncate(item.Err.Error(), 60)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", item.DocumentID, status, tpl, match, detail)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d documents: %d matched, %d ambiguous, %d unmatched, %d errors\n",
		len(items),
		counts[report.StatusMatched],
		counts[report.StatusAmbiguous],
		counts[report.StatusUnmatched],
		counts[report.StatusError],
	)
}

// formatSyncReport writes the outcome of a sync to out.
func formatSyncReport(out io.Writer, saved int64, rep *engine.SyncReport) {
	_, _ = fmt.Fprintf(out, "Saved %d templates\n", saved)
	_, _ = fmt.Fprintf(out, "Loaded:   %d\n", len(rep.Loaded))
	_, _ = fmt.Fprintf(out, "Inactive: %d\n", len(rep.Inactive))
	_, _ = fmt.Fprintf(out, "Evicted:  %d\n", len(rep.Evicted))
	_, _ = fmt.Fprintf(out, "Invalid:  %d\n", len(rep.Invalid))
	if len(rep.Invalid) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nTEMPLATE\tREASON")
	for _, id := range sortedKeys(rep.Invalid) {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", id, rep.Invalid[id])
	}
	_ = w.Flush()
}

// formatTestRecords writes the test history of a template to out.
func formatTestRecords(out io.Writer, recs []model.TestRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTESTED\tDOCUMENT\tHASH\tSUCCESS\tMATCH\tFIELDS")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t----\t-------\t-----\t------")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%.3f\t%d/%d\n",
			truncateID(r.ID),
			r.TestedAt.Format("2006-01-02 15:04"),
			truncate(r.DocumentID, 30),
			truncateID(r.TemplateHash),
			r.Result.Success,
			r.Result.MatchScore,
			r.Result.FieldsMatched,
			r.Result.FieldsTotal,
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
