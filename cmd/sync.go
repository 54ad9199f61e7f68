package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/registry"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull templates into the store and refresh the compiled library",
	Long: "Pulls template definitions from the Notion registry (or a bundle file with --from), saves them to the template store, " +
		"and compiles every stored template, reporting invalid ones. With --push, stored templates are published to Notion instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		from, _ := cmd.Flags().GetString("from")
		push, _ := cmd.Flags().GetBool("push")
		activeOnly, _ := cmd.Flags().GetBool("active-only")

		if from == "" {
			if err := cfg.Validate("sync"); err != nil {
				return err
			}
		}

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if push {
			if from != "" {
				return eris.New("sync: --push and --from are mutually exclusive")
			}
			tpls, err := a.store.ListTemplates(ctx)
			if err != nil {
				return err
			}
			rep, err := registry.PublishTemplates(ctx, initNotion(cfg), cfg.Notion.TemplateDB, tpls)
			if err != nil {
				return err
			}
			fmt.Printf("Published %d templates (%d created, %d updated)\n", len(tpls), rep.Created, rep.Updated)
			return nil
		}

		var tpls []model.Template
		if from != "" {
			tpls, err = registry.LoadTemplatesFromFile(from)
		} else {
			tpls, err = registry.LoadTemplates(ctx, initNotion(cfg), cfg.Notion.TemplateDB, activeOnly)
		}
		if err != nil {
			return err
		}

		n, err := a.store.SaveTemplates(ctx, tpls)
		if err != nil {
			return eris.Wrap(err, "sync: save templates")
		}
		zap.L().Info("templates pulled", zap.Int64("saved", n))

		rep, err := a.engine.Sync(ctx)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		formatSyncReport(os.Stdout, n, rep)
		return nil
	},
}

func init() {
	syncCmd.Flags().String("from", "", "pull from a JSON bundle file instead of Notion")
	syncCmd.Flags().Bool("push", false, "publish stored templates to Notion")
	syncCmd.Flags().Bool("active-only", false, "pull only templates marked Active in Notion")
	syncCmd.Flags().Bool("json", false, "print the sync report as JSON")
	rootCmd.AddCommand(syncCmd)
}
