package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/model"
	"github.com/sells-group/invoice-templates/internal/templates"
)

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Validate, compile and store a template file",
	Long:  "Reads a JSON or YAML template (a full template or a bare template_data block), compiles it, and saves it to the template store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		t, err := templates.DecodeFile(args[0])
		if err != nil {
			return err
		}
		if id, _ := cmd.Flags().GetString("id"); id != "" {
			t.ID = id
		}
		if inactive, _ := cmd.Flags().GetBool("inactive"); inactive {
			active := false
			t.IsActive = &active
		}

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		ct, err := a.engine.Load(t)
		if err != nil {
			return eris.Wrapf(err, "load %s", args[0])
		}
		if err := a.store.SaveTemplate(ctx, *t); err != nil {
			return eris.Wrap(err, "load: save template")
		}

		zap.L().Info("template loaded",
			zap.String("template_id", ct.ID()),
			zap.Int("markers", len(ct.Markers)),
			zap.Int("fields", len(ct.Fields)),
		)
		fmt.Printf("Loaded %s (%d markers, %d fields, hash %s)\n", ct.ID(), len(ct.Markers), len(ct.Fields), ct.Hash[:12])
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store the built-in vendor templates",
	Long:  "Compiles the Amazon, Walmart and generic invoice templates shipped with the binary and saves them to the template store. Templates already in the store are kept unless --overwrite is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		tpls, err := templates.Builtin()
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		var pending []model.Template
		for i := range tpls {
			t := &tpls[i]
			if !overwrite {
				existing, err := a.store.GetTemplate(ctx, t.ID)
				if err != nil {
					return eris.Wrapf(err, "seed: check %s", t.ID)
				}
				if existing != nil {
					fmt.Printf("Skipped %s (already stored)\n", t.ID)
					continue
				}
			}
			if _, err := a.engine.Load(t); err != nil {
				return eris.Wrapf(err, "seed: compile %s", t.ID)
			}
			pending = append(pending, *t)
		}
		if len(pending) == 0 {
			return nil
		}

		n, err := a.store.SaveTemplates(ctx, pending)
		if err != nil {
			return eris.Wrap(err, "seed: save templates")
		}
		zap.L().Info("built-in templates seeded", zap.Int64("saved", n), zap.Int("builtin", len(tpls)))
		for _, t := range pending {
			fmt.Printf("Seeded %s (%s)\n", t.ID, t.Name)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <template-id>",
	Short: "Export a template's template_data as pretty-printed JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		t, err := a.store.GetTemplate(ctx, args[0])
		if err != nil {
			return err
		}
		if t == nil {
			return eris.Errorf("export: template %q not found", args[0])
		}

		out, err := templates.Export(t)
		if err != nil {
			return err
		}

		toStdout, _ := cmd.Flags().GetBool("stdout")
		if toStdout {
			_, err := os.Stdout.Write(append(out, '\n'))
			return err
		}

		dir, _ := cmd.Flags().GetString("out")
		path := filepath.Join(dir, t.ExportFileName())
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return eris.Wrapf(err, "export: write %s", path)
		}
		fmt.Printf("Exported %s to %s\n", t.ID, path)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		tpls, err := a.store.ListTemplates(ctx)
		if err != nil {
			return err
		}
		if len(tpls) == 0 {
			fmt.Fprintln(os.Stderr, "No templates found.")
			return nil
		}
		formatTemplateList(os.Stdout, tpls)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <template-id>",
	Short: "Delete a stored template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if err := a.store.DeleteTemplate(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	loadCmd.Flags().String("id", "", "template id (overrides the file)")
	loadCmd.Flags().Bool("inactive", false, "store the template as inactive")

	seedCmd.Flags().Bool("overwrite", false, "replace stored templates with the same id")

	exportCmd.Flags().String("out", ".", "output directory")
	exportCmd.Flags().Bool("stdout", false, "write to stdout instead of a file")

	rootCmd.AddCommand(loadCmd, seedCmd, exportCmd, listCmd, deleteCmd)
}
