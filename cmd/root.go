package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-templates/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "invoice-templates",
	Short:        "Invoice template matching and field extraction",
	Long:         "Manages vendor invoice templates, identifies which template fits an OCR'd invoice, and extracts typed, validated fields from it.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.LoadFile(path)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyFlagOverrides(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.L().Debug("config loaded",
			zap.String("store", cfg.Store.Driver),
			zap.String("ocr", cfg.OCR.Provider),
			zap.Int("workers", cfg.Engine.WorkerCount()),
		)
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

// applyFlagOverrides lets explicitly set persistent flags win over file
// and environment values.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("store") {
		c.Store.Driver, _ = flags.GetString("store")
	}
	if flags.Changed("include-inactive") {
		c.Engine.IncludeInactive, _ = flags.GetBool("include-inactive")
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default ./config.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("store", "sqlite", "template store driver: sqlite, postgres, dir")
	pf.Bool("include-inactive", false, "let inactive templates take part in classification")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
