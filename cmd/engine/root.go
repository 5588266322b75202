package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lcamail-engine/internal/config"
	"lcamail-engine/internal/logging"
)

const dataDirEnv = "LCA_ENGINE_DATA_DIR"

var (
	dataDir    string
	defaultCfg string
	verbose    bool

	cfg        config.Config
	cfgPath    string
	validation config.Validation
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lcamail-engine",
	Short: "LCA job search and outreach engine",
	Long: `lcamail-engine loads a CSV of H-1B LCA disclosure records, serves filtered
pages of it over HTTP and sends paced, tracked outreach email to employer
contacts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		// Engine data dir: flag, then env (the desktop shell passes one), then cwd.
		if dataDir == "" {
			dataDir = os.Getenv(dataDirEnv)
		}
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir %s: %w", dataDir, err)
		}

		config.LoadDotEnv(".env", filepath.Join(dataDir, ".env"))

		cfgPath, err = config.EnsureUserConfig(dataDir, defaultCfg)
		if err != nil {
			return fmt.Errorf("config bootstrap: %w", err)
		}
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", cfgPath, err)
		}
		loaded.App.DataDir = dataDir
		cfg, validation = config.NormalizeAndValidate(loaded)
		for _, w := range validation.Warnings {
			logger.Warn("config", zap.String("warning", w))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides "+dataDirEnv+")")
	rootCmd.PersistentFlags().StringVar(&defaultCfg, "default-config", filepath.Join("config", "config.yml"), "config copied into the data dir on first run")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
