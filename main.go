package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macro-tracker-api/internal/config"
	"macro-tracker-api/internal/logging"
)

var (
	configFile string
	envFile    string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "macro-tracker",
	Short: "Track meals, macros and daily nutrition targets",
	Long: `macro-tracker stores meals with their ingredients and macros, groups them
by day and reports progress against daily min/max targets.

Run without a subcommand to start the HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile, configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format: json, csv or pdf")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file, - for stdout")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first day to include (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last day to include (YYYY-MM-DD)")

	reportCmd.Flags().IntVarP(&reportDays, "days", "d", 7, "number of days to show, ending today")

	rootCmd.AddCommand(serveCmd, exportCmd, backupCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
