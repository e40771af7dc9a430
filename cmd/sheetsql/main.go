// Package main provides the sheetsql CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nao1215/sheetsql"
)

var (
	// configFile is set by the --config flag.
	configFile string
	baseDir    string
	workbook   string
	output     string
	useCache   bool
	verbose    bool

	// engine is initialized on startup and closed after the command.
	engine *sheetsql.Engine
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sheetsql",
	Short: "Query spreadsheet workbooks with SQL",
	Long: `sheetsql runs SQL against spreadsheet workbooks. Workbooks are
databases, sheets are tables and header rows define the columns.

Workbooks live in the --base-dir directory (XLSX files, or directories of
CSV, TSV and Parquet sheets). Without a base directory everything stays in
memory for the lifetime of the command.`,
	SilenceUsage:      true,
	PersistentPreRunE: initEngine,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeEngine()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml); SHEETSQL_* environment variables override it")
	flags.StringVarP(&baseDir, "base-dir", "d", "", "directory holding the workbooks")
	flags.StringVarP(&workbook, "workbook", "w", "", "workbook to run statements in")
	flags.StringVarP(&output, "output", "o", "table", "output format: table, csv or json")
	flags.BoolVar(&useCache, "cache", true, "serve SELECT statements from the result cache")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every statement")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(cacheCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "sheetsql v0.1.0")
	},
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// initEngine loads the config and starts the engine
func initEngine(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := sheetsql.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("base-dir") {
		cfg.Storage.BaseDir = baseDir
	}

	if logger, err = newLogger(); err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	if engine, err = sheetsql.New(cfg, sheetsql.WithLogger(logger)); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	return nil
}

// closeEngine stops the engine and flushes the logger
func closeEngine() error {
	var err error
	if engine != nil {
		err = engine.Close()
	}
	if logger != nil {
		_ = logger.Sync()
	}
	return err
}
