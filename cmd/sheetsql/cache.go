package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var clearSheet string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached results",
	Long: `Clear removes cached results from every tier: all of them, those of one
workbook (--workbook), or those that read one sheet (--workbook and --sheet).
Clearing an empty cache succeeds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var err error
		switch {
		case clearSheet != "" && workbook == "":
			return errors.New("--sheet requires --workbook")
		case clearSheet != "":
			err = engine.ClearSheet(ctx, workbook, clearSheet)
		case workbook != "":
			err = engine.ClearWorkbook(ctx, workbook)
		default:
			err = engine.ClearAll(ctx)
		}
		if err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-tier cache counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats := engine.CacheStats()
		if stats == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "cache disabled")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIER\tHITS\tMISSES\tPUTS\tINVALIDATIONS\tERRORS")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Name, s.Hits, s.Misses, s.Puts, s.Invalidations, s.Errors)
		}
		return w.Flush()
	},
}

func init() {
	// the persistent --workbook flag selects the scope of clear
	cacheClearCmd.Flags().StringVar(&clearSheet, "sheet", "", "sheet whose cached results are cleared")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}
