package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the workbooks in the base directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := engine.Workbooks(cmd.Context())
		if err != nil {
			return fmt.Errorf("list workbooks: %w", err)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WORKBOOK\tFORMAT\tSHEETS\tLOCATION")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, info.Format, strings.Join(info.Sheets, ","), info.Location)
		}
		return w.Flush()
	},
}
