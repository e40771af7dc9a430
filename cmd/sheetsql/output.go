package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/nao1215/sheetsql/domain/model"
)

// nullText is how table output shows NULL
const nullText = "NULL"

// jsonResult is the --output json form of a result. Rows are arrays in
// column order so that the order survives encoding.
type jsonResult struct {
	Statement    string   `json:"statement"`
	Success      bool     `json:"success"`
	ErrorKind    string   `json:"errorKind,omitempty"`
	Error        string   `json:"error,omitempty"`
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	AffectedRows int64    `json:"affectedRows"`
	DurationMS   float64  `json:"durationMs"`
	FromCache    bool     `json:"fromCache"`
}

// printResult writes a result in the given format: table, csv or json
func printResult(w io.Writer, res *model.QueryResult, format string) error {
	switch format {
	case "json":
		return printJSON(w, res)
	case "csv":
		if !res.Success {
			return printFailure(w, res)
		}
		return printCSV(w, res)
	case "table", "":
		if !res.Success {
			return printFailure(w, res)
		}
		return printTable(w, res)
	default:
		return fmt.Errorf("unknown output format %q (valid: table, csv, json)", format)
	}
}

func printFailure(w io.Writer, res *model.QueryResult) error {
	_, err := fmt.Fprintf(w, "ERROR %s: %s\n", res.ErrorKind, res.Error)
	return err
}

func printJSON(w io.Writer, res *model.QueryResult) error {
	out := jsonResult{
		Statement:    res.StatementType,
		Success:      res.Success,
		ErrorKind:    string(res.ErrorKind),
		Error:        res.Error,
		AffectedRows: res.AffectedRows,
		DurationMS:   float64(res.Duration.Microseconds()) / 1000,
		FromCache:    res.FromCache,
	}
	if res.Success && len(res.Columns) > 0 {
		out.Columns = res.Labels()
		out.Rows = make([][]any, len(res.Rows))
		for i, row := range res.Rows {
			values := make([]any, len(out.Columns))
			for j, label := range out.Columns {
				values[j] = row[label]
			}
			out.Rows[i] = values
		}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printCSV(w io.Writer, res *model.QueryResult) error {
	if len(res.Columns) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	labels := res.Labels()
	if err := cw.Write(labels); err != nil {
		return err
	}
	for _, row := range res.Rows {
		record := make([]string, len(labels))
		for i, label := range labels {
			record[i] = model.Text(row[label])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func printTable(w io.Writer, res *model.QueryResult) error {
	if len(res.Columns) == 0 {
		_, err := fmt.Fprintf(w, "%s: %d row(s) affected (%s)\n", res.StatementType, res.AffectedRows, res.Duration)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	labels := res.Labels()
	fmt.Fprintln(tw, strings.Join(labels, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(labels))
		for i, label := range labels {
			if v := row[label]; v != nil {
				cells[i] = model.Text(v)
			} else {
				cells[i] = nullText
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	suffix := ""
	if res.FromCache {
		suffix = ", cached"
	}
	_, err := fmt.Fprintf(w, "%d row(s) (%s%s)\n", len(res.Rows), res.Duration, suffix)
	return err
}
