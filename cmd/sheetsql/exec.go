package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sheetsql"
)

var scriptFile string

// errStatementFailed marks a script that stopped at a failed statement;
// the failure itself has already been printed.
var errStatementFailed = errors.New("statement failed")

var execCmd = &cobra.Command{
	Use:   "exec [sql]",
	Short: "Execute SQL statements",
	Long: `Exec runs the statements given as arguments, or read from --file, in
order. Statements are separated by semicolons. Execution stops at the first
failed statement.

Example:
  sheetsql exec -d ./books -w sales "SELECT region, SUM(amount) FROM orders GROUP BY region"
  sheetsql exec -d ./books -f migrate.sql`,
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&scriptFile, "file", "f", "", "read statements from a file; - reads stdin")
}

func runExec(cmd *cobra.Command, args []string) error {
	var script string
	switch {
	case scriptFile == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		script = string(b)
	case scriptFile != "":
		b, err := os.ReadFile(scriptFile)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		script = string(b)
	case len(args) > 0:
		script = strings.Join(args, " ")
	default:
		return errors.New("no statements given")
	}

	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(script) {
		res := engine.Query(cmd.Context(), sess, stmt, sheetsql.ExecOptions{UseCache: useCache})
		if err := printResult(cmd.OutOrStdout(), res, output); err != nil {
			return err
		}
		if !res.Success {
			return errStatementFailed
		}
	}
	return nil
}

// newSession creates a session and selects the --workbook, if given
func newSession(cmd *cobra.Command) (*sheetsql.Session, error) {
	sess := engine.NewSession()
	if workbook == "" {
		return sess, nil
	}
	res := engine.Query(cmd.Context(), sess, "USE "+workbook, sheetsql.ExecOptions{})
	if err := sheetsql.ResultError(res); err != nil {
		return nil, err
	}
	return sess, nil
}
