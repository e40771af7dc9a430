package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sheetsql"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive SQL shell",
	Long: `Repl reads statements from stdin until EOF or "exit". A statement ends
with a semicolon and may span several lines. The session keeps its current
workbook between statements.`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func runREPL(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	var pending strings.Builder

	prompt := func() {
		if pending.Len() > 0 {
			fmt.Fprint(out, "      -> ")
			return
		}
		name := sess.CurrentWorkbook()
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(out, "sheetsql [%s]> ", name)
	}

	for prompt(); scanner.Scan(); prompt() {
		line := strings.TrimSpace(scanner.Text())
		if pending.Len() == 0 && (line == "exit" || line == "quit") {
			break
		}
		if line == "" {
			continue
		}
		pending.WriteString(line)
		pending.WriteString("\n")
		if !strings.HasSuffix(line, ";") {
			continue
		}

		for _, stmt := range splitStatements(pending.String()) {
			res := engine.Query(cmd.Context(), sess, stmt, sheetsql.ExecOptions{UseCache: useCache})
			if err := printResult(out, res, output); err != nil {
				return err
			}
		}
		pending.Reset()
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
