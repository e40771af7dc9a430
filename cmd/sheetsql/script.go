package main

import "strings"

// splitStatements splits a script at semicolons outside quotes and line
// comments. Empty statements are dropped.
func splitStatements(script string) []string {
	var out []string
	start := 0
	flush := func(end int) {
		if stmt := strings.TrimSpace(script[start:end]); stmt != "" && !isComment(stmt) {
			out = append(out, stmt)
		}
		start = end + 1
	}

	for i := 0; i < len(script); i++ {
		switch c := script[i]; c {
		case '\'', '"', '`':
			for i++; i < len(script) && script[i] != c; i++ {
			}
		case '-':
			if i+1 < len(script) && script[i+1] == '-' {
				for i < len(script) && script[i] != '\n' {
					i++
				}
			}
		case ';':
			flush(i)
		}
	}
	if start < len(script) {
		flush(len(script))
	}
	return out
}

// isComment reports whether stmt holds nothing but line comments
func isComment(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
