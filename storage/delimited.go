package storage

import (
	"encoding/csv"
	"fmt"
	"io"
)

func delimiter(f Format) rune {
	if f == FormatTSV {
		return '\t'
	}
	return ','
}

// readDelimited reads a CSV or TSV sheet file
func readDelimited(path string, f Format, c CompressionType) (grid, error) {
	r, cleanup, err := openCompressed(path, c)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cleanup() }()

	reader := csv.NewReader(r)
	reader.Comma = delimiter(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = f == FormatTSV
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f, err)
	}
	return grid(records), nil
}

// writeDelimited replaces a CSV or TSV sheet file
func writeDelimited(path string, f Format, c CompressionType, g grid) error {
	return writeAtomically(path, c, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		writer.Comma = delimiter(f)
		if err := writer.WriteAll(g); err != nil {
			return fmt.Errorf("failed to write %s: %w", f, err)
		}
		return nil
	})
}
