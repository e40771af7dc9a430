package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/sheetsql/domain/model"
)

// defaultXLSXSheet is the sheet excelize.NewFile creates
const defaultXLSXSheet = "Sheet1"

// xlsxSheets lists the sheets of an XLSX workbook in file order
func xlsxSheets(path string) ([]string, error) {
	xlsxFile, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx %s: %w", path, err)
	}
	defer func() {
		_ = xlsxFile.Close() // Ignore close error
	}()
	return xlsxFile.GetSheetList(), nil
}

// readXLSX reads the raw rows of the named sheets. Sheets missing from the
// file are reported through ErrSheetNotFound.
func readXLSX(path string, sheets ...string) (map[string]grid, error) {
	xlsxFile, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx %s: %w", path, err)
	}
	defer func() {
		_ = xlsxFile.Close() // Ignore close error
	}()

	present := xlsxFile.GetSheetList()
	if len(sheets) == 0 {
		sheets = present
	}
	out := make(map[string]grid, len(sheets))
	for _, name := range sheets {
		if !slices.Contains(present, name) {
			return nil, fmt.Errorf("%w: %s in %s", ErrSheetNotFound, name, path)
		}
		rows, err := xlsxFile.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		out[name] = grid(rows)
	}
	return out, nil
}

// writeXLSX replaces one sheet of the workbook at path, creating the file
// when it does not exist. Other sheets are carried over in file order; cell
// styles are not preserved.
func writeXLSX(path, sheet string, data *model.SheetData) error {
	order := []string{}
	existing := map[string]grid{}
	if _, err := os.Stat(path); err == nil {
		order, err = xlsxSheets(path)
		if err != nil {
			return err
		}
		existing, err = readXLSX(path, order...)
		if err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !slices.Contains(order, sheet) {
		order = append(order, sheet)
	}

	out := excelize.NewFile()
	defer func() {
		_ = out.Close()
	}()
	for _, name := range order {
		if _, err := out.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		var err error
		if name == sheet {
			err = setXLSXData(out, name, data)
		} else {
			err = setXLSXRows(out, name, existing[name])
		}
		if err != nil {
			return err
		}
	}
	if !slices.Contains(order, defaultXLSXSheet) {
		if err := out.DeleteSheet(defaultXLSXSheet); err != nil {
			return fmt.Errorf("failed to remove default sheet: %w", err)
		}
	}
	if idx, err := out.GetSheetIndex(order[0]); err == nil && idx >= 0 {
		out.SetActiveSheet(idx)
	}

	return writeAtomically(path, CompressionNone, func(w io.Writer) error {
		if err := out.Write(w); err != nil {
			return fmt.Errorf("failed to write xlsx: %w", err)
		}
		return nil
	})
}

func setXLSXRows(f *excelize.File, sheet string, rows grid) error {
	for i, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := setXLSXRow(f, sheet, i, values); err != nil {
			return err
		}
	}
	return nil
}

// setXLSXData writes the header at HeaderRow and data from DataStartRow.
// Numbers keep numeric cells; everything else is written as its text form.
func setXLSXData(f *excelize.File, sheet string, data *model.SheetData) error {
	headerRow := max(data.HeaderRow, 0)
	dataStart := max(data.DataStartRow, headerRow+1)

	header := make([]any, len(data.Columns))
	for i, c := range data.Columns {
		header[i] = c.Name
	}
	if err := setXLSXRow(f, sheet, headerRow, header); err != nil {
		return err
	}
	for i, row := range data.Rows {
		values := make([]any, len(data.Columns))
		for j := 0; j < len(values) && j < len(row); j++ {
			switch v := row[j].(type) {
			case nil:
			case int64, float64:
				values[j] = v
			default:
				values[j] = model.Text(v)
			}
		}
		if err := setXLSXRow(f, sheet, dataStart+i, values); err != nil {
			return err
		}
	}
	return nil
}

// setXLSXRow writes values starting at column A of the zero-based row
func setXLSXRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row+1)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row+1, sheet, err)
	}
	return nil
}
