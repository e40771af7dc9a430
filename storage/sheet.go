package storage

import (
	"strings"

	"github.com/nao1215/sheetsql/domain/model"
)

// grid is the raw text of a sheet as rows of cells
type grid [][]string

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// toSheetData turns raw rows into typed sheet data. Leading empty rows are
// skipped; the first non-empty row is the header. Empty rows directly below
// the header move DataStartRow down; trailing empty rows are dropped.
func (g grid) toSheetData() *model.SheetData {
	headerRow := 0
	for headerRow < len(g) && isEmptyRow(g[headerRow]) {
		headerRow++
	}
	if headerRow == len(g) {
		return &model.SheetData{Columns: []model.Column{}, Rows: [][]any{}, DataStartRow: 1}
	}
	header := g[headerRow]

	dataStart := headerRow + 1
	for dataStart < len(g) && isEmptyRow(g[dataStart]) {
		dataStart++
	}
	end := len(g)
	for end > dataStart && isEmptyRow(g[end-1]) {
		end--
	}
	records := make([][]string, 0, end-dataStart)
	if dataStart < end {
		records = g[dataStart:end]
	}
	if len(records) == 0 {
		// nothing below the header: keep the canonical offset
		dataStart = headerRow + 1
	}

	columns := model.InferColumns(header, records)
	rows := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, len(columns))
		for j := range columns {
			if j < len(record) {
				row[j] = model.ParseCell(record[j], columns[j].Type)
			}
		}
		rows[i] = row
	}
	return &model.SheetData{
		Columns:      columns,
		Rows:         rows,
		HeaderRow:    headerRow,
		DataStartRow: dataStart,
	}
}

// fromSheetData renders sheet data as raw rows, padding the header and data
// offsets with empty rows.
func fromSheetData(data *model.SheetData) grid {
	width := len(data.Columns)
	headerRow := max(data.HeaderRow, 0)
	dataStart := max(data.DataStartRow, headerRow+1)

	out := make(grid, 0, dataStart+len(data.Rows))
	for range headerRow {
		out = append(out, make([]string, width))
	}
	header := make([]string, width)
	for i, c := range data.Columns {
		header[i] = c.Name
	}
	out = append(out, header)
	for len(out) < dataStart {
		out = append(out, make([]string, width))
	}
	for _, row := range data.Rows {
		record := make([]string, width)
		for i := 0; i < width && i < len(row); i++ {
			record[i] = model.Text(row[i])
		}
		out = append(out, record)
	}
	return out
}
