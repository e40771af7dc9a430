package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Cells are written with an explicit kind so that int64, float64, bool and
// time values survive the trip through text.
const (
	cellNull   = "null"
	cellInt    = "int"
	cellFloat  = "float"
	cellString = "string"
	cellBool   = "bool"
	cellTime   = "time"
)

type wireCell struct {
	Kind  string `json:"k"`
	Value string `json:"v,omitempty"`
}

type wireColumn struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Aggregated bool   `json:"aggregated,omitempty"`
}

type wireResult struct {
	StatementType string       `json:"statementType"`
	Columns       []wireColumn `json:"columns"`
	Rows          [][]wireCell `json:"rows"`
	AffectedRows  int64        `json:"affectedRows"`
	DurationNanos int64        `json:"durationNanos"`
	Success       bool         `json:"success"`
	ErrorKind     string       `json:"errorKind,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// MarshalBinary encodes the result as JSON with typed cells.
func (r *QueryResult) MarshalBinary() ([]byte, error) {
	w := wireResult{
		StatementType: r.StatementType,
		Columns:       make([]wireColumn, len(r.Columns)),
		Rows:          make([][]wireCell, len(r.Rows)),
		AffectedRows:  r.AffectedRows,
		DurationNanos: int64(r.Duration),
		Success:       r.Success,
		ErrorKind:     string(r.ErrorKind),
		Error:         r.Error,
	}
	for i, c := range r.Columns {
		w.Columns[i] = wireColumn{Name: c.Name, Label: c.Label, Type: c.Type.String(), Aggregated: c.Aggregated}
	}
	for i, row := range r.Rows {
		cells := make([]wireCell, len(r.Columns))
		for j, c := range r.Columns {
			cell, err := encodeCell(row[c.Label])
			if err != nil {
				return nil, err
			}
			cells[j] = cell
		}
		w.Rows[i] = cells
	}
	return json.Marshal(w)
}

// UnmarshalBinary decodes a payload written by MarshalBinary.
func (r *QueryResult) UnmarshalBinary(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptResult, err)
	}

	out := QueryResult{
		StatementType: w.StatementType,
		Columns:       make([]ColumnDef, len(w.Columns)),
		Rows:          make([]map[string]any, len(w.Rows)),
		AffectedRows:  w.AffectedRows,
		Duration:      time.Duration(w.DurationNanos),
		Success:       w.Success,
		ErrorKind:     ErrorKind(w.ErrorKind),
		Error:         w.Error,
	}
	for i, c := range w.Columns {
		out.Columns[i] = ColumnDef{Name: c.Name, Label: c.Label, Type: ParseDataType(c.Type), Aggregated: c.Aggregated}
	}
	for i, cells := range w.Rows {
		if len(cells) != len(out.Columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrCorruptResult, i, len(cells), len(out.Columns))
		}
		row := make(map[string]any, len(cells))
		for j, cell := range cells {
			v, err := decodeCell(cell)
			if err != nil {
				return err
			}
			row[out.Columns[j].Label] = v
		}
		out.Rows[i] = row
	}
	*r = out
	return nil
}

func encodeCell(v any) (wireCell, error) {
	switch x := v.(type) {
	case nil:
		return wireCell{Kind: cellNull}, nil
	case int64:
		return wireCell{Kind: cellInt, Value: strconv.FormatInt(x, 10)}, nil
	case int:
		return wireCell{Kind: cellInt, Value: strconv.Itoa(x)}, nil
	case float64:
		return wireCell{Kind: cellFloat, Value: strconv.FormatFloat(x, 'g', -1, 64)}, nil
	case string:
		return wireCell{Kind: cellString, Value: x}, nil
	case bool:
		return wireCell{Kind: cellBool, Value: strconv.FormatBool(x)}, nil
	case time.Time:
		return wireCell{Kind: cellTime, Value: x.UTC().Format(time.RFC3339Nano)}, nil
	default:
		return wireCell{}, fmt.Errorf("%w: unsupported cell type %T", ErrCorruptResult, v)
	}
}

func decodeCell(c wireCell) (any, error) {
	var (
		v   any
		err error
	)
	switch c.Kind {
	case cellNull:
		return nil, nil
	case cellInt:
		v, err = strconv.ParseInt(c.Value, 10, 64)
	case cellFloat:
		v, err = strconv.ParseFloat(c.Value, 64)
	case cellString:
		return c.Value, nil
	case cellBool:
		v, err = strconv.ParseBool(c.Value)
	case cellTime:
		var ts time.Time
		ts, err = time.Parse(time.RFC3339Nano, c.Value)
		v = ts.UTC()
	default:
		return nil, fmt.Errorf("%w: unknown cell kind %q", ErrCorruptResult, c.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptResult, err)
	}
	return v, nil
}
