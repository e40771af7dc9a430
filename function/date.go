package function

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/nao1215/sheetsql/domain/model"
)

func (r *Registry) dateFunctions() []*Function {
	return []*Function{
		{Name: "NOW", MinArgs: 0, MaxArgs: 0, ReturnType: model.DataTypeDateTime, Eval: func([]any) (any, error) {
			return r.now().UTC(), nil
		}},
		{Name: "TODAY", MinArgs: 0, MaxArgs: 0, ReturnType: model.DataTypeDateTime, Eval: func([]any) (any, error) {
			y, m, d := r.now().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}},
		{Name: "DATE_FORMAT", MinArgs: 2, MaxArgs: 2, ReturnType: model.DataTypeText, Eval: dateFormat},
	}
}

// dateFormat renders a date with either a strftime pattern (%Y-%m-%d) or a
// letter pattern (yyyy-MM-dd HH:mm:ss).
func dateFormat(args []any) (any, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	var t time.Time
	switch v := args[0].(type) {
	case time.Time:
		t = v
	case string:
		parsed, ok := model.ParseDateTime(v)
		if !ok {
			return nil, fmt.Errorf("%w: DATE_FORMAT cannot parse %q as a date", ErrInvalidArgument, v)
		}
		t = parsed
	default:
		return nil, fmt.Errorf("%w: DATE_FORMAT expects a date, got %q", ErrInvalidArgument, model.Text(v))
	}

	pattern := model.Text(args[1])
	if strings.Contains(pattern, "%") {
		return strftime.Format(pattern, t), nil
	}
	return t.Format(letterLayout(pattern)), nil
}

// letterTokens maps runs of pattern letters to Go layout elements
var letterTokens = map[string]string{
	"yyyy": "2006",
	"yy":   "06",
	"MMMM": "January",
	"MMM":  "Jan",
	"MM":   "01",
	"M":    "1",
	"dd":   "02",
	"d":    "2",
	"EEEE": "Monday",
	"EEE":  "Mon",
	"HH":   "15",
	"hh":   "03",
	"h":    "3",
	"mm":   "04",
	"m":    "4",
	"ss":   "05",
	"s":    "5",
	"SSS":  "000",
	"a":    "PM",
}

// letterLayout converts a pattern such as "yyyy-MM-dd HH:mm" into a Go layout.
// Text inside single quotes is copied literally.
func letterLayout(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		c := runes[i]
		if c == '\'' {
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				b.WriteRune(runes[j])
				j++
			}
			i = j + 1
			continue
		}
		j := i
		for j < len(runes) && runes[j] == c {
			j++
		}
		run := string(runes[i:j])
		if layout, ok := letterTokens[run]; ok {
			b.WriteString(layout)
		} else {
			b.WriteString(run)
		}
		i = j
	}
	return b.String()
}
