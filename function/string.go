package function

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/sheetsql/domain/model"
)

func stringFunctions() []*Function {
	return []*Function{
		{Name: "CONCAT", MinArgs: 1, MaxArgs: Variadic, ReturnType: model.DataTypeText, Eval: concat},
		{Name: "SUBSTRING", MinArgs: 2, MaxArgs: 3, ReturnType: model.DataTypeText, Eval: substring},
		{Name: "UPPER", MinArgs: 1, MaxArgs: 1, ReturnType: model.DataTypeText, Eval: textFunc(strings.ToUpper)},
		{Name: "LOWER", MinArgs: 1, MaxArgs: 1, ReturnType: model.DataTypeText, Eval: textFunc(strings.ToLower)},
		{Name: "TRIM", MinArgs: 1, MaxArgs: 1, ReturnType: model.DataTypeText, Eval: textFunc(strings.TrimSpace)},
		{Name: "LENGTH", MinArgs: 1, MaxArgs: 1, ReturnType: model.DataTypeInteger, Eval: length},
	}
}

// concat joins its arguments as text, skipping NULLs.
func concat(args []any) (any, error) {
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(model.Text(arg))
	}
	return b.String(), nil
}

// substring extracts characters using a 1-based start position.
func substring(args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	runes := []rune(model.Text(args[0]))

	start, ok := model.ToInt(args[1])
	if !ok {
		return nil, fmt.Errorf("%w: SUBSTRING start must be an integer, got %q", ErrInvalidArgument, model.Text(args[1]))
	}
	if start < 1 {
		return nil, fmt.Errorf("%w: SUBSTRING start must be >= 1, got %d", ErrInvalidArgument, start)
	}
	from := int(min(start-1, int64(len(runes))))

	to := len(runes)
	if len(args) == 3 {
		n, ok := model.ToInt(args[2])
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: SUBSTRING length must be a non-negative integer, got %q", ErrInvalidArgument, model.Text(args[2]))
		}
		to = int(min(int64(from)+n, int64(len(runes))))
	}
	return string(runes[from:to]), nil
}

func textFunc(fn func(string) string) ScalarFunc {
	return func(args []any) (any, error) {
		if args[0] == nil {
			return nil, nil
		}
		return fn(model.Text(args[0])), nil
	}
}

func length(args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return int64(utf8.RuneCountInString(model.Text(args[0]))), nil
}
