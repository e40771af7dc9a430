package function

import (
	"fmt"
	"math"

	"github.com/nao1215/sheetsql/domain/model"
)

func miscFunctions() []*Function {
	return []*Function{
		{Name: "ABS", MinArgs: 1, MaxArgs: 1, ReturnType: model.DataTypeMixed, Eval: abs},
		{Name: "ROUND", MinArgs: 1, MaxArgs: 2, ReturnType: model.DataTypeDecimal, Eval: round},
		{Name: "COALESCE", MinArgs: 1, MaxArgs: Variadic, ReturnType: model.DataTypeMixed, Eval: coalesce},
		{Name: "IFNULL", MinArgs: 2, MaxArgs: 2, ReturnType: model.DataTypeMixed, Eval: coalesce},
	}
}

func abs(args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	if i, ok := args[0].(int64); ok {
		if i == math.MinInt64 {
			return math.Abs(float64(i)), nil
		}
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	f, ok := model.ToFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("%w: ABS of non-numeric value %q", ErrInvalidArgument, model.Text(args[0]))
	}
	return math.Abs(f), nil
}

// round rounds half away from zero to the given number of decimal places.
func round(args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	f, ok := model.ToFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("%w: ROUND of non-numeric value %q", ErrInvalidArgument, model.Text(args[0]))
	}
	places := int64(0)
	if len(args) == 2 {
		if places, ok = model.ToInt(args[1]); !ok || places < 0 || places > 15 {
			return nil, fmt.Errorf("%w: ROUND places must be an integer between 0 and 15", ErrInvalidArgument)
		}
	}
	scale := math.Pow10(int(places))
	return math.Round(f*scale) / scale, nil
}

func coalesce(args []any) (any, error) {
	for _, arg := range args {
		if arg != nil {
			return arg, nil
		}
	}
	return nil, nil
}
