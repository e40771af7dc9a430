package function

import (
	"fmt"
	"math"

	"github.com/nao1215/sheetsql/domain/model"
)

func aggregateFunctions() []*Function {
	return []*Function{
		{Name: "COUNT", MinArgs: 1, MaxArgs: 1, Aggregate: true, ReturnType: model.DataTypeInteger,
			NewAggregator: func() Aggregator { return &countAgg{} }},
		{Name: "SUM", MinArgs: 1, MaxArgs: 1, Aggregate: true, ReturnType: model.DataTypeMixed,
			NewAggregator: func() Aggregator { return &sumAgg{name: "SUM"} }},
		{Name: "AVG", MinArgs: 1, MaxArgs: 1, Aggregate: true, ReturnType: model.DataTypeDecimal,
			NewAggregator: func() Aggregator { return &avgAgg{sum: sumAgg{name: "AVG"}} }},
		{Name: "MAX", MinArgs: 1, MaxArgs: 1, Aggregate: true, ReturnType: model.DataTypeMixed,
			NewAggregator: func() Aggregator { return &extremeAgg{want: 1} }},
		{Name: "MIN", MinArgs: 1, MaxArgs: 1, Aggregate: true, ReturnType: model.DataTypeMixed,
			NewAggregator: func() Aggregator { return &extremeAgg{want: -1} }},
	}
}

// countAgg counts non-NULL values. COUNT(*) feeds it one non-NULL marker per row.
type countAgg struct {
	n int64
}

func (a *countAgg) Add(v any) error {
	if v != nil {
		a.n++
	}
	return nil
}

func (a *countAgg) Result() any {
	return a.n
}

// sumAgg keeps an exact int64 total until a decimal value or an overflow
// forces it to float64.
type sumAgg struct {
	name   string
	i      int64
	f      float64
	allInt bool
	n      int64
}

func (a *sumAgg) Add(v any) error {
	if v == nil {
		return nil
	}
	if a.n == 0 {
		a.allInt = true
	}
	if i, ok := v.(int64); ok && a.allInt {
		if (i > 0 && a.i > math.MaxInt64-i) || (i < 0 && a.i < math.MinInt64-i) {
			a.allInt = false
		} else {
			a.i += i
		}
		a.f += float64(i)
		a.n++
		return nil
	}
	f, ok := model.ToFloat(v)
	if !ok {
		return fmt.Errorf("%w: %s of non-numeric value %q", ErrInvalidArgument, a.name, model.Text(v))
	}
	a.allInt = false
	a.f += f
	a.n++
	return nil
}

func (a *sumAgg) Result() any {
	if a.n == 0 {
		return nil
	}
	if a.allInt {
		return a.i
	}
	return a.f
}

type avgAgg struct {
	sum sumAgg
}

func (a *avgAgg) Add(v any) error {
	return a.sum.Add(v)
}

func (a *avgAgg) Result() any {
	if a.sum.n == 0 {
		return nil
	}
	return a.sum.f / float64(a.sum.n)
}

// extremeAgg keeps the greatest (want=1) or least (want=-1) value.
type extremeAgg struct {
	want int
	best any
}

func (a *extremeAgg) Add(v any) error {
	if v == nil {
		return nil
	}
	if a.best == nil {
		a.best = v
		return nil
	}
	if c, ok := model.Compare(v, a.best); ok && c == a.want {
		a.best = v
	}
	return nil
}

func (a *extremeAgg) Result() any {
	return a.best
}
