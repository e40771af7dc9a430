// Package function provides the catalog of SQL functions callable from
// statements: aggregates (COUNT, SUM, AVG, MAX, MIN), string functions and
// date functions.
package function

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/sheetsql/domain/model"
)

var (
	// ErrInvalidArgument is returned when a function receives arguments it
	// cannot evaluate.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownFunction is returned for names that are not registered
	ErrUnknownFunction = errors.New("unknown function")
)

// Variadic marks a function without an upper argument bound
const Variadic = -1

// ScalarFunc evaluates a scalar function over its argument values.
type ScalarFunc func(args []any) (any, error)

// Aggregator accumulates the values of one group.
type Aggregator interface {
	Add(v any) error
	Result() any
}

// Function describes one registered function.
type Function struct {
	Name      string
	MinArgs   int
	MaxArgs   int
	Aggregate bool
	// ReturnType is DataTypeMixed when the type follows the arguments.
	ReturnType model.DataType
	// Eval is set for scalar functions.
	Eval ScalarFunc
	// NewAggregator is set for aggregate functions.
	NewAggregator func() Aggregator
}

// CheckArity validates the argument count
func (f *Function) CheckArity(n int) error {
	if n < f.MinArgs || (f.MaxArgs != Variadic && n > f.MaxArgs) {
		switch {
		case f.MaxArgs == Variadic:
			return fmt.Errorf("%w: %s expects at least %d argument(s), got %d", ErrInvalidArgument, f.Name, f.MinArgs, n)
		case f.MinArgs == f.MaxArgs:
			return fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrInvalidArgument, f.Name, f.MinArgs, n)
		default:
			return fmt.Errorf("%w: %s expects %d to %d arguments, got %d", ErrInvalidArgument, f.Name, f.MinArgs, f.MaxArgs, n)
		}
	}
	return nil
}

// Call evaluates a scalar function.
func (f *Function) Call(args []any) (any, error) {
	if f.Aggregate {
		return nil, fmt.Errorf("%w: %s is an aggregate function", ErrInvalidArgument, f.Name)
	}
	if err := f.CheckArity(len(args)); err != nil {
		return nil, err
	}
	return f.Eval(args)
}

// Apply runs an aggregate function over a whole value set.
func (f *Function) Apply(values []any) (any, error) {
	if !f.Aggregate {
		return nil, fmt.Errorf("%w: %s is not an aggregate function", ErrInvalidArgument, f.Name)
	}
	agg := f.NewAggregator()
	for _, v := range values {
		if err := agg.Add(v); err != nil {
			return nil, err
		}
	}
	return agg.Result(), nil
}

// Registry is a case-insensitive name to function catalog. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]*Function
	now   func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithClock replaces the clock used by NOW and TODAY.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a registry holding the built-in functions.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs: make(map[string]*Function),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, f := range aggregateFunctions() {
		r.mustRegister(f)
	}
	for _, f := range stringFunctions() {
		r.mustRegister(f)
	}
	for _, f := range r.dateFunctions() {
		r.mustRegister(f)
	}
	for _, f := range miscFunctions() {
		r.mustRegister(f)
	}
	return r
}

// Register adds a function. Registering a name twice replaces the earlier one.
func (r *Registry) Register(f *Function) error {
	if f == nil || f.Name == "" {
		return fmt.Errorf("%w: function must have a name", ErrInvalidArgument)
	}
	if f.Aggregate && f.NewAggregator == nil || !f.Aggregate && f.Eval == nil {
		return fmt.Errorf("%w: function %s has no implementation", ErrInvalidArgument, f.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToUpper(f.Name)] = f
	return nil
}

func (r *Registry) mustRegister(f *Function) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Lookup finds a function by name, ignoring case.
func (r *Registry) Lookup(name string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[strings.ToUpper(name)]
	return f, ok
}

// Has reports whether the name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// IsAggregate reports whether the name is a registered aggregate function
func (r *Registry) IsAggregate(name string) bool {
	f, ok := r.Lookup(name)
	return ok && f.Aggregate
}

// Call evaluates the named scalar function
func (r *Registry) Call(name string, args []any) (any, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return f.Call(args)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
