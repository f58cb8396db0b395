package pipeline

import (
	"context"
	"reflect"

	"github.com/kbukum/persist/errors"
)

// Pair is the element type of a Builder pipeline. Key carries correlation
// (an entity, an index) while Value carries the data being transformed.
type Pair struct {
	Key   any
	Value any
}

// StepFunc is one stage of a Builder. It wraps the upstream iterator and
// returns the downstream one. A StepFunc must not keep state between runs;
// everything it needs lives in the iterator it returns.
type StepFunc func(ctx context.Context, in Iterator[Pair]) Iterator[Pair]

// TypeCheck describes the element type ExpectType enforces.
type TypeCheck struct {
	Name  string
	Match func(v any) bool
}

// TypeOf builds a TypeCheck accepting values assignable to T.
// For an interface T this means "implements T". nil never matches, and
// neither does a typed nil pointer, map, slice, func or channel.
func TypeOf[T any]() TypeCheck {
	return TypeCheck{
		Name: reflect.TypeFor[T]().String(),
		Match: func(v any) bool {
			_, ok := v.(T)
			return ok && !isNil(v)
		},
	}
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

type step struct {
	name string
	stub bool
	fn   StepFunc
}

// Builder is an ordered, immutable list of pipeline steps. Every method
// returns a new Builder; the receiver is never modified, so a Builder can be
// shared and extended from several places.
//
// Steps may be stubs: named passthrough placeholders that are later replaced
// with Unstub. This is how callers inject behaviour (a persist function, say)
// into a predefined sequence.
type Builder struct {
	steps []step
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) with(s step) *Builder {
	steps := make([]step, len(b.steps), len(b.steps)+1)
	copy(steps, b.steps)
	return &Builder{steps: append(steps, s)}
}

// Then appends a raw stream step.
func (b *Builder) Then(fn StepFunc) *Builder {
	return b.with(step{fn: fn})
}

// ExpectType appends a guard that rejects any element whose value does not
// satisfy check. The guard is a barrier: it pulls the whole upstream before
// yielding anything, so a mismatch is reported before any later step runs.
func (b *Builder) ExpectType(check TypeCheck) *Builder {
	return b.with(step{
		name: "expect " + check.Name,
		fn: func(_ context.Context, in Iterator[Pair]) Iterator[Pair] {
			return &guardIter{source: in, check: check}
		},
	})
}

// Map appends a step replacing each value with fn(value, key). Keys are kept.
func (b *Builder) Map(fn func(ctx context.Context, value, key any) (any, error)) *Builder {
	return b.Then(func(_ context.Context, in Iterator[Pair]) Iterator[Pair] {
		return &mapIter[Pair, Pair]{source: in, fn: func(ctx context.Context, p Pair) (Pair, error) {
			v, err := fn(ctx, p.Value, p.Key)
			if err != nil {
				return Pair{}, err
			}
			return Pair{Key: p.Key, Value: v}, nil
		}}
	})
}

// MapPair appends a step replacing each whole Pair, so keys can change too.
func (b *Builder) MapPair(fn func(ctx context.Context, p Pair) (Pair, error)) *Builder {
	return b.Then(func(_ context.Context, in Iterator[Pair]) Iterator[Pair] {
		return &mapIter[Pair, Pair]{source: in, fn: fn}
	})
}

// Apply appends a side-effect step; elements pass through unchanged.
func (b *Builder) Apply(fn func(ctx context.Context, value, key any) error) *Builder {
	return b.Then(func(_ context.Context, in Iterator[Pair]) Iterator[Pair] {
		return &tapIter[Pair]{source: in, fn: func(ctx context.Context, p Pair) error {
			return fn(ctx, p.Value, p.Key)
		}}
	})
}

// Keys appends a step that replaces each value with its key.
func (b *Builder) Keys() *Builder {
	return b.Map(func(_ context.Context, _, key any) (any, error) {
		return key, nil
	})
}

// Stub appends a named placeholder that passes elements through until it is
// replaced with Unstub. If the last step already is an unbound stub with the
// same name the receiver is returned as is.
func (b *Builder) Stub(name string) *Builder {
	if n := len(b.steps); n > 0 {
		if last := b.steps[n-1]; last.stub && last.name == name {
			return b
		}
	}
	return b.with(step{name: name, stub: true, fn: passthrough})
}

// Unstub returns a Builder in which every unbound stub called name is
// replaced by fn. It fails with INVALID_OPERATION when no such stub exists.
func (b *Builder) Unstub(name string, fn StepFunc) (*Builder, error) {
	steps := make([]step, len(b.steps))
	found := false
	for i, s := range b.steps {
		if s.stub && s.name == name {
			s = step{name: name, fn: fn}
			found = true
		}
		steps[i] = s
	}
	if !found {
		return nil, errors.InvalidOperation("pipeline has no stub named " + name).
			WithDetail("stub", name)
	}
	return &Builder{steps: steps}, nil
}

// Bind partially applies arg to fn, producing a StepFunc suitable for Unstub.
func Bind[A any](fn func(ctx context.Context, in Iterator[Pair], arg A) Iterator[Pair], arg A) StepFunc {
	return func(ctx context.Context, in Iterator[Pair]) Iterator[Pair] {
		return fn(ctx, in, arg)
	}
}

// Stubs lists the names of unbound stubs in step order.
func (b *Builder) Stubs() []string {
	var names []string
	for _, s := range b.steps {
		if s.stub {
			names = append(names, s.name)
		}
	}
	return names
}

// HasStub reports whether an unbound stub called name exists.
func (b *Builder) HasStub(name string) bool {
	for _, s := range b.steps {
		if s.stub && s.name == name {
			return true
		}
	}
	return false
}

// Len returns the number of steps.
func (b *Builder) Len() int { return len(b.steps) }

// With attaches the steps to src and returns the resulting lazy pipeline.
func (b *Builder) With(src *Pipeline[Pair]) *Pipeline[Pair] {
	steps := b.steps
	return &Pipeline[Pair]{
		create: func(ctx context.Context) Iterator[Pair] {
			it := src.create(ctx)
			for _, s := range steps {
				it = s.fn(ctx, it)
			}
			return it
		},
	}
}

// Indexed turns p into a Pair pipeline keyed by 0-based position.
func Indexed[T any](p *Pipeline[T]) *Pipeline[Pair] {
	return &Pipeline[Pair]{
		create: func(ctx context.Context) Iterator[Pair] {
			return &indexIter[T]{source: p.create(ctx)}
		},
	}
}

// Values strips the keys of a Pair pipeline.
func Values(p *Pipeline[Pair]) *Pipeline[any] {
	return Map(p, func(_ context.Context, pair Pair) (any, error) {
		return pair.Value, nil
	})
}

func passthrough(_ context.Context, in Iterator[Pair]) Iterator[Pair] { return in }

type indexIter[T any] struct {
	source Iterator[T]
	index  int
}

func (it *indexIter[T]) Next(ctx context.Context) (Pair, bool, error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return Pair{}, false, err
	}
	p := Pair{Key: it.index, Value: val}
	it.index++
	return p, true, nil
}

func (it *indexIter[T]) Close() error { return it.source.Close() }

type guardIter struct {
	source Iterator[Pair]
	check  TypeCheck
	buf    []Pair
	pos    int
	loaded bool
	err    error
}

func (it *guardIter) load(ctx context.Context) error {
	it.loaded = true
	for i := 0; ; i++ {
		p, ok, err := it.source.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !it.check.Match(p.Value) {
			it.buf = nil
			return errors.TypeMismatch(i, it.check.Name, p.Value)
		}
		it.buf = append(it.buf, p)
	}
}

func (it *guardIter) Next(ctx context.Context) (Pair, bool, error) {
	if !it.loaded {
		it.err = it.load(ctx)
	}
	if it.err != nil {
		return Pair{}, false, it.err
	}
	if it.pos >= len(it.buf) {
		return Pair{}, false, nil
	}
	p := it.buf[it.pos]
	it.buf[it.pos] = Pair{}
	it.pos++
	return p, true, nil
}

func (it *guardIter) Close() error { return it.source.Close() }
