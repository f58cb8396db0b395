package mapper

import (
	"iter"
	"reflect"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/pipeline"
)

// anyPipeline is satisfied by *pipeline.Pipeline[T] for every T.
type anyPipeline interface {
	Any() *pipeline.Pipeline[any]
}

// Normalize turns the accepted input shapes into one pipeline of values:
// a single Entity, a slice or array, an iter.Seq[T] or a *pipeline.Pipeline[T].
// Element types are not checked here; the type guard does that. Callers that
// wrap the input, say to validate it, pass the result back to Save or Delete.
func Normalize(entities any) (*pipeline.Pipeline[any], error) {
	switch v := entities.(type) {
	case nil:
		return nil, errors.InvalidArgument("entities must not be nil")
	case entity.Entity:
		return pipeline.FromSlice([]any{v}), nil
	case *pipeline.Pipeline[any]:
		if v == nil {
			return nil, errors.InvalidArgument("entities must not be a nil pipeline")
		}
		return v, nil
	case []any:
		return pipeline.FromSlice(v), nil
	case iter.Seq[any]:
		if v == nil {
			return nil, errors.InvalidArgument("entities must not be a nil sequence")
		}
		return pipeline.FromSeq(v), nil
	}

	rv := reflect.ValueOf(entities)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return pipeline.FromSlice(items), nil
	case reflect.Func:
		if seq, ok := seqOf(rv); ok {
			return pipeline.FromSeq(seq), nil
		}
	case reflect.Pointer:
		if p, ok := entities.(anyPipeline); ok && !rv.IsNil() {
			return p.Any(), nil
		}
	}
	return nil, errors.InvalidArgumentf("cannot save or delete a %T; expected an entity or a collection of entities", entities)
}

// seqOf adapts a func(yield func(T) bool), the shape of iter.Seq[T].
func seqOf(fn reflect.Value) (iter.Seq[any], bool) {
	t := fn.Type()
	if fn.IsNil() || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	yieldType := t.In(0)
	if yieldType.Kind() != reflect.Func || yieldType.NumIn() != 1 ||
		yieldType.NumOut() != 1 || yieldType.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return func(yield func(any) bool) {
		adapter := reflect.MakeFunc(yieldType, func(args []reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(yield(args[0].Interface())).Convert(yieldType.Out(0))}
		})
		fn.Call([]reflect.Value{adapter})
	}, true
}
