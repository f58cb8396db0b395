package mapper

import (
	"context"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/pipeline"
)

// DeleteFunc removes the records with the given ids.
type DeleteFunc func(ctx context.Context, ids []any) error

// DeletePipeline produces a runnable delete builder for one delete function.
type DeletePipeline interface {
	BindDelete(fn DeleteFunc) (*pipeline.Builder, error)
}

// DeleteTransform is the delete pipeline:
//
//	expect Identifiable -> before-delete -> persist -> after-delete
//
// Entities without an id are left out of the delete call but still go
// through both hooks.
type DeleteTransform struct {
	builder *pipeline.Builder
}

var defaultDelete = NewDeleteTransform()

// NewDeleteTransform returns the standard delete pipeline.
func NewDeleteTransform() *DeleteTransform {
	return &DeleteTransform{builder: deleteStages()}
}

// NewDeleteTransformFrom wraps a custom builder. It must contain a
// PersistStub stub for BindDelete to succeed.
func NewDeleteTransformFrom(b *pipeline.Builder) *DeleteTransform {
	return &DeleteTransform{builder: b}
}

// Builder returns the unbound builder so it can be extended.
func (t *DeleteTransform) Builder() *pipeline.Builder { return t.builder }

// BindDelete returns a copy of the pipeline with fn bound into the persist stub.
func (t *DeleteTransform) BindDelete(fn DeleteFunc) (*pipeline.Builder, error) {
	if fn == nil {
		return nil, errors.InvalidArgument("delete function is required")
	}
	if t.builder == nil || !t.builder.HasStub(PersistStub) {
		return nil, errors.PreconditionFailed("delete pipeline has no persist stub").
			WithDetail("stub", PersistStub)
	}
	return t.builder.Unstub(PersistStub, pipeline.Bind(deleteBatch, fn))
}

func deleteStages() *pipeline.Builder {
	return pipeline.NewBuilder().
		ExpectType(pipeline.TypeOf[entity.Identifiable]()).
		Apply(hook(entity.BeforeDelete)).
		Stub(PersistStub).
		Apply(hook(entity.AfterDelete))
}

func hook(event entity.Hook) func(ctx context.Context, value, key any) error {
	return func(ctx context.Context, value, _ any) error {
		_, err := value.(entity.Entity).TriggerHook(ctx, event, nil)
		return err
	}
}

// deleteBatch collects the ids of the whole upstream, calls fn once if any
// id was found and yields every element unchanged.
func deleteBatch(ctx context.Context, in pipeline.Iterator[pipeline.Pair], fn DeleteFunc) pipeline.Iterator[pipeline.Pair] {
	return &batchIter{source: in, call: func(ctx context.Context, batch []pipeline.Pair) ([]pipeline.Pair, error) {
		var ids []any
		for i, p := range batch {
			e, ok := p.Value.(entity.Identifiable)
			if !ok {
				return nil, errors.TypeMismatch(i, "entity.Identifiable", p.Value)
			}
			if id := e.ID(); !entity.IsAbsentID(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			if err := fn(ctx, ids); err != nil {
				return nil, err
			}
		}
		return batch, nil
	}}
}
