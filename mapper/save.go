package mapper

import (
	"context"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/pipeline"
)

// PersistStub is the name of the placeholder step that the persist or
// delete function is bound into.
const PersistStub = "persist"

// PersistFunc writes a batch of records and returns the fields the storage
// generated for them.
//
// Results are correlated by position: results[i] belongs to data[i]. A
// shorter result slice, a nil entry or an empty map all mean "nothing changed"
// for that index. Entries past len(data) are ignored.
type PersistFunc func(ctx context.Context, data []entity.PlainData) ([]entity.PlainData, error)

// SavePipeline produces a runnable save builder for one persist function.
type SavePipeline interface {
	BindPersist(fn PersistFunc) (*pipeline.Builder, error)
}

// SaveTransform is the save pipeline:
//
//	expect Entity -> extract -> before-save -> persist -> apply -> keys -> after-save
//
// Elements enter as values keyed by position. After extraction the entity is
// the key and its plain data the value.
type SaveTransform struct {
	builder *pipeline.Builder
}

var defaultSave = NewSaveTransform()

// NewSaveTransform returns the standard save pipeline.
func NewSaveTransform() *SaveTransform {
	return &SaveTransform{builder: saveStages()}
}

// NewSaveTransformFrom wraps a custom builder. It must contain a PersistStub
// stub for BindPersist to succeed.
func NewSaveTransformFrom(b *pipeline.Builder) *SaveTransform {
	return &SaveTransform{builder: b}
}

// Builder returns the unbound builder so it can be extended.
func (t *SaveTransform) Builder() *pipeline.Builder { return t.builder }

// BindPersist returns a copy of the pipeline with fn bound into the persist stub.
func (t *SaveTransform) BindPersist(fn PersistFunc) (*pipeline.Builder, error) {
	if fn == nil {
		return nil, errors.InvalidArgument("persist function is required")
	}
	if t.builder == nil || !t.builder.HasStub(PersistStub) {
		return nil, errors.PreconditionFailed("save pipeline has no persist stub").
			WithDetail("stub", PersistStub)
	}
	return t.builder.Unstub(PersistStub, pipeline.Bind(persistBatch, fn))
}

func saveStages() *pipeline.Builder {
	return pipeline.NewBuilder().
		ExpectType(pipeline.TypeOf[entity.Entity]()).
		MapPair(extract).
		Map(beforeSave).
		Stub(PersistStub).
		Apply(applyResult).
		Keys().
		Apply(afterSave)
}

func extract(_ context.Context, p pipeline.Pair) (pipeline.Pair, error) {
	e := p.Value.(entity.Entity)
	return pipeline.Pair{Key: e, Value: e.ToPlainData()}, nil
}

func beforeSave(ctx context.Context, value, key any) (any, error) {
	data, _ := value.(entity.PlainData)
	out, err := key.(entity.Entity).TriggerHook(ctx, entity.BeforeSave, data)
	if err != nil {
		return nil, err
	}
	if out != nil {
		return out, nil
	}
	return data, nil
}

func applyResult(_ context.Context, value, key any) error {
	result, _ := value.(entity.PlainData)
	if len(result) == 0 {
		return nil
	}
	e := key.(entity.Entity)
	return e.ApplyPlainData(result, entity.AllowsNewFields(e))
}

func afterSave(ctx context.Context, value, _ any) error {
	_, err := value.(entity.Entity).TriggerHook(ctx, entity.AfterSave, nil)
	return err
}

// persistBatch collects the whole upstream, calls fn once and yields each
// entity paired with its positional result.
func persistBatch(ctx context.Context, in pipeline.Iterator[pipeline.Pair], fn PersistFunc) pipeline.Iterator[pipeline.Pair] {
	return &batchIter{source: in, call: func(ctx context.Context, batch []pipeline.Pair) ([]pipeline.Pair, error) {
		data := make([]entity.PlainData, len(batch))
		for i, p := range batch {
			data[i], _ = p.Value.(entity.PlainData)
		}
		results, err := fn(ctx, data)
		if err != nil {
			return nil, err
		}
		out := make([]pipeline.Pair, len(batch))
		for i, p := range batch {
			var r entity.PlainData
			if i < len(results) {
				r = results[i]
			}
			out[i] = pipeline.Pair{Key: p.Key, Value: r}
		}
		return out, nil
	}}
}

// batchIter drains its source, runs call once on a non-empty batch and then
// yields what call returned.
type batchIter struct {
	source pipeline.Iterator[pipeline.Pair]
	call   func(ctx context.Context, batch []pipeline.Pair) ([]pipeline.Pair, error)
	out    []pipeline.Pair
	pos    int
	done   bool
	err    error
}

func (it *batchIter) run(ctx context.Context) error {
	it.done = true
	var batch []pipeline.Pair
	for {
		p, ok, err := it.source.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		batch = append(batch, p)
	}
	if len(batch) == 0 {
		return nil
	}
	out, err := it.call(ctx, batch)
	if err != nil {
		return err
	}
	it.out = out
	return nil
}

func (it *batchIter) Next(ctx context.Context) (pipeline.Pair, bool, error) {
	if !it.done {
		it.err = it.run(ctx)
	}
	if it.err != nil {
		return pipeline.Pair{}, false, it.err
	}
	if it.pos >= len(it.out) {
		return pipeline.Pair{}, false, nil
	}
	p := it.out[it.pos]
	it.pos++
	return p, true, nil
}

func (it *batchIter) Close() error { return it.source.Close() }
